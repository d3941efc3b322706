package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/torosent/midilat/internal/threshold"
)

// PrintThresholdResults outputs a table of threshold outcomes followed by a
// pass/fail summary.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}

	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintln(w, "\nThresholds:")
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Threshold", "Actual", "Result"})
	tbl.SetBorder(true)
	tbl.SetAutoWrapText(false)

	failed := 0
	for _, r := range results {
		status := pass("PASS")
		if !r.Pass {
			status = fail("FAIL")
			failed++
		}
		actual := fmt.Sprintf("%.3f", r.Actual)
		if strings.HasPrefix(r.Message, "error:") {
			actual = r.Message
		}
		tbl.Append([]string{r.Threshold.Raw, actual, status})
	}
	tbl.Render()

	fmt.Fprintf(w, "%d of %d thresholds passed\n", len(results)-failed, len(results))
}
