// Command echo serves a WebSocket endpoint that writes every binary frame
// back, for use as an external loopback device:
//
//	go run ./scripts/testservers/echo -port 9000 -delay 2ms
//	midilat --backend websocket -o ws://127.0.0.1:9000/echo
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/torosent/midilat/internal/websocket"
)

func main() {
	port := flag.Int("port", 9000, "Listening port")
	path := flag.String("path", "/echo", "WebSocket endpoint path")
	delay := flag.Duration("delay", 0, "Added delay before each frame is echoed")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	mux := http.NewServeMux()
	mux.Handle(*path, websocket.EchoHandler(*delay))

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("echo WebSocket server listening on ws://%s%s (delay %s)", addr, *path, *delay)
	log.Fatal(server.ListenAndServe())
}
