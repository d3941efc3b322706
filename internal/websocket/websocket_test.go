package websocket

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientEchoRoundTrip(t *testing.T) {
	server := httptest.NewServer(EchoHandler(0))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	frame := []byte{0xF2, 0x10, 0x01}
	if err := client.Send(frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("echo = %x, want %x", got, frame)
	}

	m := client.Metrics()
	if m.FramesSent != 1 || m.FramesReceived != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.BytesSent != 3 || m.BytesReceived != 3 {
		t.Fatalf("byte counters = %d/%d", m.BytesSent, m.BytesReceived)
	}
}

func TestClientSendBeforeConnect(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1"})
	if err := client.Send([]byte{1}); err == nil {
		t.Fatal("expected error sending on unconnected client")
	}
	if _, err := client.Receive(); err == nil {
		t.Fatal("expected error receiving on unconnected client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close on unconnected client: %v", err)
	}
}

func TestClientDialFailure(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1/none", HandshakeTimeout: 200 * time.Millisecond})
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected dial failure")
	}
	if client.Metrics().Errors != 1 {
		t.Fatalf("errors = %d, want 1", client.Metrics().Errors)
	}
}

func TestClientDoubleConnect(t *testing.T) {
	server := httptest.NewServer(EchoHandler(0))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected error on second connect")
	}
}
