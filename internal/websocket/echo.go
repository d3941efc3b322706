package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// EchoHandler returns an HTTP handler that upgrades every request and writes
// each binary frame back after delay.
func EchoHandler(delay time.Duration) http.Handler {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	})
}
