// Package websocket carries marker frames to and from a WebSocket echo
// endpoint acting as the external loopback device.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics captures per-connection transfer counters.
type Metrics struct {
	ConnectionDuration time.Duration
	FramesSent         int64
	FramesReceived     int64
	BytesSent          int64
	BytesReceived      int64
	Errors             int64
}

// Client is a single WebSocket connection exchanging binary frames.
type Client struct {
	url         string
	headers     http.Header
	dialer      *websocket.Dialer
	readLimit   int64
	conn        *websocket.Conn
	mu          sync.Mutex
	connectTime time.Time
	framesSent  int64
	framesRecv  int64
	bytesSent   int64
	bytesRecv   int64
	errors      int64
}

// Config configures the client.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	MaxFrameSize     int64
}

// NewClient creates an unconnected client.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = 4096
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	return &Client{
		url:       cfg.URL,
		headers:   cfg.Headers,
		dialer:    dialer,
		readLimit: cfg.MaxFrameSize,
	}
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string {
	return c.url
}

// Connect dials the endpoint.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		c.errors++
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(c.readLimit)

	c.conn = conn
	c.connectTime = time.Now()
	return nil
}

// Send writes one binary frame.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.errors++
		return fmt.Errorf("write frame: %w", err)
	}

	c.framesSent++
	c.bytesSent += int64(len(data))
	return nil
}

// Receive blocks until a binary frame arrives. Text frames are skipped.
func (c *Client) Receive() ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.errors++
			c.mu.Unlock()
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		c.mu.Lock()
		c.framesRecv++
		c.bytesRecv += int64(len(data))
		c.mu.Unlock()
		return data, nil
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil {
		return err
	}
	return closeErr
}

// Metrics returns the current counters.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Duration(0)
	if !c.connectTime.IsZero() {
		duration = time.Since(c.connectTime)
	}

	return Metrics{
		ConnectionDuration: duration,
		FramesSent:         c.framesSent,
		FramesReceived:     c.framesRecv,
		BytesSent:          c.bytesSent,
		BytesReceived:      c.bytesRecv,
		Errors:             c.errors,
	}
}
