package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/practicelab/relay/internal/metrics"
)

// Config holds the upstream endpoint and credentials.
type Config struct {
	URL          string
	APIKey       string
	Model        string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("realtime connection closed")

// Conn is one upstream realtime connection. Writes are serialized; reads are
// owned by ReadLoop.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Dial opens an authenticated upstream connection.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("realtime dial: missing api key")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("realtime url: %w", err)
	}
	if cfg.Model != "" {
		q := u.Query()
		q.Set("model", cfg.Model)
		u.RawQuery = q.Encode()
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
		ReadBufferSize:   16384,
		WriteBufferSize:  16384,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		metrics.UpstreamDialErrors.Inc()
		if resp != nil {
			return nil, fmt.Errorf("realtime dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Conn{ws: ws, writeTimeout: writeTimeout}, nil
}

// Send marshals v and writes it as one text frame.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal upstream message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// ReadLoop decodes upstream frames into out until the connection fails or ctx
// ends. Undecodable frames are logged and skipped.
func (c *Conn) ReadLoop(ctx context.Context, out chan<- Event) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err = json.Unmarshal(data, &ev); err != nil {
			slog.Warn("upstream frame decode", "error", err, "bytes", len(data))
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close sends a close frame and releases the socket. Safe to call twice.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	deadline := time.Now().Add(c.writeTimeout)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}
