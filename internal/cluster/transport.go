package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/xrayload/internal/clientmetrics"
)

// Sender delivers one message to the coordinator.
type Sender interface {
	Send(ctx context.Context, msgType string, payload interface{}) error
}

// TransportConfig configures the worker side of the coordinator channel.
type TransportConfig struct {
	// Address is host:port, or a full ws:// or wss:// URL.
	Address          string
	Headers          http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Transport is a websocket connection from a worker to the coordinator. It
// dials lazily on first Send.
type Transport struct {
	url          string
	headers      http.Header
	dialer       *websocket.Dialer
	writeTimeout time.Duration

	mu    sync.Mutex
	conn  *websocket.Conn
	stats clientmetrics.Link
}

// NewTransport creates a Transport for cfg.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	target, err := CoordinatorURL(cfg.Address)
	if err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &Transport{
		url:          target,
		headers:      cfg.Headers,
		writeTimeout: cfg.WriteTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}, nil
}

// CoordinatorURL normalizes a coordinator address into a websocket URL.
func CoordinatorURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("coordinator address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid coordinator address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported coordinator scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid coordinator address %q: missing host", addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = WebSocketPath
	}
	return u.String(), nil
}

// Connect dials the coordinator if not already connected.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectLocked(ctx)
}

func (t *Transport) connectLocked(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.headers)
	if err != nil {
		t.stats.Failed()
		if resp != nil {
			return fmt.Errorf("coordinator dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("coordinator dial failed: %w", err)
	}
	t.conn = conn
	t.stats.Connected()
	return nil
}

// Send encodes payload into an envelope of msgType and writes it as one text
// frame. No reply is read.
func (t *Transport) Send(ctx context.Context, msgType string, payload interface{}) error {
	frame, err := encodeFrame(msgType, payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.connectLocked(ctx); err != nil {
		return err
	}
	return t.writeLocked(ctx, msgType, frame)
}

// Hello announces the worker and returns the index the coordinator assigned.
// The coordinator grants requested when no other worker holds it; zero lets
// it pick. Batches sent later on the same connection are stored under the
// returned index.
func (t *Transport) Hello(ctx context.Context, requested int) (int, error) {
	frame, err := encodeFrame(MessageHello, Hello{WorkerID: requested})
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.connectLocked(ctx); err != nil {
		return 0, err
	}
	if err := t.writeLocked(ctx, MessageHello, frame); err != nil {
		return 0, err
	}

	_ = t.conn.SetReadDeadline(t.deadline(ctx))
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		t.stats.Failed()
		t.dropLocked()
		return 0, fmt.Errorf("read %s: %w", MessageWelcome, err)
	}
	_ = t.conn.SetReadDeadline(time.Time{})

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("decode %s: %w", MessageWelcome, err)
	}
	if env.Type != MessageWelcome {
		return 0, fmt.Errorf("expected %s, got %q", MessageWelcome, env.Type)
	}
	var w Welcome
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return 0, fmt.Errorf("decode %s: %w", MessageWelcome, err)
	}
	if w.WorkerID <= 0 {
		return 0, fmt.Errorf("coordinator assigned invalid worker index %d", w.WorkerID)
	}
	return w.WorkerID, nil
}

func (t *Transport) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (t *Transport) writeLocked(ctx context.Context, msgType string, frame []byte) error {
	_ = t.conn.SetWriteDeadline(t.deadline(ctx))
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.stats.Failed()
		t.dropLocked()
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	t.stats.Sent(len(frame))
	return nil
}

// dropLocked discards a broken connection so the next call dials again.
func (t *Transport) dropLocked() {
	_ = t.conn.Close()
	t.conn = nil
	t.stats.Disconnected()
}

// Stats reports the transport's dial and write counters.
func (t *Transport) Stats() clientmetrics.Snapshot {
	return t.stats.Snapshot()
}

// Close sends a close frame and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)
	closeErr := t.conn.Close()
	t.conn = nil
	t.stats.Disconnected()
	if err != nil {
		return err
	}
	return closeErr
}
