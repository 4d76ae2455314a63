package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/logging"
)

const (
	// WebSocketPath is where workers connect.
	WebSocketPath = "/ws"
	// MetricsPath exposes coordinator counters in Prometheus format.
	MetricsPath = "/metrics"

	maxFrameBytes   = 256 << 20
	shutdownTimeout = 5 * time.Second
	pollInterval    = 50 * time.Millisecond
)

// HandlerFunc processes one message of a registered type.
type HandlerFunc func(ctx context.Context, msg Message) error

// Coordinator accepts worker connections and dispatches their messages.
type Coordinator struct {
	log      *zap.Logger
	agg      *Aggregator
	upgrader websocket.Upgrader
	registry *prometheus.Registry
	metrics  *coordinatorMetrics

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	connMu sync.Mutex
	active map[*websocket.Conn]struct{}
	conns  sync.WaitGroup

	idMu    sync.Mutex
	claimed map[int]bool
	lastID  int
}

// NewCoordinator creates a coordinator that stores metrics_report batches in agg.
func NewCoordinator(agg *Aggregator, log *zap.Logger) *Coordinator {
	if agg == nil {
		agg = NewAggregator()
	}
	reg := prometheus.NewRegistry()
	c := &Coordinator{
		log:      logging.OrNop(log).Named("coordinator"),
		agg:      agg,
		registry: reg,
		metrics:  newCoordinatorMetrics(reg),
		handlers: make(map[string]HandlerFunc),
		active:   make(map[*websocket.Conn]struct{}),
		claimed:  map[int]bool{CoordinatorWorkerID: true},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	c.Register(MessageMetricsReport, c.handleMetricsReport)
	return c
}

// Aggregator returns the table batches are stored in.
func (c *Coordinator) Aggregator() *Aggregator {
	return c.agg
}

// Register installs h for messages of msgType, replacing any earlier handler.
func (c *Coordinator) Register(msgType string, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = h
}

// Handler returns the HTTP handler serving the websocket and metrics endpoints.
func (c *Coordinator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, c.serveWS)
	mux.Handle(MetricsPath, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return mux
}

// Serve accepts connections on ln until ctx is canceled, then shuts down and
// waits for open worker connections to finish their in-flight frames.
func (c *Coordinator) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	c.log.Info("listening for workers", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	// Hijacked websocket connections are not tracked by Shutdown.
	drained := make(chan struct{})
	go func() {
		c.conns.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		c.closeActive()
		<-drained
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on addr and calls Serve.
func (c *Coordinator) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("coordinator listen %s: %w", addr, err)
	}
	return c.Serve(ctx, ln)
}

// WaitForBatches blocks until at least n workers have reported or ctx ends.
// It returns the number of workers that reported. The coordinator's own
// batch, stored under CoordinatorWorkerID, does not count.
func (c *Coordinator) WaitForBatches(ctx context.Context, n int) int {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		got := c.reported()
		if got >= n {
			return got
		}
		select {
		case <-ctx.Done():
			return got
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) reported() int {
	n := 0
	for _, id := range c.agg.Workers() {
		if id != CoordinatorWorkerID {
			n++
		}
	}
	return n
}

// assign hands out a worker index: requested when it is free, otherwise the
// lowest index above the last one handed out.
func (c *Coordinator) assign(requested int) int {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	if requested > 0 && !c.claimed[requested] {
		c.claimed[requested] = true
		return requested
	}
	c.lastID++
	for c.claimed[c.lastID] {
		c.lastID++
	}
	c.claimed[c.lastID] = true
	return c.lastID
}

// claim marks id as taken by a worker that reported without a hello.
func (c *Coordinator) claim(id int) {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	c.claimed[id] = true
}

func (c *Coordinator) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c.track(conn)
	defer c.untrack(conn)

	c.metrics.connected.Inc()
	defer c.metrics.connected.Dec()

	remote := r.RemoteAddr
	conn.SetReadLimit(maxFrameBytes)
	c.log.Debug("worker connected", zap.String("remote", remote))

	workerID := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("worker connection closed", zap.String("remote", remote), zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.metrics.decodeErrs.Inc()
			c.log.Warn("dropping undecodable frame", zap.String("remote", remote), zap.Error(err))
			continue
		}
		if env.Type == MessageHello {
			if workerID, err = c.welcome(conn, env.Data, workerID); err != nil {
				c.log.Warn("worker handshake failed", zap.String("remote", remote), zap.Error(err))
				return
			}
			c.log.Debug("worker registered", zap.String("remote", remote), zap.Int("worker_id", workerID))
			continue
		}
		c.dispatch(r.Context(), Message{Type: env.Type, Data: env.Data, Remote: remote, WorkerID: workerID})
	}
}

// welcome binds a worker index to the connection and sends it back. A repeated
// hello on the same connection gets the index already bound.
func (c *Coordinator) welcome(conn *websocket.Conn, data json.RawMessage, bound int) (int, error) {
	id := bound
	if id == 0 {
		var hello Hello
		if len(data) > 0 {
			if err := json.Unmarshal(data, &hello); err != nil {
				c.metrics.decodeErrs.Inc()
				c.log.Warn("undecodable hello, assigning an index", zap.Error(err))
			}
		}
		id = c.assign(hello.WorkerID)
	}
	frame, err := encodeFrame(MessageWelcome, Welcome{WorkerID: id})
	if err != nil {
		return bound, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(shutdownTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return bound, fmt.Errorf("write %s: %w", MessageWelcome, err)
	}
	return id, nil
}

func (c *Coordinator) track(conn *websocket.Conn) {
	c.conns.Add(1)
	c.connMu.Lock()
	c.active[conn] = struct{}{}
	c.connMu.Unlock()
}

func (c *Coordinator) untrack(conn *websocket.Conn) {
	c.connMu.Lock()
	delete(c.active, conn)
	c.connMu.Unlock()
	_ = conn.Close()
	c.conns.Done()
}

func (c *Coordinator) closeActive() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	for conn := range c.active {
		_ = conn.Close()
	}
}

func (c *Coordinator) dispatch(ctx context.Context, msg Message) {
	c.mu.RLock()
	h, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		c.log.Warn("no handler for message type", zap.String("type", msg.Type), zap.String("remote", msg.Remote))
		return
	}

	if err := h(ctx, msg); err != nil {
		c.log.Warn("message handler failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (c *Coordinator) handleMetricsReport(_ context.Context, msg Message) error {
	var b Batch
	if err := json.Unmarshal(msg.Data, &b); err != nil {
		c.metrics.decodeErrs.Inc()
		return fmt.Errorf("decode %s: %w", MessageMetricsReport, err)
	}
	if msg.WorkerID > 0 {
		b.WorkerID = msg.WorkerID
	} else {
		c.claim(b.WorkerID)
	}

	invalid := 0
	for _, s := range b.Metrics {
		if !s.Status.Valid() {
			invalid++
			continue
		}
		c.metrics.samples.WithLabelValues(string(s.Operation), string(s.Status)).Inc()
	}
	if invalid > 0 {
		c.metrics.invalid.Add(float64(invalid))
		c.log.Warn("batch contains samples with unknown status",
			zap.Int("worker_id", b.WorkerID), zap.Int("count", invalid))
	}

	c.metrics.batches.Inc()
	replaced := c.agg.Store(b)
	if replaced {
		c.metrics.replaced.Inc()
	}
	c.log.Info("received metrics from worker",
		zap.Int("worker_id", b.WorkerID),
		zap.Int("entries", len(b.Metrics)),
		zap.Bool("replaced", replaced))
	return nil
}
