package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/practicelab/relay/internal/auth"
	"github.com/practicelab/relay/internal/feedback"
	"github.com/practicelab/relay/internal/metrics"
	"github.com/practicelab/relay/internal/realtime"
	"github.com/practicelab/relay/internal/relay"
	"github.com/practicelab/relay/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeTimeout    = 5 * time.Second
	upstreamTimeout = 15 * time.Second
	maxClientFrame  = 16 << 20
)

// DialFunc opens the upstream connection for one session.
type DialFunc func(ctx context.Context) (relay.Upstream, error)

// HandlerConfig holds the shared collaborators for all practice sessions.
type HandlerConfig struct {
	Authorizer *auth.Authorizer
	Store      store.Store
	Feedback   feedback.Generator
	Tracker    *relay.Tracker

	Realtime realtime.Config
	// Dial overrides the upstream dialer; defaults to realtime.Dial with Realtime.
	Dial DialFunc

	Voice              string
	TranscriptionModel string
	MaxConcurrent      int
	MaxDuration        time.Duration
	SnapshotInterval   time.Duration
}

// Handler manages WebSocket practice sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with shared collaborators and concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	if cfg.Dial == nil {
		rc := cfg.Realtime
		cfg.Dial = func(ctx context.Context) (relay.Upstream, error) {
			conn, err := realtime.Dial(ctx, rc)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// ServeHTTP authorizes the handshake, upgrades the connection and runs the
// session. Returns 503 if at max concurrent session capacity. Rejected
// handshakes are upgraded and closed straight away with no event.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		metrics.SessionsRejected.WithLabelValues("capacity").Inc()
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	grant, authErr := h.cfg.Authorizer.Authorize(r.Context(), r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if authErr != nil {
		metrics.SessionsRejected.WithLabelValues(auth.Reason(authErr)).Inc()
		slog.Info("session rejected", "reason", auth.Reason(authErr), "error", authErr)
		closeConn(conn, websocket.ClosePolicyViolation)
		return
	}

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	h.runSession(conn, grant)
}

func (h *Handler) runSession(conn *websocket.Conn, grant auth.Grant) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.Default().With("connection_id", uuid.NewString(), "user_id", grant.Claims.UserID)

	dialCtx, dialCancel := context.WithTimeout(ctx, upstreamTimeout)
	upstream, err := h.cfg.Dial(dialCtx)
	dialCancel()
	if err != nil {
		log.Error("upstream dial", "error", err)
		closeConn(conn, websocket.CloseInternalServerErr)
		return
	}

	client := newClientSink(conn)
	sess := relay.New(relay.Config{
		Profile:            grant.Profile,
		Practice:           grant.Practice,
		Store:              h.cfg.Store,
		Feedback:           h.cfg.Feedback,
		Model:              h.cfg.Realtime.Model,
		Voice:              h.cfg.Voice,
		TranscriptionModel: h.cfg.TranscriptionModel,
		MaxDuration:        h.cfg.MaxDuration,
		SnapshotInterval:   h.cfg.SnapshotInterval,
		Logger:             log,
	}, client, upstream)

	if err = sess.Start(); err != nil {
		log.Error("session start", "error", err)
		upstream.Close()
		closeConn(conn, websocket.CloseInternalServerErr)
		return
	}

	unregister := h.cfg.Tracker.Register(uuid.NewString(), sess.End)
	defer unregister()

	go processMessages(conn, sess, log)

	if err = sess.Run(ctx); err != nil {
		log.Error("session run", "error", err)
	}
	client.Close()
	log.Info("session closed", "trigger", sess.Trigger())
}

// processMessages feeds client frames into the session until the socket
// fails. Text frames are protocol messages; binary frames are raw utterances.
func processMessages(conn *websocket.Conn, sess *relay.Session, log *slog.Logger) {
	conn.SetReadLimit(maxClientFrame)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("client connection closed", "error", err)
			sess.Post(relay.Disconnect{})
			return
		}

		var ev relay.Event
		if msgType == websocket.BinaryMessage {
			ev = relay.DecodeBinaryFrame(data)
		} else if ev, err = relay.DecodeClientMessage(data); err != nil {
			log.Warn("client message ignored", "error", err)
			continue
		}
		if !sess.Post(ev) {
			return
		}
	}
}

// clientSink serializes writes to the client socket.
type clientSink struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newClientSink(conn *websocket.Conn) *clientSink {
	return &clientSink{conn: conn}
}

func (c *clientSink) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if err = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	deadline := time.Now().Add(writeTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func closeConn(conn *websocket.Conn, code int) {
	deadline := time.Now().Add(writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
}
