// Package realtime streams new chat messages to browsers over websockets.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// ErrHubClosed is returned by Serve once Shutdown has started.
var ErrHubClosed = errors.New("realtime hub is shutting down")

// Subscriber delivers raw message payloads published for a conversation.
// The payload channel must be closed once the returned close func runs.
// Implemented by *cache.Cache.
type Subscriber interface {
	SubscribeChatPayloads(ctx context.Context, conversationID string) (<-chan []byte, func() error, error)
}

// Hub upgrades chat connections and tracks them so they can be closed on
// shutdown. Hijacked connections are not closed by http.Server.Shutdown.
type Hub struct {
	sub      Subscriber
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	draining bool
	wg       sync.WaitGroup
}

// NewHub creates a Hub. checkOrigin rejects cross-site upgrades; nil uses
// the gorilla default, which requires Origin to match Host.
func NewHub(sub Subscriber, checkOrigin func(*http.Request) bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sub:    sub,
		logger: logger.With("component", "realtime.hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Serve upgrades the request and streams conversationID's messages until
// the client goes away, the request context ends or the hub shuts down.
// Membership must be checked by the caller before Serve is called.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, conversationID string) error {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		http.Error(w, "Service is restarting", http.StatusServiceUnavailable)
		return ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return err
	}
	defer conn.Close()

	if !h.track(conn) {
		h.closeConn(conn, websocket.CloseGoingAway, "server shutting down")
		return ErrHubClosed
	}
	defer h.untrack(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	payloads, closeSub, err := h.sub.SubscribeChatPayloads(ctx, conversationID)
	if err != nil {
		h.logger.Error("subscribe failed",
			"conversation_id", conversationID,
			"error", err,
		)
		h.closeConn(conn, websocket.CloseInternalServerErr, "subscription failed")
		return err
	}
	defer func() {
		if err := closeSub(); err != nil {
			h.logger.Warn("unsubscribe failed", "conversation_id", conversationID, "error", err)
		}
		for range payloads {
		}
	}()

	go h.readLoop(conn, cancel)

	h.logger.Debug("chat stream opened", "conversation_id", conversationID)
	err = h.writeLoop(ctx, conn, payloads)
	h.logger.Debug("chat stream closed", "conversation_id", conversationID)
	return err
}

// readLoop discards client frames and cancels the stream when the
// connection fails or the client closes it.
func (h *Hub) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

// writeLoop is the only writer on conn apart from closeConn.
func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, payloads <-chan []byte) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-payloads:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Hub) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

func (h *Hub) closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// Active returns the number of open streams.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown refuses new streams, closes open ones and waits for their
// goroutines to finish or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.logger.Info("realtime hub shutdown initiated", "open_streams", len(conns))

	for _, c := range conns {
		// Close unblocks the read loop, which cancels the stream.
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("realtime hub shutdown complete")
		return nil
	case <-ctx.Done():
		h.logger.Warn("realtime hub shutdown timed out")
		return ctx.Err()
	}
}
