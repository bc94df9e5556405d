package server

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 64
)

// client is one websocket subscriber to template events.
type client struct {
	conn *websocket.Conn
	send chan types.TemplateEvent
}

// hub fans registry events out to connected clients.
type hub struct {
	clients      map[*client]struct{}
	clientsMutex sync.RWMutex
	logger       logging.Logger
}

func newHub(logger logging.Logger) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

func (h *hub) register(c *client) int {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

// unregister closes the client's send channel once.
func (h *hub) unregister(c *client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// run broadcasts events until ctx is done or events is closed.
func (h *hub) run(ctx context.Context, events <-chan types.TemplateEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

func (h *hub) broadcast(event types.TemplateEvent) {
	var slow []*client

	h.clientsMutex.RLock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Client's send channel is full, mark for removal
			slow = append(slow, c)
		}
	}
	h.clientsMutex.RUnlock()

	for _, c := range slow {
		h.unregister(c)
		c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
	}
}

func (h *hub) closeAll(code websocket.StatusCode, reason string) {
	h.clientsMutex.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMutex.Unlock()

	for _, c := range clients {
		c.conn.Close(code, reason)
	}
}

func (s *ReportServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.config.AllowedOrigins),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "request_id", RequestID(r.Context()))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan types.TemplateEvent, sendBuffer)}
	total := s.hub.register(c)
	s.logger.Debug(r.Context(), "Client connected", "total", total)

	// The request context ends when the handler returns, so the pumps
	// get their own.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		s.readPump(ctx, c)
	}()
	s.writePump(ctx, c)
	cancel()
}

// readPump discards client messages and detects disconnects.
func (s *ReportServer) readPump(ctx context.Context, c *client) {
	defer s.hub.unregister(c)
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump delivers events as JSON until the send channel closes.
func (s *ReportServer) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, event)
			cancel()
			if err != nil {
				s.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				s.hub.unregister(c)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.hub.unregister(c)
				return
			}
		}
	}
}

// originPatterns converts allowed origins to the host patterns the
// websocket handshake checks against.
func originPatterns(allowed []string) []string {
	patterns := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
