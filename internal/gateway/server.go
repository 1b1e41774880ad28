// Package gateway exposes the Event Bus to remote observers over HTTP and
// WebSocket (spec §10 domain stack). It is a pure observer: it subscribes
// to events.Bus and serves them out, and never calls back into the Engine.
// Grounded on internal/gateway/server.go's chi router + ws.Hub wiring,
// trimmed of the teacher's session/task command surface, since this spec's
// gateway has nothing to command — the Engine owns its own session.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/gateway/ws"
)

// Server is the ralph-tui observer gateway.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
}

// NewServer builds a Server wired to bus, serving on host:port.
func NewServer(bus *events.Bus, host string, port int) *Server {
	hub := ws.NewHub(bus)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{hub: hub, bus: bus}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/events/ws", hub.ServeWS)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return s
}

// Start begins listening. It blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server and closes the WS hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleEvents returns up to ?limit= (default 50) of the most recent
// events from the bus's history ring buffer.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id,omitempty"`
		Type      string    `json:"type"`
		Timestamp string    `json:"timestamp"`
		Payload   any       `json:"payload"`
	}

	out := make([]eventJSON, len(history))
	for i, e := range history {
		out[i] = eventJSON{
			ID:        e.ID,
			SessionID: e.SessionID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Payload:   e.Payload,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
