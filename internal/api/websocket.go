package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

const wsWriteWait = 10 * time.Second

// wsSink writes events as JSON text frames.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(evt *types.Event) error {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(evt)
}

func (s *wsSink) Heartbeat() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (h *Handlers) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.config.CORSOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// StreamEventsWS handles GET /api/v1/sessions/{id}/ws
// It streams the same events as StreamEvents over a WebSocket. The
// ?last_event_id query parameter resumes after a given event.
func (h *Handlers) StreamEventsWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	startTime := time.Now()

	// Resolve the session before upgrading so unknown IDs get a plain 404.
	stream, err := h.openStream(r.Context(), sessionID, r.URL.Query().Get("last_event_id"))
	if err != nil {
		h.streamError(w, r, err)
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		stream.cleanup()
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	metrics.StreamConnections.WithLabelValues("ws").Inc()
	defer metrics.StreamConnections.WithLabelValues("ws").Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames; a read error means the peer went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sink := &wsSink{conn: conn}
	sink.Send(&types.Event{
		ID:        "0",
		SessionID: sessionID,
		Type:      types.EventTypeHello,
		Timestamp: time.Now().UTC(),
	})

	reason := h.pump(ctx, stream, sink)
	if reason == "session_finished" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream_end"),
			time.Now().Add(wsWriteWait))
	}

	h.logger.Info("websocket connection closed",
		slog.String("session_id", sessionID),
		slog.String("request_id", GetRequestID(r.Context(), r)),
		slog.Duration("duration", time.Since(startTime)),
		slog.String("reason", reason),
	)
}
