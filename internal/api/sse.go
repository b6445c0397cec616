package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// heartbeatInterval keeps idle stream connections open through proxies.
var heartbeatInterval = 15 * time.Second

// eventSink is one stream transport (SSE or WebSocket).
type eventSink interface {
	Send(evt *types.Event) error
	Heartbeat() error
}

// eventStream is a session's replayed history plus its live subscription.
type eventStream struct {
	sessionID string
	replay    []*types.Event
	live      <-chan *types.Event
	cleanup   func()
	lastSeq   int64
	final     *types.OrchestrationSession // set when the session already ended
}

// openStream subscribes before replaying so no event falls between the two.
func (h *Handlers) openStream(ctx context.Context, sessionID, lastEventID string) (*eventStream, error) {
	store := h.orch.Store()

	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	live, cleanup, err := store.Subscribe(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	replay, err := store.GetEventsSince(ctx, sessionID, lastEventID)
	if err != nil {
		cleanup()
		return nil, err
	}

	s := &eventStream{
		sessionID: sessionID,
		replay:    replay,
		live:      live,
		cleanup:   cleanup,
	}
	if seq, err := strconv.ParseInt(lastEventID, 10, 64); err == nil {
		s.lastSeq = seq
	}
	if sess.Status.IsTerminal() {
		s.final = sess
	}
	return s, nil
}

// pump writes replayed then live events to sink until stream_end, client
// disconnect or a write error.
func (h *Handlers) pump(ctx context.Context, s *eventStream, sink eventSink) (reason string) {
	defer s.cleanup()

	for _, evt := range s.replay {
		if !s.advance(evt) {
			continue
		}
		if err := sink.Send(evt); err != nil {
			return "write_error"
		}
		if evt.Type == types.EventTypeStreamEnd {
			return "session_finished"
		}
	}

	// Finished before we attached and its stream_end was trimmed or already seen.
	if s.final != nil {
		if err := sink.Send(streamEndEvent(s.final)); err != nil {
			return "write_error"
		}
		return "session_finished"
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return "client_disconnect"

		case evt, ok := <-s.live:
			if !ok {
				return "subscription_closed"
			}
			if !s.advance(evt) {
				continue
			}
			if err := sink.Send(evt); err != nil {
				return "write_error"
			}
			if evt.Type == types.EventTypeStreamEnd {
				return "session_finished"
			}

		case <-heartbeat.C:
			if err := sink.Heartbeat(); err != nil {
				return "write_error"
			}
		}
	}
}

// advance reports whether evt is new, dropping duplicates delivered by both
// the replay and the subscription.
func (s *eventStream) advance(evt *types.Event) bool {
	if evt == nil {
		return false
	}
	seq, err := strconv.ParseInt(evt.ID, 10, 64)
	if err != nil {
		return true
	}
	if seq <= s.lastSeq {
		return false
	}
	s.lastSeq = seq
	return true
}

func streamEndEvent(sess *types.OrchestrationSession) *types.Event {
	data := map[string]interface{}{"status": sess.Status}
	if sess.Error != "" {
		data["error"] = sess.Error
	}
	raw, _ := json.Marshal(data)
	return &types.Event{
		ID:        "final",
		SessionID: sess.ID,
		Type:      types.EventTypeStreamEnd,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
}

// streamError writes the HTTP error for a stream that could not be opened.
func (h *Handlers) streamError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondDomainError(w, r, err, "failed to open event stream")
}

// sseSink writes events in text/event-stream framing.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(evt *types.Event) error {
	if _, err := s.w.Write(evt.ToSSE()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Heartbeat() error {
	if _, err := s.w.Write([]byte(": heartbeat\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// StreamEvents handles GET /api/v1/sessions/{id}/events
// It implements Server-Sent Events (SSE) with Last-Event-ID resumption.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := mux.Vars(r)["id"]
	requestID := GetRequestID(ctx, r)
	startTime := time.Now()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, r, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("last_event_id")
	}

	stream, err := h.openStream(ctx, sessionID, lastEventID)
	if err != nil {
		h.streamError(w, r, err)
		return
	}

	metrics.StreamConnections.WithLabelValues("sse").Inc()
	defer metrics.StreamConnections.WithLabelValues("sse").Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	sink.Send(&types.Event{
		ID:        "0",
		SessionID: sessionID,
		Type:      types.EventTypeHello,
		Timestamp: time.Now().UTC(),
	})

	reason := h.pump(ctx, stream, sink)
	h.logger.Info("SSE connection closed",
		slog.String("session_id", sessionID),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(startTime)),
		slog.String("reason", reason),
	)
}
