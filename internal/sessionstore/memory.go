package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// memorySession holds all state for a single session in memory.
type memorySession struct {
	mu          sync.RWMutex
	session     *types.OrchestrationSession
	events      []*types.Event
	nextSeq     int64
	maxEvents   int64
	subscribers map[chan *types.Event]struct{}
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	config   *Config
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory Store.
func NewMemoryStore(cfg *Config) *MemoryStore {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) get(id string) (*memorySession, error) {
	s.mu.RLock()
	ms, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *types.OrchestrationSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return ErrSessionExists
	}
	s.pruneLocked()

	s.sessions[session.ID] = &memorySession{
		session:     session.Clone(),
		events:      make([]*types.Event, 0),
		nextSeq:     1,
		maxEvents:   s.config.EventMaxLen,
		subscribers: make(map[chan *types.Event]struct{}),
	}
	return nil
}

// pruneLocked drops finished sessions older than the TTL.
func (s *MemoryStore) pruneLocked() {
	if s.config.TTL <= 0 {
		return
	}
	cutoff := s.now().Add(-s.config.TTL)
	for id, ms := range s.sessions {
		ms.mu.RLock()
		expired := ms.session.FinishedAt != nil && ms.session.FinishedAt.Before(cutoff) && len(ms.subscribers) == 0
		ms.mu.RUnlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*types.OrchestrationSession, error) {
	ms, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.session.Clone(), nil
}

func (s *MemoryStore) ListSessions(ctx context.Context) ([]*types.SessionMeta, error) {
	s.mu.RLock()
	out := make([]*types.SessionMeta, 0, len(s.sessions))
	for _, ms := range s.sessions {
		ms.mu.RLock()
		out = append(out, ms.session.Meta())
		ms.mu.RUnlock()
	}
	s.mu.RUnlock()

	sortMetas(out)
	return out, nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, session *types.OrchestrationSession) error {
	ms, err := s.get(session.ID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.session = session.Clone()
	ms.session.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) UpdateAssignmentState(ctx context.Context, id string, step int, status types.AssignmentStatus) error {
	ms, err := s.get(id)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.session.States == nil {
		ms.session.States = make(map[int]types.AssignmentStatus)
	}
	ms.session.States[step] = status
	ms.session.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) AppendResult(ctx context.Context, id string, result *types.AgentExecutionResult) error {
	ms, err := s.get(id)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.session.Results = append(ms.session.Results, *result)
	ms.session.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, id string, input *types.EventInput) (*types.Event, error) {
	ms, err := s.get(id)
	if err != nil {
		return nil, err
	}

	dataJSON, err := json.Marshal(input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	ms.mu.Lock()
	event := &types.Event{
		ID:        strconv.FormatInt(ms.nextSeq, 10),
		SessionID: id,
		Type:      input.Type,
		Step:      input.Step,
		Timestamp: s.now(),
		Data:      dataJSON,
	}
	ms.nextSeq++

	// Append to ring buffer
	if ms.maxEvents > 0 && int64(len(ms.events)) >= ms.maxEvents {
		ms.events = ms.events[1:]
	}
	ms.events = append(ms.events, event)

	// Copy subscribers to notify outside lock
	subs := make([]chan *types.Event, 0, len(ms.subscribers))
	for ch := range ms.subscribers {
		subs = append(subs, ch)
	}
	ms.mu.Unlock()

	// Notify subscribers (non-blocking)
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Subscriber too slow, skip
		}
	}
	return event, nil
}

func (s *MemoryStore) GetEventsSince(ctx context.Context, id string, lastEventID string) ([]*types.Event, error) {
	ms, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return eventsAfter(ms.events, lastEventID), nil
}

// eventsAfter returns events with a sequence greater than lastEventID.
func eventsAfter(events []*types.Event, lastEventID string) []*types.Event {
	if lastEventID == "" {
		return append([]*types.Event(nil), events...)
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if err != nil {
		return append([]*types.Event(nil), events...)
	}
	var out []*types.Event
	for _, evt := range events {
		if seq, _ := strconv.ParseInt(evt.ID, 10, 64); seq > last {
			out = append(out, evt)
		}
	}
	return out
}

func (s *MemoryStore) Subscribe(ctx context.Context, id string) (<-chan *types.Event, func(), error) {
	ms, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan *types.Event, 100)

	ms.mu.Lock()
	ms.subscribers[ch] = struct{}{}
	ms.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			ms.mu.Lock()
			delete(ms.subscribers, ch)
			ms.mu.Unlock()
		})
	}
	return ch, cleanup, nil
}

func (s *MemoryStore) AdapterInfo(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	count := len(s.sessions)
	s.mu.RUnlock()

	return map[string]interface{}{
		"adapter":       "memory",
		"healthy":       true,
		"session_count": count,
		"max_events":    s.config.EventMaxLen,
		"ttl":           s.config.TTL.String(),
	}, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close all subscriber channels
	for _, ms := range s.sessions {
		ms.mu.Lock()
		for ch := range ms.subscribers {
			close(ch)
		}
		ms.subscribers = make(map[chan *types.Event]struct{})
		ms.mu.Unlock()
	}
	return nil
}

// sortMetas orders sessions newest first.
func sortMetas(metas []*types.SessionMeta) {
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
