package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// RedisStore implements Store backed by Redis.
// The session document is a JSON string, assignment states a hash, results a
// list and events a stream. A sorted set indexes sessions by creation time.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	maxEvents int64
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (redis://host:port/db)
	URL string

	// Password for Redis authentication
	Password string

	// DB is the database number
	DB int

	// Prefix for all keys (default: "sessions")
	Prefix string

	// TTL for session data (default: 24 hours)
	TTL time.Duration

	// Maximum events kept per session stream
	EventMaxLen int64

	// Connection pool settings
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		URL:          "redis://localhost:6379/0",
		Prefix:       "sessions",
		TTL:          24 * time.Hour,
		EventMaxLen:  5000,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisStore creates a new Redis-backed Store.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	opts := &redis.Options{
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Password:     cfg.Password,
		DB:           cfg.DB,
	}

	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.Addr = parsed.Addr
		if parsed.Password != "" && cfg.Password == "" {
			opts.Password = parsed.Password
		}
		if parsed.DB != 0 && cfg.DB == 0 {
			opts.DB = parsed.DB
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "sessions"
	}
	maxEvents := cfg.EventMaxLen
	if maxEvents <= 0 {
		maxEvents = 5000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisStore{
		client:    client,
		prefix:    prefix,
		ttl:       cfg.TTL,
		maxEvents: maxEvents,
		logger:    logger,
	}, nil
}

// Key helpers
func (s *RedisStore) keyDoc(id string) string    { return fmt.Sprintf("%s:%s:doc", s.prefix, id) }
func (s *RedisStore) keyStates(id string) string { return fmt.Sprintf("%s:%s:states", s.prefix, id) }
func (s *RedisStore) keyResults(id string) string {
	return fmt.Sprintf("%s:%s:results", s.prefix, id)
}
func (s *RedisStore) keyEvents(id string) string { return fmt.Sprintf("%s:%s:events", s.prefix, id) }
func (s *RedisStore) keySeq(id string) string    { return fmt.Sprintf("%s:%s:seq", s.prefix, id) }
func (s *RedisStore) keyIndex() string           { return s.prefix + ":index" }

// setTTL refreshes TTL on all keys for a session.
func (s *RedisStore) setTTL(ctx context.Context, id string) error {
	if s.ttl <= 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, s.keyDoc(id), s.ttl)
	pipe.Expire(ctx, s.keyStates(id), s.ttl)
	pipe.Expire(ctx, s.keyResults(id), s.ttl)
	pipe.Expire(ctx, s.keyEvents(id), s.ttl)
	pipe.Expire(ctx, s.keySeq(id), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// refreshTTL is setTTL for writes that already landed: a failed refresh
// leaves the old expiry in place, so it is logged rather than returned.
func (s *RedisStore) refreshTTL(ctx context.Context, id string) {
	if err := s.setTTL(ctx, id); err != nil {
		s.logger.Warn("session ttl refresh failed", slog.String("session_id", id), slog.Any("error", err))
	}
}

func (s *RedisStore) CreateSession(ctx context.Context, session *types.OrchestrationSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.keyDoc(session.ID), doc, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return ErrSessionExists
	}

	if err := s.client.ZAdd(ctx, s.keyIndex(), redis.Z{
		Score:  float64(session.CreatedAt.UnixNano()),
		Member: session.ID,
	}).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*types.OrchestrationSession, error) {
	pipe := s.client.Pipeline()
	docCmd := pipe.Get(ctx, s.keyDoc(id))
	statesCmd := pipe.HGetAll(ctx, s.keyStates(id))
	resultsCmd := pipe.LRange(ctx, s.keyResults(id), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get session: %w", err)
	}

	doc, err := docCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session doc: %w", err)
	}

	var session types.OrchestrationSession
	if err := json.Unmarshal(doc, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	// Live progress recorded while the engine runs overrides the snapshot.
	if states := statesCmd.Val(); len(states) > 0 {
		if session.States == nil {
			session.States = make(map[int]types.AssignmentStatus, len(states))
		}
		for k, v := range states {
			step, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			session.States[step] = types.AssignmentStatus(v)
		}
	}
	if raw := resultsCmd.Val(); len(raw) > len(session.Results) {
		results := make([]types.AgentExecutionResult, 0, len(raw))
		for _, r := range raw {
			var res types.AgentExecutionResult
			if err := json.Unmarshal([]byte(r), &res); err != nil {
				s.logger.Warn("skipping malformed result", slog.String("session_id", id), slog.Any("error", err))
				continue
			}
			results = append(results, res)
		}
		session.Results = results
	}

	return &session, nil
}

func (s *RedisStore) ListSessions(ctx context.Context) ([]*types.SessionMeta, error) {
	ids, err := s.client.ZRevRange(ctx, s.keyIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	metas := make([]*types.SessionMeta, 0, len(ids))
	var expired []interface{}
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		metas = append(metas, session.Meta())
	}

	// Drop index entries whose documents have expired.
	if len(expired) > 0 {
		s.client.ZRem(ctx, s.keyIndex(), expired...)
	}

	sortMetas(metas)
	return metas, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session *types.OrchestrationSession) error {
	session = session.Clone()
	session.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetXX(ctx, s.keyDoc(session.ID), doc, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}

	s.refreshTTL(ctx, session.ID)
	return nil
}

func (s *RedisStore) exists(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, s.keyDoc(id)).Result()
	if err != nil {
		return fmt.Errorf("check session exists: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) UpdateAssignmentState(ctx context.Context, id string, step int, status types.AssignmentStatus) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.keyStates(id), strconv.Itoa(step), string(status)).Err(); err != nil {
		return fmt.Errorf("update assignment state: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendResult(ctx context.Context, id string, result *types.AgentExecutionResult) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.client.RPush(ctx, s.keyResults(id), data).Err(); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendEvent(ctx context.Context, id string, input *types.EventInput) (*types.Event, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	// Increment sequence atomically
	seq, err := s.client.Incr(ctx, s.keySeq(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("incr seq: %w", err)
	}

	now := time.Now().UTC()
	eventID := strconv.FormatInt(seq, 10)

	dataBytes, err := json.Marshal(input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := &types.Event{
		ID:        eventID,
		SessionID: id,
		Type:      input.Type,
		Step:      input.Step,
		Timestamp: now,
		Data:      dataBytes,
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.keyEvents(id),
		MaxLen: s.maxEvents,
		Approx: true,
		Values: map[string]interface{}{
			"seq":  eventID,
			"ts":   now.Format(time.RFC3339Nano),
			"type": string(input.Type),
			"step": strconv.Itoa(input.Step),
			"data": string(dataBytes),
		},
	}).Err(); err != nil {
		return nil, fmt.Errorf("xadd: %w", err)
	}

	s.refreshTTL(ctx, id)
	return event, nil
}

// decodeEntry converts a stream entry back into an event.
func decodeEntry(id string, entry redis.XMessage) *types.Event {
	seqStr, _ := entry.Values["seq"].(string)
	ts, _ := entry.Values["ts"].(string)
	timestamp, _ := time.Parse(time.RFC3339Nano, ts)
	eventType, _ := entry.Values["type"].(string)
	stepStr, _ := entry.Values["step"].(string)
	step, _ := strconv.Atoi(stepStr)
	data, _ := entry.Values["data"].(string)

	return &types.Event{
		ID:        seqStr,
		SessionID: id,
		Type:      types.EventType(eventType),
		Step:      step,
		Timestamp: timestamp,
		Data:      json.RawMessage(data),
	}
}

func (s *RedisStore) GetEventsSince(ctx context.Context, id string, lastEventID string) ([]*types.Event, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.client.XRange(ctx, s.keyEvents(id), "-", "+").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*types.Event{}, nil
		}
		return nil, fmt.Errorf("xrange: %w", err)
	}

	events := make([]*types.Event, 0, len(entries))
	for _, entry := range entries {
		events = append(events, decodeEntry(id, entry))
	}
	return eventsAfter(events, lastEventID), nil
}

// Subscribe tails the session's stream with XREAD so that events appended by
// any replica reach the subscriber.
func (s *RedisStore) Subscribe(ctx context.Context, id string) (<-chan *types.Event, func(), error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, nil, err
	}

	ch := make(chan *types.Event, 100)
	readCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)
		s.streamReader(readCtx, id, ch)
	}()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return ch, cleanup, nil
}

// streamReader reads from the Redis stream and pushes to the channel.
func (s *RedisStore) streamReader(ctx context.Context, id string, ch chan *types.Event) {
	lastID := "$" // Start from latest

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.keyEvents(id), lastID},
			Count:   10,
			Block:   time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Debug("xread failed", slog.String("session_id", id), slog.Any("error", err))
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				lastID = entry.ID
				select {
				case ch <- decodeEntry(id, entry):
				case <-ctx.Done():
					return
				default:
					// Subscriber too slow, skip
				}
			}
		}
	}
}

// AdapterInfo returns diagnostic information.
func (s *RedisStore) AdapterInfo(ctx context.Context) (map[string]interface{}, error) {
	pingStart := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return map[string]interface{}{
			"adapter": "redis",
			"healthy": false,
			"error":   err.Error(),
		}, nil
	}
	pingLatency := time.Since(pingStart)

	count, _ := s.client.ZCard(ctx, s.keyIndex()).Result()
	poolStats := s.client.PoolStats()

	return map[string]interface{}{
		"adapter":       "redis",
		"healthy":       true,
		"session_count": count,
		"details": map[string]interface{}{
			"prefix":       s.prefix,
			"ttl_hours":    s.ttl.Hours(),
			"max_events":   s.maxEvents,
			"ping_latency": pingLatency.String(),
			"pool": map[string]interface{}{
				"hits":       poolStats.Hits,
				"misses":     poolStats.Misses,
				"timeouts":   poolStats.Timeouts,
				"total_conn": poolStats.TotalConns,
				"idle_conn":  poolStats.IdleConns,
				"stale_conn": poolStats.StaleConns,
			},
		},
	}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
