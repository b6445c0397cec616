package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Key patterns for Redis storage
	agentKeyPrefix = "agent:"
	agentIndexKey  = "agents:all"
)

// RedisRegistry implements AgentRegistry using Redis for persistence.
// Several orchestrator replicas can share one registry.
type RedisRegistry struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// NewRedisRegistry creates a new Redis-backed agent registry.
func NewRedisRegistry(cfg *RedisConfig) (*RedisRegistry, error) {
	opts := &redis.Options{
		Addr:     "localhost:6379",
		Password: cfg.Password,
		DB:       cfg.DB,
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

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisRegistry{client: client}, nil
}

// NewRedisRegistryFromClient creates a registry from an existing Redis client.
func NewRedisRegistryFromClient(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// agentKey returns the Redis key for an agent.
func agentKey(id string) string {
	return agentKeyPrefix + id
}

func (r *RedisRegistry) save(ctx context.Context, agent *Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("marshal agent: %w", err)
	}
	if err := r.client.Set(ctx, agentKey(agent.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

// Create registers a new agent.
func (r *RedisRegistry) Create(ctx context.Context, req *CreateAgentRequest) (*Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	agent := newAgent(req, time.Now().UTC())
	data, err := json.Marshal(agent)
	if err != nil {
		return nil, fmt.Errorf("marshal agent: %w", err)
	}

	ok, err := r.client.SetNX(ctx, agentKey(req.ID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	if !ok {
		return nil, ErrAgentExists
	}
	if err := r.client.SAdd(ctx, agentIndexKey, req.ID).Err(); err != nil {
		return nil, fmt.Errorf("index agent: %w", err)
	}

	return agent, nil
}

// Get retrieves an agent by ID.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Agent, error) {
	data, err := r.client.Get(ctx, agentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}

	var agent Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("unmarshal agent: %w", err)
	}
	return &agent, nil
}

// Update modifies an existing agent.
func (r *RedisRegistry) Update(ctx context.Context, id string, req *UpdateAgentRequest) (*Agent, error) {
	agent, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(agent, req, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := r.save(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Delete removes an agent.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	key := agentKey(id)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists == 0 {
		return ErrAgentNotFound
	}

	// Delete agent and remove from index atomically
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, agentIndexKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// List returns all agents matching the options.
func (r *RedisRegistry) List(ctx context.Context, opts *ListOptions) ([]*Agent, error) {
	ids, err := r.client.SMembers(ctx, agentIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list agent ids: %w", err)
	}
	if len(ids) == 0 {
		return []*Agent{}, nil
	}

	all := make([]*Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAgentNotFound) {
				// Clean up stale index entry
				r.client.SRem(ctx, agentIndexKey, id)
				continue
			}
			return nil, err
		}
		all = append(all, agent)
	}
	return selectAgents(all, opts), nil
}

// Exists checks if an agent with the given ID exists.
func (r *RedisRegistry) Exists(ctx context.Context, id string) (bool, error) {
	exists, err := r.client.Exists(ctx, agentKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return exists > 0, nil
}

// Ping checks the Redis connection.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases Redis connection resources.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

var _ AgentRegistry = (*RedisRegistry)(nil)
