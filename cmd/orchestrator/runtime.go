package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/analyzer"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/archive"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/config"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/decomposer"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/driver"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/llm"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/matcher"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/orchestrator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/registry"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/resilient"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/scheduler"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/sessionstore"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/validator"
)

// runtime is the wired engine shared by every subcommand.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry registry.AgentRegistry
	agents   *registry.Client
	store    sessionstore.Store
	orch     *orchestrator.Orchestrator

	closers []func() error
}

// Close releases resources in reverse construction order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
}

func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (rt *runtime, err error) {
	rt = &runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.registry, err = buildRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	rt.closers = append(rt.closers, rt.registry.Close)

	filter, err := registry.NewFilter(cfg.AgentFilter)
	if err != nil {
		return nil, err
	}
	rt.agents = registry.NewClient(rt.registry, filter, logger)

	rt.store = buildSessionStore(cfg, logger)
	rt.closers = append(rt.closers, rt.store.Close)

	invoker, err := buildInvoker(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invoker: %w", err)
	}
	if c, ok := invoker.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, c.Close)
	}
	checks := map[string]func(context.Context) error{}
	if p, ok := invoker.(interface{ Ping(context.Context) error }); ok {
		checks["invoker"] = p.Ping
	}
	if cfg.AgentRPS > 0 {
		invoker = driver.NewRateLimitedInvoker(invoker, cfg.AgentRPS, cfg.AgentBurst)
	}

	archiver, err := archive.New(&archive.Config{
		Type:            cfg.ArchiveType,
		Endpoint:        cfg.ArchiveEndpoint,
		Bucket:          cfg.ArchiveBucket,
		Region:          cfg.ArchiveRegion,
		AccessKeyID:     cfg.ArchiveAccessKey,
		SecretAccessKey: cfg.ArchiveSecretKey,
		UseSSL:          cfg.ArchiveUseSSL,
		PathPrefix:      cfg.ArchivePrefix,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	completer := buildCompleter(cfg, logger)
	v := validator.MustNew()
	llmPolicy := resilient.Policy{
		MaxRetries: cfg.LLMMaxRetries,
		Initial:    cfg.BackoffInitial,
		Max:        cfg.BackoffMax,
		Timeout:    cfg.LLMTimeout,
	}

	emitter := driver.NewStoreEmitter(rt.store)
	engine := scheduler.New(invoker, emitter, rt.store, &scheduler.Config{
		MaxParallelism:  cfg.MaxParallelism,
		AgentTimeout:    cfg.AgentTimeout,
		SessionTimeout:  cfg.SessionTimeout,
		MaxRetries:      cfg.AgentMaxRetries,
		BackoffInitial:  cfg.BackoffInitial,
		BackoffMax:      cfg.BackoffMax,
		HandoffMaxChars: cfg.HandoffMaxChars,
		Logger:          logger,
	})

	rt.orch = orchestrator.New(orchestrator.Deps{
		Agents:     rt.agents,
		Analyzer:   analyzer.New(completer, v, analyzer.Config{Policy: llmPolicy, Logger: logger}),
		Decomposer: decomposer.New(completer, v, decomposer.Config{Policy: llmPolicy, MaxSteps: cfg.MaxSteps, Logger: logger}),
		Matcher:    matcher.New(matcher.Config{MinScore: cfg.MatchMinScore, Logger: logger}),
		Engine:     engine,
		Store:      rt.store,
		Archiver:   archiver,

		SessionTimeout: cfg.SessionTimeout,
		Checks:         checks,
		Logger:         logger,
	})

	logger.Info("orchestrator initialized",
		slog.String("registry", cfg.RegistryType),
		slog.String("sessionstore", cfg.SessionStoreType),
		slog.String("invoker", cfg.InvokerType),
		slog.String("archive", cfg.ArchiveType),
		slog.Int("max_parallelism", cfg.MaxParallelism),
		slog.Duration("session_timeout", cfg.SessionTimeout),
	)
	return rt, nil
}

func buildRegistry(cfg *config.Config, logger *slog.Logger) (registry.AgentRegistry, error) {
	switch cfg.RegistryType {
	case "redis":
		return registry.NewRedisRegistry(&registry.RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "file":
		return registry.NewFileRegistry(cfg.RegistryFile, logger)
	case "remote":
		if cfg.RegistryURL == "" {
			return nil, errors.New("ORCH_REGISTRY_URL is required for the remote registry")
		}
		return registry.NewRemoteRegistry(cfg.RegistryURL, nil)
	case "", "memory":
		if cfg.SeedDemoAgents {
			return registry.NewMemoryRegistryWithDefaults(), nil
		}
		return registry.NewMemoryRegistry(), nil
	default:
		return nil, fmt.Errorf("unknown registry type %q", cfg.RegistryType)
	}
}

func buildSessionStore(cfg *config.Config, logger *slog.Logger) sessionstore.Store {
	storeCfg := &sessionstore.Config{
		EventMaxLen: cfg.EventMaxLen,
		TTL:         cfg.SessionTTL,
	}
	if cfg.SessionStoreType != "redis" {
		logger.Info("using in-memory session store")
		return sessionstore.NewMemoryStore(storeCfg)
	}

	redisStore, err := sessionstore.NewRedisStore(&sessionstore.RedisConfig{
		URL:         cfg.RedisURL,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TTL:         cfg.SessionTTL,
		EventMaxLen: cfg.EventMaxLen,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to connect to Redis, falling back to memory session store", "error", err)
		return sessionstore.NewMemoryStore(storeCfg)
	}
	logger.Info("using Redis session store", slog.String("url", cfg.RedisURL))
	return redisStore
}

func buildInvoker(cfg *config.Config, logger *slog.Logger) (driver.Invoker, error) {
	switch cfg.InvokerType {
	case "nats":
		return driver.NewNATSInvoker(driver.NATSConfig{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Logger:        logger,
		})
	case "", "http":
		return driver.NewHTTPInvoker(&driver.HTTPConfig{
			BaseURL: cfg.AgentBaseURL,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown invoker type %q", cfg.InvokerType)
	}
}

// buildCompleter returns the Anthropic client, or the disabled completer
// (heuristic fallbacks only) when no key is configured.
func buildCompleter(cfg *config.Config, logger *slog.Logger) llm.Completer {
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set; analysis and decomposition use fallbacks")
		return llm.Disabled{}
	}
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		logger.Error("failed to create LLM client", "error", err)
		return llm.Disabled{}
	}
	logger.Info("LLM client ready", slog.String("model", client.Model()))
	return client
}
