// Package orchestrator runs the full pipeline for one query: analyze,
// decompose, match, plan, execute and consolidate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/analyzer"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/archive"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/consolidator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/decomposer"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/driver"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/matcher"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/planner"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/scheduler"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/sessionstore"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/tracing"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

var (
	// ErrInvalidRequest is returned for requests that cannot start a session.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSessionFinished is returned when cancelling a session that already ended.
	ErrSessionFinished = errors.New("session already finished")

	// ErrNotRunningHere is returned when cancelling a session owned by another replica.
	ErrNotRunningHere = errors.New("session is not running on this instance")

	// ErrArchiveDisabled is returned for archive links when no archiver is set.
	ErrArchiveDisabled = errors.New("session archiving is disabled")
)

// AgentSource supplies the agent snapshot for a session.
type AgentSource interface {
	ListAgents(ctx context.Context) ([]types.AgentDescriptor, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	Agents     AgentSource
	Analyzer   *analyzer.Analyzer
	Decomposer *decomposer.Decomposer
	Matcher    *matcher.Matcher
	Engine     *scheduler.Engine
	Store      sessionstore.Store

	// Archiver is optional; nil disables archiving.
	Archiver *archive.Archiver

	// SessionTimeout bounds the whole pipeline, analysis included (0 = none).
	SessionTimeout time.Duration

	// Checks are extra readiness probes reported by Health, keyed by name.
	Checks map[string]func(context.Context) error

	Logger *slog.Logger
}

// Orchestrator owns session lifecycle.
type Orchestrator struct {
	agents     AgentSource
	analyzer   *analyzer.Analyzer
	decomposer *decomposer.Decomposer
	matcher    *matcher.Matcher
	engine     *scheduler.Engine
	store      sessionstore.Store
	emitter    *driver.StoreEmitter
	archiver   *archive.Archiver
	timeout    time.Duration
	checks     map[string]func(context.Context) error
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		agents:     deps.Agents,
		analyzer:   deps.Analyzer,
		decomposer: deps.Decomposer,
		matcher:    deps.Matcher,
		engine:     deps.Engine,
		store:      deps.Store,
		emitter:    driver.NewStoreEmitter(deps.Store),
		archiver:   deps.Archiver,
		timeout:    deps.SessionTimeout,
		checks:     deps.Checks,
		logger:     logger,
		active:     make(map[string]context.CancelCauseFunc),
	}
}

// Store returns the session store for event streaming.
func (o *Orchestrator) Store() sessionstore.Store {
	return o.store
}

// Agents returns the current usable agent snapshot.
func (o *Orchestrator) Agents(ctx context.Context) ([]types.AgentDescriptor, error) {
	return o.agents.ListAgents(ctx)
}

// Handle runs one orchestration to completion. The returned error is non-nil
// only when no session could be started (ErrInvalidRequest or
// sessionstore.ErrSessionExists); every other failure is reported in the
// response.
func (o *Orchestrator) Handle(ctx context.Context, req *types.OrchestrateRequest) (*types.OrchestrateResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	sess := &types.OrchestrationSession{
		ID:        id,
		Query:     query,
		Context:   req.Context,
		Status:    types.SessionStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := o.store.CreateSession(ctx, sess)
	metrics.RecordStoreOp("create_session", err)
	if err != nil {
		if errors.Is(err, sessionstore.ErrSessionExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	sctx, cancel := context.WithCancelCause(ctx)
	o.mu.Lock()
	o.active[id] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()
		cancel(nil)
	}()

	if o.timeout > 0 {
		var stop context.CancelFunc
		sctx, stop = context.WithTimeoutCause(sctx, o.timeout, fmt.Errorf("session exceeded %s", o.timeout))
		defer stop()
	}

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	sctx, span := tracing.Start(sctx, "orchestrate", attribute.String("session_id", id))
	logger := o.logger.With(slog.String("session_id", id))
	logger.Info("session started", slog.String("query", truncate(query, 200)))

	o.emit(sctx, id, types.EventTypeSessionStatus, 0, map[string]interface{}{"status": types.SessionStatusRunning})

	runErr := o.run(sctx, sess, logger)
	o.finalize(ctx, sess, runErr, logger)
	tracing.End(span, runErr)

	return buildResponse(sess), nil
}

// run executes the pipeline, filling sess. A non-nil error means the session
// failed before or instead of execution.
func (o *Orchestrator) run(ctx context.Context, sess *types.OrchestrationSession, logger *slog.Logger) error {
	sess.Analysis = o.analyzer.Analyze(ctx, sess.Query, sess.Context)
	o.emit(ctx, sess.ID, types.EventTypeAnalysis, 0, sess.Analysis)

	agents, err := o.agents.ListAgents(ctx)
	if err != nil {
		if stopErr := interrupted(ctx); stopErr != nil {
			logger.Warn("session stopped before execution", slog.String("reason", stopErr.Error()))
			return stopErr
		}
		logger.Warn("agent listing failed", slog.Any("error", err))
		return types.NewNoAgentsAvailableError("capability registry unavailable", err)
	}
	if len(agents) == 0 {
		return types.NewNoAgentsAvailableError("registry returned no usable agents", nil)
	}
	sess.Agents = agents

	if sess.Analysis.WorkflowPattern == types.PatternMultiAgent {
		sess.Steps = o.decomposer.Decompose(ctx, sess.Query, sess.Analysis, agents)
	} else {
		sess.Steps = decomposer.Single(sess.Query, sess.Analysis)
	}

	assignments, err := o.matcher.Match(sess.Steps, agents)
	if err != nil {
		return err
	}
	sess.Assignments = assignments

	plan, err := planner.Plan(assignments)
	if err != nil {
		logger.Warn("invalid execution plan", slog.Any("error", err))
		return err
	}
	sess.Plan = plan
	metrics.StrategiesTotal.WithLabelValues(string(plan.Strategy)).Inc()
	o.emit(ctx, sess.ID, types.EventTypePlan, 0, map[string]interface{}{
		"strategy":    plan.Strategy,
		"levels":      plan.Levels,
		"assignments": assignments,
	})

	o.save(ctx, sess, logger)

	logger.Info("executing plan",
		slog.String("strategy", string(plan.Strategy)),
		slog.Int("steps", len(assignments)),
	)
	outcome := o.engine.Execute(ctx, sess.ID, assignments, agents)

	sess.Results = outcome.Results
	sess.States = outcome.States
	sess.Status = outcome.Status()
	sess.IncompleteAgents = outcome.Incomplete
	if outcome.Err != nil {
		sess.Error = outcome.Err.Error()
		sess.ErrorKind = types.KindName(outcome.Err)
	} else if sess.Status != types.SessionStatusCompleted {
		failed := 0
		for _, r := range outcome.Results {
			if !r.Success {
				failed++
			}
		}
		sess.Error = fmt.Sprintf("%d of %d agents failed", failed, len(outcome.Results))
		sess.ErrorKind = types.KindName(types.ErrAgentInvocation)
	}

	sess.Consolidated = consolidator.Consolidate(outcome.Results, assignments)
	o.emit(ctx, sess.ID, types.EventTypeConsolidated, 0, sess.Consolidated)
	return nil
}

// finalize records the terminal state. It runs on a context detached from
// cancellation so a stopped session is still persisted.
func (o *Orchestrator) finalize(parent context.Context, sess *types.OrchestrationSession, runErr error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
	defer cancel()

	if runErr != nil {
		sess.Status = types.SessionStatusFailed
		if errors.Is(runErr, types.ErrSessionTimeout) {
			sess.Status = types.SessionStatusPartial
		}
		sess.Error = runErr.Error()
		sess.ErrorKind = types.KindName(runErr)
		var oe *types.OrchestrationError
		if errors.As(runErr, &oe) {
			sess.IncompleteAgents = oe.Incomplete
		}
		sess.Consolidated = &types.ConsolidatedOutput{
			Categories:    map[types.Category][]types.Segment{},
			FinalResponse: failureMessage(runErr),
			Contributors:  []string{},
		}
	}

	finished := time.Now().UTC()
	sess.FinishedAt = &finished
	sess.UpdatedAt = finished
	duration := finished.Sub(sess.CreatedAt)

	o.save(ctx, sess, logger)
	o.emit(ctx, sess.ID, types.EventTypeSessionStatus, 0, map[string]interface{}{
		"status":     sess.Status,
		"error":      sess.Error,
		"error_kind": sess.ErrorKind,
	})
	o.emit(ctx, sess.ID, types.EventTypeStreamEnd, 0, map[string]interface{}{"status": sess.Status})

	metrics.SessionsTotal.WithLabelValues(string(sess.Status)).Inc()
	metrics.SessionDuration.WithLabelValues(string(sess.Status)).Observe(duration.Seconds())

	if o.archiver != nil {
		if _, err := o.archiver.ArchiveSession(ctx, sess); err != nil {
			logger.Warn("session archive failed", slog.Any("error", err))
		}
	}

	logger.Info("session finished",
		slog.String("status", string(sess.Status)),
		slog.Duration("duration", duration),
		slog.String("error_kind", sess.ErrorKind),
	)
}

func (o *Orchestrator) save(ctx context.Context, sess *types.OrchestrationSession, logger *slog.Logger) {
	err := o.store.SaveSession(ctx, sess)
	metrics.RecordStoreOp("save_session", err)
	if err != nil {
		logger.Warn("save session failed", slog.Any("error", err))
	}
}

func (o *Orchestrator) emit(ctx context.Context, sessionID string, typ types.EventType, step int, data interface{}) {
	if err := o.emitter.EmitEvent(ctx, sessionID, &types.EventInput{Type: typ, Step: step, Data: data}); err != nil {
		o.logger.Debug("emit event failed",
			slog.String("session_id", sessionID),
			slog.String("type", string(typ)),
			slog.Any("error", err),
		)
	}
}

// GetSession returns a session snapshot, falling back to the archive for
// sessions the store no longer holds.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*types.OrchestrationSession, error) {
	sess, err := o.store.GetSession(ctx, id)
	metrics.RecordStoreOp("get_session", err)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sessionstore.ErrSessionNotFound) || o.archiver == nil {
		return nil, err
	}

	archived, aerr := o.archiver.LoadSession(ctx, id)
	if aerr != nil {
		if !errors.Is(aerr, archive.ErrNotFound) {
			o.logger.Warn("archive lookup failed", slog.String("session_id", id), slog.Any("error", aerr))
		}
		return nil, err
	}
	return archived, nil
}

// ArchiveURL returns a time-limited download link for an archived session.
// It fails with archive.ErrNotFound until the session has been archived.
func (o *Orchestrator) ArchiveURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	if o.archiver == nil {
		return "", ErrArchiveDisabled
	}
	if _, err := o.archiver.LoadSession(ctx, id); err != nil {
		return "", err
	}
	return o.archiver.DownloadURL(ctx, id, expiry)
}

// ListSessions lists sessions held by the store, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]*types.SessionMeta, error) {
	metas, err := o.store.ListSessions(ctx)
	metrics.RecordStoreOp("list_sessions", err)
	return metas, err
}

// CancelSession stops a running session. It finalizes as partial with the
// unfinished agents listed as incomplete.
func (o *Orchestrator) CancelSession(ctx context.Context, id string) error {
	o.mu.Lock()
	cancel, ok := o.active[id]
	o.mu.Unlock()
	if ok {
		cancel(scheduler.ErrCancelled)
		o.logger.Info("session cancel requested", slog.String("session_id", id))
		return nil
	}

	sess, err := o.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status.IsTerminal() {
		return ErrSessionFinished
	}
	// Running on another replica; nothing to cancel here.
	return fmt.Errorf("%w: %s", ErrNotRunningHere, id)
}

// IsActive reports whether a session is executing on this instance.
func (o *Orchestrator) IsActive(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[id]
	return ok
}

// HealthReport describes dependency reachability.
type HealthReport struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Health pings the registry, the session store and any extra checks.
func (o *Orchestrator) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{Ready: true, Checks: map[string]string{}}

	check := func(name string, err error) {
		if err != nil {
			report.Ready = false
			report.Checks[name] = err.Error()
			return
		}
		report.Checks[name] = "ok"
	}
	check("registry", o.agents.Ping(ctx))
	check("sessionstore", o.store.Ping(ctx))
	for name, fn := range o.checks {
		check(name, fn(ctx))
	}
	return report
}

// interrupted reports a cancelled or expired session as a SessionTimeoutError.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return types.NewSessionTimeoutError(context.Cause(ctx).Error(), nil)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrSessionTimeout):
		return "The request was stopped before any agent could run."
	case errors.Is(err, types.ErrNoAgentsAvailable):
		return "No agents are available to handle this request."
	case errors.Is(err, types.ErrCircularDependency):
		return "The request could not be planned: the steps depend on each other in a cycle."
	default:
		return "The request could not be completed."
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
