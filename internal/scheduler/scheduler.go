// Package scheduler executes agent assignments over their dependency graph,
// one wave of ready assignments at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/driver"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/memory"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/resilient"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/tracing"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// ErrCancelled is the cancellation cause for sessions stopped by a caller.
var ErrCancelled = errors.New("cancelled")

// errAgentReported marks failures the agent itself answered with.
var errAgentReported = errors.New("agent reported failure")

// Progress receives live assignment state while a session runs.
type Progress interface {
	UpdateAssignmentState(ctx context.Context, id string, step int, status types.AssignmentStatus) error
	AppendResult(ctx context.Context, id string, result *types.AgentExecutionResult) error
}

// Config holds engine configuration.
type Config struct {
	// MaxParallelism limits concurrent invocations per wave (0 = wave size)
	MaxParallelism int

	// AgentTimeout bounds each invocation attempt (0 = session budget only)
	AgentTimeout time.Duration

	// SessionTimeout bounds the whole execution (0 = caller's context only)
	SessionTimeout time.Duration

	// MaxRetries, BackoffInitial and BackoffMax control invocation retries
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// HandoffMaxChars caps each predecessor excerpt (0 = unlimited)
	HandoffMaxChars int

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AgentTimeout:    60 * time.Second,
		SessionTimeout:  5 * time.Minute,
		BackoffInitial:  500 * time.Millisecond,
		BackoffMax:      10 * time.Second,
		HandoffMaxChars: 16000,
	}
}

// Engine runs assignments against an Invoker.
type Engine struct {
	invoker  driver.Invoker
	emitter  driver.EventEmitter
	progress Progress
	cfg      Config
	logger   *slog.Logger
}

// New creates a new engine. emitter and progress may be nil.
func New(invoker driver.Invoker, emitter driver.EventEmitter, progress Progress, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		invoker:  invoker,
		emitter:  emitter,
		progress: progress,
		cfg:      *cfg,
		logger:   logger,
	}
}

// Outcome is the result of executing a session's assignments.
type Outcome struct {
	// Results holds one entry per finished assignment, in step order.
	Results []types.AgentExecutionResult

	States map[int]types.AssignmentStatus

	// Incomplete lists agents whose assignments never reached a terminal state.
	Incomplete []string

	// Err is a CircularDependencyError or SessionTimeoutError when execution
	// stopped early.
	Err error

	Duration time.Duration
}

// Status derives the session status from the outcome.
func (o *Outcome) Status() types.SessionStatus {
	if o.Err != nil {
		return types.SessionStatusPartial
	}
	succeeded := 0
	for _, r := range o.Results {
		if r.Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(o.States):
		return types.SessionStatusCompleted
	case succeeded > 0:
		return types.SessionStatusPartial
	default:
		return types.SessionStatusFailed
	}
}

// run holds the state of one Execute call.
type run struct {
	sessionID string
	byStep    map[int]types.AgentAssignment
	agents    map[string]types.AgentDescriptor
	order     []int
	mem       *memory.Memory

	// mu serializes state changes and result recording.
	mu     sync.Mutex
	states map[int]types.AssignmentStatus
}

// Execute runs assignments until all are terminal, the graph stalls, or the
// session budget runs out. It never returns nil.
func (e *Engine) Execute(ctx context.Context, sessionID string, assignments []types.AgentAssignment, agents []types.AgentDescriptor) *Outcome {
	start := time.Now()

	sctx := ctx
	if e.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, e.cfg.SessionTimeout)
		defer cancel()
	}

	r := &run{
		sessionID: sessionID,
		byStep:    make(map[int]types.AgentAssignment, len(assignments)),
		agents:    make(map[string]types.AgentDescriptor, len(agents)),
		mem:       memory.New(),
		states:    make(map[int]types.AssignmentStatus, len(assignments)),
	}
	for _, a := range assignments {
		r.byStep[a.Step] = a
		r.order = append(r.order, a.Step)
		r.states[a.Step] = types.AssignmentPending
	}
	sort.Ints(r.order)
	for _, a := range agents {
		r.agents[a.ID] = a
	}

	for _, step := range r.order {
		e.recordState(ctx, r, step, types.AssignmentPending)
	}

	var runErr error
	for {
		if sctx.Err() != nil {
			runErr = e.stopped(ctx, sctx, r)
			break
		}

		ready, done := r.ready()
		if done {
			break
		}
		if len(ready) == 0 {
			incomplete := r.incomplete()
			runErr = types.NewCircularDependencyError("no assignment can make progress", incomplete)
			e.logger.Warn("execution stalled",
				slog.String("session_id", sessionID),
				slog.Any("incomplete", incomplete),
			)
			break
		}

		e.runWave(ctx, sctx, r, ready)
	}

	r.mem.Seal()
	e.logger.Info("execution finished",
		slog.String("session_id", sessionID),
		slog.Int("results", r.mem.Len()),
		slog.Int("assignments", len(r.order)),
		slog.Duration("duration", time.Since(start)),
	)

	r.mu.Lock()
	states := make(map[int]types.AssignmentStatus, len(r.states))
	for k, v := range r.states {
		states[k] = v
	}
	r.mu.Unlock()

	out := &Outcome{
		Results:  r.mem.ByStep(),
		States:   states,
		Err:      runErr,
		Duration: time.Since(start),
	}
	if runErr != nil {
		out.Incomplete = r.incomplete()
	}
	return out
}

// stopped builds the error for a session whose budget ran out or that was
// cancelled.
func (e *Engine) stopped(ctx, sctx context.Context, r *run) error {
	incomplete := r.incomplete()
	msg := fmt.Sprintf("session exceeded %s", e.cfg.SessionTimeout)
	if errors.Is(context.Cause(sctx), ErrCancelled) {
		msg = ErrCancelled.Error()
	} else if e.cfg.SessionTimeout <= 0 || ctx.Err() != nil {
		msg = context.Cause(sctx).Error()
	}
	e.logger.Warn("session stopped",
		slog.String("session_id", r.sessionID),
		slog.String("reason", msg),
		slog.Any("incomplete", incomplete),
	)
	return types.NewSessionTimeoutError(msg, incomplete)
}

// ready returns pending steps whose dependencies are all terminal, and
// whether every step is terminal.
func (r *run) ready() ([]int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ready []int
	done := true
	for _, step := range r.order {
		st := r.states[step]
		if !st.IsTerminal() {
			done = false
		}
		if st != types.AssignmentPending {
			continue
		}
		ok := true
		for _, dep := range r.byStep[step].DependsOn {
			if ds, known := r.states[dep]; !known || !ds.IsTerminal() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step)
		}
	}
	return ready, done
}

// incomplete lists agents of non-terminal assignments in step order.
func (r *run) incomplete() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	seen := make(map[string]bool)
	for _, step := range r.order {
		if r.states[step].IsTerminal() {
			continue
		}
		id := r.byStep[step].AgentID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// runWave launches every ready step and waits for all of them.
func (e *Engine) runWave(ctx, sctx context.Context, r *run, wave []int) {
	for _, step := range wave {
		e.transition(ctx, r, step, types.AssignmentPending, types.AssignmentReady)
	}

	limit := e.cfg.MaxParallelism
	if limit <= 0 || limit > len(wave) {
		limit = len(wave)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for _, step := range wave {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-sctx.Done():
				return
			}
			if sctx.Err() != nil {
				return
			}
			e.runStep(ctx, sctx, r, step)
		}(step)
	}
	wg.Wait()
}

// runStep invokes one assignment and records its result.
func (e *Engine) runStep(ctx, sctx context.Context, r *run, step int) {
	a := r.byStep[step]
	if err := e.transition(ctx, r, step, types.AssignmentReady, types.AssignmentRunning); err != nil {
		e.logger.Error("assignment state", slog.Int("step", step), slog.Any("error", err))
		return
	}

	metrics.SchedulerInFlight.Inc()
	defer metrics.SchedulerInFlight.Dec()

	startedAt := time.Now().UTC()
	result := types.AgentExecutionResult{
		Step:      step,
		AgentID:   a.AgentID,
		AgentName: a.AgentName,
		StartedAt: startedAt,
	}

	agent, ok := r.agents[a.AgentID]
	if !ok {
		agent = types.AgentDescriptor{ID: a.AgentID, Name: a.AgentName}
	}
	if result.AgentName == "" {
		result.AgentName = agent.DisplayName()
	}

	input := e.handoff(ctx, r, a)

	spanCtx, span := tracing.Start(sctx, "agent.invoke",
		attribute.String("session.id", r.sessionID),
		attribute.Int("step", step),
		attribute.String("agent.id", a.AgentID),
	)
	callCtx := driver.WithCallInfo(spanCtx, r.sessionID, step)

	policy := resilient.Policy{
		MaxRetries: e.cfg.MaxRetries,
		Initial:    e.cfg.BackoffInitial,
		Max:        e.cfg.BackoffMax,
		Timeout:    e.cfg.AgentTimeout,
		Retryable: func(err error) bool {
			return !errors.Is(err, errAgentReported) && !errors.Is(err, driver.ErrNoEndpoint)
		},
	}
	var reported *types.InvocationResult
	res := resilient.Call(callCtx, policy, func(ctx context.Context, attempt int) (*types.InvocationResult, error) {
		if attempt > 1 {
			e.logger.Debug("retrying agent",
				slog.String("session_id", r.sessionID),
				slog.Int("step", step),
				slog.String("agent_id", a.AgentID),
				slog.Int("attempt", attempt),
			)
		}
		out, err := invoke(ctx, e.invoker, agent, input)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("%w: empty reply", errAgentReported)
		}
		if !out.Success {
			reported = out
			return nil, fmt.Errorf("%w: %s", errAgentReported, out.Error)
		}
		return out, nil
	}, nil)

	result.Duration = time.Since(startedAt)
	result.Attempts = res.Attempts

	// A session that stopped mid-call leaves the assignment incomplete.
	if res.Err != nil && sctx.Err() != nil {
		tracing.End(span, sctx.Err())
		return
	}

	outcome := "success"
	if res.Err == nil {
		result.Output = res.Value.Output
		result.Success = true
		result.Confidence = res.Value.Confidence
	} else {
		var failure error
		switch {
		case errors.Is(res.Err, context.DeadlineExceeded):
			failure = types.NewAgentTimeoutError(step, a.AgentID, res.Err)
			outcome = "timeout"
		case errors.Is(res.Err, errAgentReported) && reported != nil:
			failure = types.NewAgentInvocationError(step, a.AgentID, reported.Error, nil)
			result.Output = reported.Output
			outcome = "failed"
		default:
			failure = types.NewAgentInvocationError(step, a.AgentID, "", res.Err)
			outcome = "failed"
		}
		result.Error = failure.Error()
		result.ErrorKind = types.KindName(failure)
	}
	tracing.End(span, res.Err)

	metrics.AgentInvocationsTotal.WithLabelValues(a.AgentID, outcome).Inc()
	metrics.AgentInvocationDuration.WithLabelValues(a.AgentID).Observe(result.Duration.Seconds())
	metrics.AgentRetries.WithLabelValues(outcome).Observe(float64(res.Attempts))

	e.record(ctx, r, result)
}

// invoke calls the invoker but returns as soon as ctx is done.
func invoke(ctx context.Context, inv driver.Invoker, agent types.AgentDescriptor, task string) (*types.InvocationResult, error) {
	type reply struct {
		res *types.InvocationResult
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := inv.Invoke(ctx, agent, task)
		ch <- reply{res, err}
	}()
	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// record stores a finished result and moves the assignment to its terminal state.
func (e *Engine) record(ctx context.Context, r *run, result types.AgentExecutionResult) {
	to := types.AssignmentCompleted
	if !result.Success {
		to = types.AssignmentFailed
	}

	r.mu.Lock()
	if !r.mem.Append(result) {
		sealed := r.mem.Sealed()
		r.mu.Unlock()
		e.logger.Debug("result dropped",
			slog.String("session_id", r.sessionID),
			slog.Int("step", result.Step),
			slog.Bool("late", sealed),
		)
		return
	}
	r.mu.Unlock()

	if err := e.transition(ctx, r, result.Step, types.AssignmentRunning, to); err != nil {
		e.logger.Error("assignment state", slog.Int("step", result.Step), slog.Any("error", err))
	}

	if e.progress != nil {
		if err := e.progress.AppendResult(ctx, r.sessionID, &result); err != nil {
			e.logger.Warn("failed to store result", slog.String("session_id", r.sessionID), slog.Any("error", err))
		}
	}
	e.emit(ctx, r.sessionID, &types.EventInput{Type: types.EventTypeAgentResult, Step: result.Step, Data: result})

	level := slog.LevelInfo
	if !result.Success {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "agent finished",
		slog.String("session_id", r.sessionID),
		slog.Int("step", result.Step),
		slog.String("agent_id", result.AgentID),
		slog.Bool("success", result.Success),
		slog.Int("attempt", result.Attempts),
		slog.Duration("duration", result.Duration),
	)
}

// transition moves a step between states and publishes the change.
func (e *Engine) transition(ctx context.Context, r *run, step int, from, to types.AssignmentStatus) error {
	r.mu.Lock()
	err := Transition(r.states, step, from, to)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	e.recordState(ctx, r, step, to)
	e.emit(ctx, r.sessionID, &types.EventInput{
		Type: types.EventTypeAssignmentStatus,
		Step: step,
		Data: types.AssignmentStatusEvent{Step: step, AgentID: r.byStep[step].AgentID, From: from, To: to},
	})
	return nil
}

func (e *Engine) recordState(ctx context.Context, r *run, step int, status types.AssignmentStatus) {
	if e.progress == nil {
		return
	}
	if err := e.progress.UpdateAssignmentState(ctx, r.sessionID, step, status); err != nil {
		e.logger.Warn("failed to store assignment state",
			slog.String("session_id", r.sessionID),
			slog.Int("step", step),
			slog.Any("error", err),
		)
	}
}

func (e *Engine) emit(ctx context.Context, sessionID string, input *types.EventInput) {
	if e.emitter == nil {
		return
	}
	if err := e.emitter.EmitEvent(ctx, sessionID, input); err != nil {
		e.logger.Warn("emit event error", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

// handoff builds the task input for an assignment from its predecessors'
// recorded results.
func (e *Engine) handoff(ctx context.Context, r *run, a types.AgentAssignment) string {
	if len(a.DependsOn) == 0 {
		return a.Task
	}

	deps := append([]int(nil), a.DependsOn...)
	sort.Ints(deps)

	var b strings.Builder
	b.WriteString("## Context from Previous Agents\n\n")
	for _, dep := range deps {
		res, ok := r.mem.Get(dep)
		if !ok {
			continue
		}
		name := res.AgentName
		if name == "" {
			name = res.AgentID
		}
		fmt.Fprintf(&b, "### Output from %s (step %d)\n\n", name, dep)
		if res.Success {
			b.WriteString(truncate(res.Output, e.cfg.HandoffMaxChars))
		} else {
			fmt.Fprintf(&b, "[no output: %s]", res.Error)
		}
		b.WriteString("\n\n")
	}
	b.WriteString("## Your Task\n\n")
	b.WriteString(a.Task)

	input := b.String()
	e.emit(ctx, r.sessionID, &types.EventInput{
		Type: types.EventTypeHandoff,
		Step: a.Step,
		Data: types.HandoffEvent{Step: a.Step, AgentID: a.AgentID, FromSteps: deps, InputBytes: len(input)},
	})
	return input
}

// truncate caps s at n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "\n[truncated]"
}
