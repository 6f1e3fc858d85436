// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
)

var (
	tracer = otel.Tracer("filinglens.workflow")
	meter  = otel.Meter("filinglens.workflow")
)

// Executor runs plans in dependency waves with observability.
//
// Description:
//
//	Executor schedules a plan level by level: every stage whose
//	dependencies have settled runs concurrently in the current wave, and
//	the wave's updates are merged into the State before the next wave is
//	computed. A stage failure settles the stage just like success does,
//	so sibling branches and downstream stages keep running; the failure
//	travels as recorded data. The only run-level errors are structural
//	ones (empty plan, cancellation, a merge conflict).
//
// Thread Safety:
//
//	Executor is safe for concurrent use. Multiple runs can share one
//	Executor, each with its own State.
type Executor struct {
	logger   *slog.Logger
	observer Observer

	// Metrics (initialized lazily)
	metricsOnce    sync.Once
	stageLatency   metric.Float64Histogram
	stageSuccesses metric.Int64Counter
	stageFailures  metric.Int64Counter
	activeStages   metric.Int64UpDownCounter
	runLatency     metric.Float64Histogram
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger for execution logs.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver sets the observer notified of stage transitions.
func WithObserver(observer Observer) ExecutorOption {
	return func(e *Executor) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// NewExecutor creates a new plan executor.
//
// Inputs:
//
//	opts - Optional configuration. Defaults: slog.Default() and a
//	       NopObserver.
//
// Outputs:
//
//	*Executor - The configured executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:   slog.Default(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stageLatency, err = meter.Float64Histogram("workflow_stage_duration_seconds",
			metric.WithDescription("Time spent executing each pipeline stage"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_latency: "+err.Error())
		}

		e.stageSuccesses, err = meter.Int64Counter("workflow_stage_success_total",
			metric.WithDescription("Number of successful stage executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_successes: "+err.Error())
		}

		e.stageFailures, err = meter.Int64Counter("workflow_stage_failure_total",
			metric.WithDescription("Number of failed stage executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_failures: "+err.Error())
		}

		e.activeStages, err = meter.Int64UpDownCounter("workflow_active_stages",
			metric.WithDescription("Number of currently executing stages"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_stages: "+err.Error())
		}

		e.runLatency, err = meter.Float64Histogram("workflow_run_duration_seconds",
			metric.WithDescription("Total pipeline run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		// Log all errors at once at Error level for visibility
		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some workflow metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run executes a plan to completion against a state.
//
// Description:
//
//	Runs every stage in the plan exactly once, in dependency waves.
//	Failed stages are recorded on the state and never abort the run;
//	an Outcome with recorded errors is still a normal completion
//	(degraded result). Run returns an error only for structural
//	problems: a nil or empty plan, context cancellation, or an internal
//	merge conflict.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	plan - The compiled plan to run. Must not be nil or empty.
//	st - The state record for this run. Must not be nil.
//
// Outputs:
//
//	*Outcome - Run identity, final state, timing, and wave count.
//	error - Non-nil only on structural failure.
func (e *Executor) Run(ctx context.Context, plan *Plan, st *State) (*Outcome, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if plan == nil || plan.Size() == 0 {
		return nil, ErrEmptyPlan
	}
	if st == nil {
		return nil, fmt.Errorf("%w: state must not be nil", ErrInvalidInput)
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(
			attribute.String("workflow.graph", plan.GraphName()),
			attribute.String("workflow.target", plan.Target()),
			attribute.Int("workflow.stage_count", plan.Size()),
		),
	)
	defer span.End()

	start := time.Now()
	runID := uuid.NewString()[:12] // 48 bits of entropy

	e.logger.Info("run started",
		slog.String("graph", plan.GraphName()),
		slog.String("run_id", runID),
		slog.String("subject_id", st.SubjectID),
		slog.Int("stages", plan.Size()),
	)

	// Remaining dependency count per pending stage. The plan is closed
	// under dependencies, so every dependency counted here is included.
	pending := make(map[string]int, plan.Size())
	for _, name := range plan.Stages() {
		pending[name] = len(plan.Dependencies(name))
	}

	durations := make(map[string]time.Duration, plan.Size())
	waves := 0

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context canceled")
			return nil, ctx.Err()
		default:
		}

		ready := make([]Stage, 0, len(pending))
		for name, waiting := range pending {
			if waiting == 0 {
				stage, _ := plan.Stage(name)
				ready = append(ready, stage)
			}
		}
		if len(ready) == 0 {
			span.RecordError(ErrNoProgress)
			span.SetStatus(codes.Error, ErrNoProgress.Error())
			return nil, ErrNoProgress
		}

		waves++
		updates := e.runWave(ctx, plan, st, ready, runID, waves, durations)

		merged, err := MergeAll(updates...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("merging wave %d: %w", waves, err)
		}
		if err := st.Apply(merged); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("applying wave %d: %w", waves, err)
		}

		// A settled stage unblocks its dependents whether it succeeded
		// or failed; a dependent of a failed stage still runs and
		// discovers the missing input itself.
		for _, stage := range ready {
			name := stage.Name()
			delete(pending, name)
			for _, dependent := range plan.Dependents(name) {
				if _, waiting := pending[dependent]; waiting {
					pending[dependent]--
				}
			}
		}
	}

	duration := time.Since(start)
	if e.runLatency != nil {
		e.runLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("graph", plan.GraphName())),
		)
	}

	outcome := &Outcome{
		RunID:          runID,
		State:          st,
		Duration:       duration,
		StageDurations: durations,
		Waves:          waves,
	}

	span.SetAttributes(
		attribute.Int("workflow.waves", waves),
		attribute.Int("workflow.failed_stages", len(st.Errors)),
	)
	span.SetStatus(codes.Ok, "")

	if outcome.Degraded() {
		e.logger.Warn("run completed with stage failures",
			slog.String("run_id", runID),
			slog.Duration("duration", duration),
			slog.Int("waves", waves),
			slog.Int("failed_stages", len(st.Errors)),
		)
	} else {
		e.logger.Info("run completed",
			slog.String("run_id", runID),
			slog.Duration("duration", duration),
			slog.Int("waves", waves),
			slog.Int("stages_completed", len(st.Completed)),
		)
	}

	return outcome, nil
}

// runWave executes one wave of ready stages concurrently and returns
// their updates. The caller merges and applies them before computing
// the next wave, so no cross-branch state moves during the wave itself.
func (e *Executor) runWave(
	ctx context.Context,
	plan *Plan,
	st *State,
	ready []Stage,
	runID string,
	wave int,
	durations map[string]time.Duration,
) []Update {
	type waveResult struct {
		name     string
		update   Update
		duration time.Duration
	}

	var wg sync.WaitGroup
	results := make(chan waveResult, len(ready))

	for _, stage := range ready {
		wg.Add(1)
		go func(s Stage) {
			defer wg.Done()

			stageStart := time.Now()
			update := e.executeStage(ctx, plan, st, s, runID, wave)

			results <- waveResult{
				name:     s.Name(),
				update:   update,
				duration: time.Since(stageStart),
			}
		}(stage)
	}

	wg.Wait()
	close(results)

	updates := make([]Update, 0, len(ready))
	for r := range results {
		durations[r.name] = r.duration
		updates = append(updates, r.update)
	}
	return updates
}

// executeStage runs a single stage with observability and converts its
// result into an Update.
func (e *Executor) executeStage(
	ctx context.Context,
	plan *Plan,
	st *State,
	stage Stage,
	runID string,
	wave int,
) (update Update) {
	name := stage.Name()

	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("workflow.stage", name),
			attribute.StringSlice("workflow.dependencies", stage.Dependencies()),
			attribute.String("workflow.run_id", runID),
			attribute.Int("workflow.wave", wave),
		),
	)
	defer span.End()

	// Track active stages
	if e.activeStages != nil {
		e.activeStages.Add(ctx, 1)
		defer e.activeStages.Add(ctx, -1)
	}

	timeout := stage.Timeout()
	if timeout == 0 {
		timeout = DefaultStageTimeout
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.logger.Debug("stage starting",
		slog.String("stage", name),
		slog.String("run_id", runID),
		slog.Int("wave", wave),
	)
	e.observer.OnStageStart(name)

	view := NewStateView(st, stage, plan.FieldOf)
	start := time.Now()

	// A panicking stage must not take down its siblings; the panic is
	// recorded like any other failure.
	defer func() {
		if r := recover(); r != nil {
			update = e.failureUpdate(ctx, span, name, fmt.Sprintf("panic: %v", r), time.Since(start))
		}
	}()

	output, err := stage.Execute(stageCtx, view)
	duration := time.Since(start)

	if e.stageLatency != nil {
		e.stageLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("stage", name)),
		)
	}

	if err != nil {
		message := err.Error()
		// Attribute the deadline to the stage only when the error itself
		// is the expired deadline and the run context is still alive. A
		// domain error that merely raced the deadline keeps its message.
		if errors.Is(err, context.DeadlineExceeded) &&
			stageCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			message = fmt.Sprintf("timed out after %s", timeout)
		}
		return e.failureUpdate(ctx, span, name, message, duration)
	}

	if e.stageSuccesses != nil {
		e.stageSuccesses.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", name)),
		)
	}
	span.SetStatus(codes.Ok, "")
	e.observer.OnStageSuccess(name, duration)

	e.logger.Info("stage completed",
		slog.String("stage", name),
		slog.Duration("duration", duration),
	)

	update = Update{Completed: []string{name}}
	if field := stage.Field(); field != "" {
		update.Fields = map[string]any{field: output}
	}
	return update
}

// failureUpdate records a stage failure in metrics, tracing, the
// observer, and the log, and packages it as an Update carrying only the
// diagnostic. The failed stage never joins the completed list.
func (e *Executor) failureUpdate(
	ctx context.Context,
	span trace.Span,
	stage string,
	message string,
	duration time.Duration,
) Update {
	if e.stageFailures != nil {
		e.stageFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", stage)),
		)
	}
	stageErr := NewStageError(stage, message)
	span.RecordError(stageErr)
	span.SetStatus(codes.Error, message)
	e.observer.OnStageFailure(stage, message, duration)

	e.logger.Warn("stage failed",
		slog.String("stage", stage),
		slog.Duration("duration", duration),
		slog.String("error", message),
	)

	return Update{Errors: []StageError{stageErr}}
}

// Outcome represents the result of a completed run.
//
// A degraded outcome (recorded stage errors, fallback content downstream)
// is still a completed run; there is no separate failure state at the
// run level.
type Outcome struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// State is the final state record, including all diagnostics.
	State *State `json:"state"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`

	// StageDurations tracks execution time per stage.
	StageDurations map[string]time.Duration `json:"stage_durations,omitempty"`

	// Waves is the number of scheduling waves the run took.
	Waves int `json:"waves"`
}

// Degraded reports whether any stage recorded a failure.
func (o *Outcome) Degraded() bool {
	return len(o.State.Errors) > 0
}
