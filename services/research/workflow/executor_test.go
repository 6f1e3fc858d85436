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
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestStage is a simple test stage that records execution.
type TestStage struct {
	BaseStage
	executed    bool
	executedMu  sync.Mutex
	returnValue any
	returnError error
	delay       time.Duration
}

func NewTestStage(name, field string, deps []string) *TestStage {
	return &TestStage{
		BaseStage: BaseStage{
			StageName:         name,
			StageDependencies: deps,
			StageField:        field,
			StageTimeout:      5 * time.Second,
		},
		returnValue: name + "_output",
	}
}

func (s *TestStage) Execute(ctx context.Context, _ StateView) (any, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.executedMu.Lock()
	s.executed = true
	s.executedMu.Unlock()

	if s.returnError != nil {
		return nil, s.returnError
	}
	return s.returnValue, nil
}

func (s *TestStage) WasExecuted() bool {
	s.executedMu.Lock()
	defer s.executedMu.Unlock()
	return s.executed
}

func (s *TestStage) WithError(err error) *TestStage {
	s.returnError = err
	return s
}

func (s *TestStage) WithDelay(d time.Duration) *TestStage {
	s.delay = d
	return s
}

func (s *TestStage) WithOutput(output any) *TestStage {
	s.returnValue = output
	return s
}

// recordingObserver captures stage notifications for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	starts    []string
	successes []string
	failures  map[string]string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failures: make(map[string]string)}
}

func (o *recordingObserver) OnStageStart(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, stage)
}

func (o *recordingObserver) OnStageSuccess(stage string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.successes = append(o.successes, stage)
}

func (o *recordingObserver) OnStageFailure(stage string, message string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[stage] = message
}

// --- Run Tests ---

func TestExecutor_Run_SingleStage(t *testing.T) {
	stage := NewTestStage("fetch", "artifact", nil).WithOutput("doc.pdf")

	graph, err := NewBuilder("test").AddStage(stage).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	outcome, err := NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if outcome.RunID == "" {
		t.Error("RunID should not be empty")
	}
	if outcome.Waves != 1 {
		t.Errorf("Waves = %d, want 1", outcome.Waves)
	}
	if outcome.Degraded() {
		t.Error("Degraded() = true, want false")
	}
	if _, ok := outcome.StageDurations["fetch"]; !ok {
		t.Error("StageDurations missing fetch")
	}

	value, ok := st.Value("artifact")
	if !ok || value != "doc.pdf" {
		t.Errorf("Value(artifact) = %v, %v; want %q, true", value, ok, "doc.pdf")
	}
	if !stage.WasExecuted() {
		t.Error("stage was not executed")
	}
}

func TestExecutor_Run_LinearPlan(t *testing.T) {
	fetch := NewTestStage("fetch", "artifact", nil)
	normalize := NewTestStage("normalize", "text", []string{"fetch"})
	aggregate := NewTestStage("aggregate", "report", []string{"normalize"})

	graph, err := NewBuilder("test").
		AddStage(fetch).
		AddStage(normalize).
		AddStage(aggregate).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	outcome, err := NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if outcome.Waves != 3 {
		t.Errorf("Waves = %d, want 3", outcome.Waves)
	}
	if len(st.Errors) != 0 {
		t.Errorf("Errors = %v, want empty", st.Errors)
	}

	// Completion order follows wave order
	want := []string{"fetch", "normalize", "aggregate"}
	if len(st.Completed) != len(want) {
		t.Fatalf("Completed = %v, want %v", st.Completed, want)
	}
	for i, name := range want {
		if st.Completed[i] != name {
			t.Errorf("Completed[%d] = %q, want %q", i, st.Completed[i], name)
		}
	}
}

func TestExecutor_Run_FanOutCompletes(t *testing.T) {
	// fetch → normalize → four siblings → aggregate, the production shape
	builder := NewBuilder("test").
		AddStage(NewTestStage("fetch", "artifact", nil)).
		AddStage(NewTestStage("normalize", "text", []string{"fetch"}))
	siblings := []string{"business_summary", "risk_extraction", "financial_analysis", "comparison"}
	for _, name := range siblings {
		builder.AddStage(NewTestStage(name, name+"_field", []string{"normalize"}))
	}
	builder.AddStage(NewTestStage("aggregate", "report", siblings))

	graph, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	outcome, err := NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if outcome.Waves != 4 {
		t.Errorf("Waves = %d, want 4", outcome.Waves)
	}
	if len(st.Completed) != 7 {
		t.Errorf("Completed = %v, want all 7 stages", st.Completed)
	}
	if len(st.Errors) != 0 {
		t.Errorf("Errors = %v, want empty", st.Errors)
	}
	for _, name := range siblings {
		if _, ok := st.Value(name + "_field"); !ok {
			t.Errorf("field for %q not set", name)
		}
	}
}

func TestExecutor_Run_FaultIsolation(t *testing.T) {
	// fetch → {a, b} → join; a fails, b and join still run
	var joinSawA, joinSawB atomic.Bool

	fetch := NewTestStage("fetch", "artifact", nil)
	a := NewTestStage("a", "fa", []string{"fetch"}).WithError(errors.New("boom"))
	b := NewTestStage("b", "fb", []string{"fetch"})
	join := NewFuncStage("join", "joined", []string{"a", "b"},
		func(_ context.Context, view StateView) (any, error) {
			_, okA := view.Output("a")
			_, okB := view.Output("b")
			joinSawA.Store(okA)
			joinSawB.Store(okB)
			return "joined_output", nil
		})

	graph, err := NewBuilder("test").
		AddStage(fetch).
		AddStage(a).
		AddStage(b).
		AddStage(join).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	outcome, err := NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v, a stage failure must not fail the run", err)
	}

	if !outcome.Degraded() {
		t.Error("Degraded() = false, want true")
	}
	if len(st.Errors) != 1 || st.Errors[0].Stage != "a" || st.Errors[0].Message != "boom" {
		t.Errorf("Errors = %v, want single (a, boom)", st.Errors)
	}

	if !b.WasExecuted() {
		t.Error("sibling b should have executed despite a's failure")
	}
	if st.HasCompleted("a") {
		t.Error("failed stage must not be marked completed")
	}
	for _, name := range []string{"fetch", "b", "join"} {
		if !st.HasCompleted(name) {
			t.Errorf("HasCompleted(%q) = false, want true", name)
		}
	}

	if joinSawA.Load() {
		t.Error("join should not see a value from the failed stage")
	}
	if !joinSawB.Load() {
		t.Error("join should see the surviving sibling's value")
	}
}

func TestExecutor_Run_DownstreamTolerance(t *testing.T) {
	// parse fails; score still runs and reports the missing upstream
	fetch := NewTestStage("fetch", "artifact", nil)
	parse := NewTestStage("parse", "text", []string{"fetch"}).WithError(errors.New("parse failure"))
	score := NewFuncStage("score", "score", []string{"parse"},
		func(_ context.Context, view StateView) (any, error) {
			text, err := view.Require("parse")
			if err != nil {
				return nil, err
			}
			return text, nil
		})

	graph, err := NewBuilder("test").
		AddStage(fetch).
		AddStage(parse).
		AddStage(score).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	_, err = NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(st.Errors) != 2 {
		t.Fatalf("Errors = %v, want parse failure plus score failure", st.Errors)
	}

	se, ok := st.FailureFor("score")
	if !ok {
		t.Fatal("score failure not recorded")
	}
	want := "upstream dependency unavailable: parse"
	if se.Message != want {
		t.Errorf("score failure = %q, want %q", se.Message, want)
	}

	if st.HasCompleted("score") {
		t.Error("score must not be marked completed")
	}
	if !st.HasCompleted("fetch") {
		t.Error("fetch should be completed")
	}
}

func TestExecutor_Run_ParallelSiblings(t *testing.T) {
	var bStarted, cStarted int64

	a := NewFuncStage("a", "fa", nil, func(_ context.Context, _ StateView) (any, error) {
		return "a_out", nil
	})
	b := NewFuncStage("b", "fb", []string{"a"}, func(_ context.Context, _ StateView) (any, error) {
		atomic.StoreInt64(&bStarted, time.Now().UnixNano())
		time.Sleep(50 * time.Millisecond)
		return "b_out", nil
	})
	c := NewFuncStage("c", "fc", []string{"a"}, func(_ context.Context, _ StateView) (any, error) {
		atomic.StoreInt64(&cStarted, time.Now().UnixNano())
		time.Sleep(50 * time.Millisecond)
		return "c_out", nil
	})
	d := NewFuncStage("d", "fd", []string{"b", "c"}, func(_ context.Context, _ StateView) (any, error) {
		return "d_out", nil
	})

	graph, err := NewBuilder("test").
		AddStage(a).
		AddStage(b).
		AddStage(c).
		AddStage(d).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	start := time.Now()
	outcome, err := NewExecutor().Run(context.Background(), graph.Plan(), NewState("S1"))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Waves != 3 {
		t.Errorf("Waves = %d, want 3", outcome.Waves)
	}

	// b and c run in the same wave, so total time should be ~50ms not ~100ms
	if elapsed > 200*time.Millisecond {
		t.Errorf("elapsed = %v, expected < 200ms (parallel execution)", elapsed)
	}

	bStart := atomic.LoadInt64(&bStarted)
	cStart := atomic.LoadInt64(&cStarted)
	diff := bStart - cStart
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(25*time.Millisecond) {
		t.Errorf("b and c start times differ by %v, expected parallel start", time.Duration(diff))
	}
}

func TestExecutor_Run_PartialPlan(t *testing.T) {
	fetch := NewTestStage("fetch", "artifact", nil)
	a := NewTestStage("a", "fa", []string{"fetch"})
	b := NewTestStage("b", "fb", []string{"fetch"})
	join := NewTestStage("join", "joined", []string{"a", "b"})

	graph, err := NewBuilder("test").
		AddStage(fetch).
		AddStage(a).
		AddStage(b).
		AddStage(join).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	plan, err := graph.PlanFor("a")
	if err != nil {
		t.Fatalf("PlanFor(a) error = %v", err)
	}

	st := NewState("S1")
	outcome, err := NewExecutor().Run(context.Background(), plan, st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if outcome.Waves != 2 {
		t.Errorf("Waves = %d, want 2", outcome.Waves)
	}
	if len(st.Completed) != 2 || !st.HasCompleted("fetch") || !st.HasCompleted("a") {
		t.Errorf("Completed = %v, want exactly fetch and a", st.Completed)
	}
	if b.WasExecuted() || join.WasExecuted() {
		t.Error("stages outside the plan must never execute")
	}
	if _, ok := st.Value("fb"); ok {
		t.Error("excluded stage's field must stay unset")
	}
}

func TestExecutor_Run_StageTimeout(t *testing.T) {
	stage := NewTestStage("slow", "out", nil).WithDelay(500 * time.Millisecond)
	stage.StageTimeout = 50 * time.Millisecond

	graph, err := NewBuilder("test").AddStage(stage).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	outcome, err := NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v, stage timeout is stage-local", err)
	}

	if !outcome.Degraded() {
		t.Error("Degraded() = false, want true")
	}
	se, ok := st.FailureFor("slow")
	if !ok {
		t.Fatal("timeout not recorded")
	}
	if se.Message != "timed out after 50ms" {
		t.Errorf("failure = %q, want %q", se.Message, "timed out after 50ms")
	}
}

func TestExecutor_Run_DomainErrorRacesDeadline(t *testing.T) {
	domainErr := errors.New("backend rejected the filing")
	stage := NewFuncStage("slow", "out", nil,
		func(_ context.Context, _ StateView) (any, error) {
			// Overrun the stage deadline without honoring the context,
			// then fail for a reason unrelated to the timeout.
			time.Sleep(120 * time.Millisecond)
			return nil, domainErr
		})
	stage.StageTimeout = 30 * time.Millisecond

	graph, err := NewBuilder("test").AddStage(stage).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	if _, err := NewExecutor().Run(context.Background(), graph.Plan(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	se, ok := st.FailureFor("slow")
	if !ok {
		t.Fatal("failure not recorded")
	}
	if se.Message != domainErr.Error() {
		t.Errorf("failure = %q, want the stage's own error preserved", se.Message)
	}
}

func TestExecutor_Run_PanicRecovery(t *testing.T) {
	root := NewTestStage("root", "fr", nil)
	bad := NewFuncStage("bad", "fbad", []string{"root"},
		func(_ context.Context, _ StateView) (any, error) {
			panic("kaboom")
		})
	good := NewTestStage("good", "fgood", []string{"root"})
	join := NewTestStage("join", "joined", []string{"bad", "good"})

	graph, err := NewBuilder("test").
		AddStage(root).
		AddStage(bad).
		AddStage(good).
		AddStage(join).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	st := NewState("S1")
	_, err = NewExecutor().Run(context.Background(), graph.Plan(), st)
	if err != nil {
		t.Fatalf("Run() error = %v, a panicking stage must not fail the run", err)
	}

	se, ok := st.FailureFor("bad")
	if !ok {
		t.Fatal("panic not recorded as failure")
	}
	if se.Message != "panic: kaboom" {
		t.Errorf("failure = %q, want %q", se.Message, "panic: kaboom")
	}
	if !good.WasExecuted() || !join.WasExecuted() {
		t.Error("siblings and dependents should survive a panic")
	}
}

func TestExecutor_Run_ContextCanceled(t *testing.T) {
	stage := NewTestStage("a", "fa", nil)
	graph, err := NewBuilder("test").AddStage(stage).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewExecutor().Run(ctx, graph.Plan(), NewState("S1"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if stage.WasExecuted() {
		t.Error("stage should not execute under a canceled context")
	}
}

func TestExecutor_Run_CancellationMidRun(t *testing.T) {
	slow := NewTestStage("slow", "fs", nil).WithDelay(500 * time.Millisecond)
	next := NewTestStage("next", "fn", []string{"slow"})

	graph, err := NewBuilder("test").AddStage(slow).AddStage(next).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	st := NewState("S1")
	_, err = NewExecutor().Run(ctx, graph.Plan(), st)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if next.WasExecuted() {
		t.Error("no further wave should start after cancellation")
	}
}

func TestExecutor_Run_NilContext(t *testing.T) {
	graph, _ := NewBuilder("test").AddStage(NewTestStage("a", "fa", nil)).Build()

	var nilCtx context.Context
	_, err := NewExecutor().Run(nilCtx, graph.Plan(), NewState("S1"))
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("error = %v, want ErrNilContext", err)
	}
}

func TestExecutor_Run_NilPlan(t *testing.T) {
	_, err := NewExecutor().Run(context.Background(), nil, NewState("S1"))
	if !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("error = %v, want ErrEmptyPlan", err)
	}
}

func TestExecutor_Run_NilState(t *testing.T) {
	graph, _ := NewBuilder("test").AddStage(NewTestStage("a", "fa", nil)).Build()

	_, err := NewExecutor().Run(context.Background(), graph.Plan(), nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

// --- Observer Tests ---

func TestExecutor_Run_ObserverNotifications(t *testing.T) {
	observer := newRecordingObserver()

	fetch := NewTestStage("fetch", "artifact", nil)
	broken := NewTestStage("broken", "fb", []string{"fetch"}).WithError(errors.New("boom"))

	graph, err := NewBuilder("test").AddStage(fetch).AddStage(broken).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	_, err = NewExecutor(WithObserver(observer)).Run(context.Background(), graph.Plan(), NewState("S1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()

	if len(observer.starts) != 2 {
		t.Errorf("starts = %v, want both stages", observer.starts)
	}
	if len(observer.successes) != 1 || observer.successes[0] != "fetch" {
		t.Errorf("successes = %v, want [fetch]", observer.successes)
	}
	if observer.failures["broken"] != "boom" {
		t.Errorf("failures = %v, want broken → boom", observer.failures)
	}
}

func TestMultiObserver_FanOut(t *testing.T) {
	first := newRecordingObserver()
	second := newRecordingObserver()
	multi := NewMultiObserver(first, nil, second)

	multi.OnStageStart("fetch")
	multi.OnStageSuccess("fetch", time.Second)
	multi.OnStageFailure("parse", "boom", time.Second)

	for _, o := range []*recordingObserver{first, second} {
		o.mu.Lock()
		if len(o.starts) != 1 || len(o.successes) != 1 || o.failures["parse"] != "boom" {
			t.Errorf("observer missed notifications: %+v", o)
		}
		o.mu.Unlock()
	}
}

func TestNopObserver(t *testing.T) {
	var o NopObserver
	o.OnStageStart("a")
	o.OnStageSuccess("a", time.Second)
	o.OnStageFailure("a", "boom", time.Second)
}

// --- BaseStage Tests ---

func TestBaseStage_Execute_ReturnsError(t *testing.T) {
	stage := &BaseStage{StageName: "test"}

	_, err := stage.Execute(context.Background(), StateView{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestBaseStage_Defaults(t *testing.T) {
	stage := &BaseStage{StageName: "test"}

	if stage.Timeout() != DefaultStageTimeout {
		t.Errorf("Timeout() = %v, want %v", stage.Timeout(), DefaultStageTimeout)
	}
	if deps := stage.Dependencies(); deps == nil || len(deps) != 0 {
		t.Errorf("Dependencies() = %v, want empty non-nil", deps)
	}
	if stage.Field() != "" {
		t.Errorf("Field() = %q, want empty", stage.Field())
	}
}

func TestFuncStage_Execute(t *testing.T) {
	executed := false
	stage := NewFuncStage("test", "out", []string{"dep"},
		func(_ context.Context, _ StateView) (any, error) {
			executed = true
			return "result", nil
		})

	output, err := stage.Execute(context.Background(), StateView{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !executed || output != "result" {
		t.Errorf("output = %v, executed = %v", output, executed)
	}
	if stage.Name() != "test" || stage.Field() != "out" {
		t.Errorf("Name() = %q, Field() = %q", stage.Name(), stage.Field())
	}
}

func TestFuncStage_NilFunction(t *testing.T) {
	stage := NewFuncStage("test", "out", nil, nil)

	_, err := stage.Execute(context.Background(), StateView{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestFuncStage_WithTimeout(t *testing.T) {
	stage := NewFuncStage("test", "out", nil, nil).WithTimeout(5 * time.Second)

	if stage.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want %v", stage.Timeout(), 5*time.Second)
	}
}
