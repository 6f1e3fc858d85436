// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"fmt"
	"time"
)

// State is the shared record threaded through one pipeline run.
//
// Description:
//
//	State carries the run's initial inputs, one output slot per owning
//	stage (the field bag), and two append-only diagnostic lists. Stages
//	never touch a State directly; they receive a read-only StateView and
//	return their contribution, which the Executor folds in via Apply.
//
// Thread Safety:
//
//	State carries no lock. Owned fields are single-writer and the
//	Executor is the only writer, applying merged updates strictly
//	between waves while no stage goroutine is running. Concurrent reads
//	during a wave are safe because the record is frozen for its
//	duration.
type State struct {
	// SubjectID identifies the filing under analysis.
	SubjectID string `json:"subject_id"`

	// PriorSubjectID optionally identifies the predecessor filing used
	// for period comparison. Empty when no comparison subject is set.
	PriorSubjectID string `json:"prior_subject_id,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Fields holds stage outputs keyed by owned field name. Each field
	// has exactly one owning stage; ownership is validated at build
	// time.
	Fields map[string]any `json:"fields"`

	// Errors is the append-only list of recorded stage failures.
	Errors []StageError `json:"errors"`

	// Completed is the append-only list of stages that finished
	// successfully, in completion order. Failed stages never appear
	// here.
	Completed []string `json:"completed"`
}

// NewState creates a fresh run state for a subject.
func NewState(subjectID string) *State {
	return &State{
		SubjectID: subjectID,
		StartedAt: time.Now(),
		Fields:    make(map[string]any),
		Errors:    make([]StageError, 0),
		Completed: make([]string, 0),
	}
}

// WithPrior sets the comparison predecessor and returns the state for
// chaining.
func (s *State) WithPrior(priorSubjectID string) *State {
	s.PriorSubjectID = priorSubjectID
	return s
}

// Value returns the value of an owned field, if set.
func (s *State) Value(field string) (any, bool) {
	v, ok := s.Fields[field]
	return v, ok
}

// HasCompleted reports whether a stage finished successfully.
func (s *State) HasCompleted(stage string) bool {
	for _, name := range s.Completed {
		if name == stage {
			return true
		}
	}
	return false
}

// FailureFor returns the recorded failure for a stage, if any.
func (s *State) FailureFor(stage string) (StageError, bool) {
	for _, se := range s.Errors {
		if se.Stage == stage {
			return se, true
		}
	}
	return StageError{}, false
}

// Apply folds a merged update into the state record.
//
// Description:
//
//	Field writes land in the field bag, diagnostics append, completed
//	stages union in. Writing a field that is already set is the same
//	internal consistency violation as a double write within one merge
//	and returns a ConflictError.
//
// Outputs:
//
//	error - Non-nil on a field conflict.
func (s *State) Apply(u Update) error {
	for field := range u.Fields {
		if _, exists := s.Fields[field]; exists {
			return &ConflictError{Field: field}
		}
	}
	for field, value := range u.Fields {
		s.Fields[field] = value
	}
	s.Errors = append(s.Errors, u.Errors...)
	for _, stage := range u.Completed {
		if !s.HasCompleted(stage) {
			s.Completed = append(s.Completed, stage)
		}
	}
	return nil
}

// Update is one stage execution's partial contribution to the state.
//
// A successful stage contributes its owned field and its own name under
// Completed; a failed stage contributes a single StageError. Updates
// from one wave are combined with Merge before being applied.
type Update struct {
	// Fields maps owned field names to produced values.
	Fields map[string]any `json:"fields,omitempty"`

	// Errors holds failures recorded by this contribution.
	Errors []StageError `json:"errors,omitempty"`

	// Completed holds stages that finished successfully.
	Completed []string `json:"completed,omitempty"`
}

// Merge combines two updates into one.
//
// Description:
//
//	Error lists concatenate and completed sets union, so those parts are
//	commutative, associative, and duplicate-safe. Owned fields take the
//	single writer's value; if both sides wrote the same field the merge
//	fails with a ConflictError rather than silently picking a winner.
//
// Outputs:
//
//	Update - The combined update.
//	error - Non-nil on a field conflict.
func Merge(a, b Update) (Update, error) {
	out := Update{}

	if len(a.Fields) > 0 || len(b.Fields) > 0 {
		out.Fields = make(map[string]any, len(a.Fields)+len(b.Fields))
		for field, value := range a.Fields {
			out.Fields[field] = value
		}
		for field, value := range b.Fields {
			if _, exists := out.Fields[field]; exists {
				return Update{}, &ConflictError{Field: field}
			}
			out.Fields[field] = value
		}
	}

	if len(a.Errors) > 0 || len(b.Errors) > 0 {
		out.Errors = make([]StageError, 0, len(a.Errors)+len(b.Errors))
		out.Errors = append(out.Errors, a.Errors...)
		out.Errors = append(out.Errors, b.Errors...)
	}

	if len(a.Completed) > 0 || len(b.Completed) > 0 {
		seen := make(map[string]bool, len(a.Completed)+len(b.Completed))
		out.Completed = make([]string, 0, len(a.Completed)+len(b.Completed))
		for _, stage := range a.Completed {
			if !seen[stage] {
				seen[stage] = true
				out.Completed = append(out.Completed, stage)
			}
		}
		for _, stage := range b.Completed {
			if !seen[stage] {
				seen[stage] = true
				out.Completed = append(out.Completed, stage)
			}
		}
	}

	return out, nil
}

// MergeAll folds any number of updates into one. The fold is safe in
// any order; only a double-written field can make it fail.
func MergeAll(updates ...Update) (Update, error) {
	out := Update{}
	for _, u := range updates {
		merged, err := Merge(out, u)
		if err != nil {
			return Update{}, err
		}
		out = merged
	}
	return out, nil
}

// StateView is the read-only surface a stage sees during execution.
//
// Description:
//
//	A view exposes the run's initial inputs, the produced values of the
//	stage's declared dependencies, and the diagnostics recorded so far.
//	It deliberately exposes nothing else: a stage can only read what it
//	declared, which keeps the graph's edges honest.
type StateView struct {
	subjectID      string
	priorSubjectID string
	declared       map[string]struct{}
	values         map[string]any
	errors         []StageError
}

// NewStateView builds a view for a stage over the current state.
//
// Inputs:
//
//	st - The state record to view. Must not be nil.
//	stage - The stage the view is for; its declared dependencies bound
//	        what the view exposes.
//	fieldOf - Maps a stage name to its owned field ("" when it owns none).
func NewStateView(st *State, stage Stage, fieldOf func(string) string) StateView {
	view := StateView{
		subjectID:      st.SubjectID,
		priorSubjectID: st.PriorSubjectID,
		declared:       make(map[string]struct{}),
		values:         make(map[string]any),
		errors:         append([]StageError(nil), st.Errors...),
	}
	for _, dep := range stage.Dependencies() {
		view.declared[dep] = struct{}{}
		field := fieldOf(dep)
		if field == "" {
			continue
		}
		if value, ok := st.Value(field); ok {
			view.values[dep] = value
		}
	}
	return view
}

// SubjectID returns the filing under analysis.
func (v StateView) SubjectID() string {
	return v.subjectID
}

// PriorSubjectID returns the comparison predecessor, or "" when unset.
func (v StateView) PriorSubjectID() string {
	return v.priorSubjectID
}

// Output returns the value produced by a declared dependency.
//
// Outputs:
//
//	any - The dependency's owned field value.
//	bool - False when the dependency is undeclared, owns no field, or
//	       did not produce a value (its execution failed).
func (v StateView) Output(dep string) (any, bool) {
	value, ok := v.values[dep]
	return value, ok
}

// Require returns the value produced by a declared dependency or an
// error describing why it is unavailable.
//
// Description:
//
//	The unavailable case is an expected condition: the upstream stage
//	failed and its owned field was never set. Stages surface the
//	returned error as their own failure, which the Executor records as
//	data without touching sibling branches.
func (v StateView) Require(dep string) (any, error) {
	if _, declared := v.declared[dep]; !declared {
		return nil, fmt.Errorf("%w: %q is not a declared dependency", ErrInvalidInput, dep)
	}
	value, ok := v.values[dep]
	if !ok {
		return nil, fmt.Errorf("upstream dependency unavailable: %s", dep)
	}
	return value, nil
}

// Errors returns a copy of the diagnostics recorded before this wave.
// Failures from stages in the same wave are not yet visible.
func (v StateView) Errors() []StageError {
	return append([]StageError(nil), v.errors...)
}
