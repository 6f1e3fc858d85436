// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for the workflow package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilStage is returned when a nil stage is provided.
	ErrNilStage = errors.New("stage must not be nil")

	// ErrDuplicateStage is returned when adding a stage with an existing name.
	ErrDuplicateStage = errors.New("stage with this name already exists")

	// ErrStageNotFound is returned when a referenced stage doesn't exist.
	ErrStageNotFound = errors.New("stage not found")

	// ErrCycleDetected is returned when the graph contains a cycle.
	ErrCycleDetected = errors.New("cycle detected in graph")

	// ErrNoEntry is returned when no stage is free of dependencies.
	ErrNoEntry = errors.New("graph has no entry stage")

	// ErrMultipleEntries is returned when more than one stage has no dependencies.
	ErrMultipleEntries = errors.New("graph has multiple entry stages")

	// ErrNoTerminal is returned when every stage has a dependent.
	ErrNoTerminal = errors.New("graph has no terminal stage")

	// ErrMultipleTerminals is returned when more than one stage has no dependents.
	ErrMultipleTerminals = errors.New("graph has multiple terminal stages")

	// ErrDuplicateField is returned when two stages claim the same output field.
	ErrDuplicateField = errors.New("output field owned by more than one stage")

	// ErrFieldConflict is returned when one merge sees two writes to a field.
	ErrFieldConflict = errors.New("field written twice in one merge")

	// ErrEmptyPlan is returned when a run is attempted with no stages.
	ErrEmptyPlan = errors.New("plan contains no stages")

	// ErrNoProgress is returned when pending stages exist but none are ready.
	ErrNoProgress = errors.New("no progress possible: unsatisfiable dependencies")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// StageError records a single stage failure as data. It lives in
// State.Errors rather than aborting the run; downstream stages and the
// final outcome see it as a diagnostic, not a crash.
type StageError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Error returns the failure description.
func (e StageError) Error() string {
	return fmt.Sprintf("stage %q: %s", e.Stage, e.Message)
}

// NewStageError creates a StageError.
func NewStageError(stage, message string) StageError {
	return StageError{Stage: stage, Message: message}
}

// CycleError provides details about a detected cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap returns ErrCycleDetected for errors.Is matching.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// NewCycleError creates a CycleError.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}

// ConflictError reports a double write to a single-owner field within
// one merge round. This is an internal consistency violation: field
// ownership is validated at build time, so two writes to one field mean
// the engine itself misbehaved.
type ConflictError struct {
	Field string
}

// Error returns the conflict description.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("field %q written by more than one update in a single merge", e.Field)
}

// Unwrap returns ErrFieldConflict for errors.Is matching.
func (e *ConflictError) Unwrap() error {
	return ErrFieldConflict
}
