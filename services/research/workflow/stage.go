// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"fmt"
	"time"
)

// DefaultStageTimeout is the timeout for stages that don't specify one.
// Stage bodies call LLM and network collaborators, so the default is
// generous.
const DefaultStageTimeout = 120 * time.Second

// Stage represents a single unit of work in the pipeline.
//
// Description:
//
//	A stage declares its upstream dependencies by name, reads their
//	outputs from the StateView it is handed, and produces at most one
//	value for the field it owns. A stage knows nothing about its
//	siblings or dependents.
//
//	Expected problems (missing upstream data, collaborator errors,
//	validation failures) are returned as errors, never panics; the
//	Executor records them as StageError data and the run continues.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. Execute may run
//	concurrently with other stages of the same wave.
type Stage interface {
	// Name returns the unique identifier for this stage.
	//
	// Outputs:
	//   string - Unique stage name (e.g., "fetch", "risk_extraction").
	Name() string

	// Dependencies returns the names of stages that must settle first.
	//
	// Outputs:
	//   []string - Names of upstream stages. Empty if none.
	Dependencies() []string

	// Field returns the name of the state field this stage owns.
	//
	// Outputs:
	//   string - Owned field name. Empty if the stage produces nothing.
	Field() string

	// Execute runs the stage's logic.
	//
	// Inputs:
	//   ctx - Context carrying cancellation and the stage timeout.
	//   view - Read-only view restricted to declared dependencies.
	//
	// Outputs:
	//   any - The value for the owned field.
	//   error - Non-nil on failure; recorded as data by the Executor.
	Execute(ctx context.Context, view StateView) (any, error)

	// Timeout returns the maximum execution time for this stage.
	//
	// Outputs:
	//   time.Duration - Maximum execution time. Zero means the default.
	Timeout() time.Duration
}

// BaseStage provides a partial implementation of the Stage interface.
//
// Description:
//
//	BaseStage implements the declarative parts of Stage (name,
//	dependencies, owned field, timeout). Embed this in concrete stage
//	implementations and override Execute.
//
// Example:
//
//	type RiskStage struct {
//	    workflow.BaseStage
//	    llm llm.Client
//	}
//
//	func NewRiskStage(client llm.Client) *RiskStage {
//	    return &RiskStage{
//	        BaseStage: workflow.BaseStage{
//	            StageName:         "risk_extraction",
//	            StageDependencies: []string{"normalize"},
//	            StageField:        "risks",
//	        },
//	        llm: client,
//	    }
//	}
//
//	func (s *RiskStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
//	    // implementation
//	}
type BaseStage struct {
	StageName         string
	StageDependencies []string
	StageField        string
	StageTimeout      time.Duration
}

// Name returns the stage's unique identifier.
func (s *BaseStage) Name() string {
	return s.StageName
}

// Dependencies returns the names of upstream stages.
func (s *BaseStage) Dependencies() []string {
	if s.StageDependencies == nil {
		return []string{}
	}
	return s.StageDependencies
}

// Field returns the owned output field name.
func (s *BaseStage) Field() string {
	return s.StageField
}

// Timeout returns the maximum execution time for this stage.
func (s *BaseStage) Timeout() time.Duration {
	if s.StageTimeout == 0 {
		return DefaultStageTimeout
	}
	return s.StageTimeout
}

// Execute returns an error if called directly.
// Concrete implementations must override this method.
func (s *BaseStage) Execute(_ context.Context, _ StateView) (any, error) {
	return nil, fmt.Errorf("%w: BaseStage.Execute must be overridden by concrete implementation", ErrInvalidInput)
}

// FuncStage wraps a function as a Stage for simple cases.
//
// Description:
//
//	FuncStage allows creating stages from plain functions without
//	defining a full struct, which keeps test pipelines and small wiring
//	code short.
//
// Example:
//
//	stage := workflow.NewFuncStage("score", "score", []string{"parse"},
//	    func(ctx context.Context, view workflow.StateView) (any, error) {
//	        return 42, nil
//	    })
type FuncStage struct {
	BaseStage
	fn func(context.Context, StateView) (any, error)
}

// NewFuncStage creates a stage from a function.
//
// Inputs:
//
//	name - The stage name.
//	field - The owned output field ("" when the stage owns none).
//	deps - Upstream stage names.
//	fn - The function to execute.
//
// Outputs:
//
//	*FuncStage - The function stage.
func NewFuncStage(
	name string,
	field string,
	deps []string,
	fn func(context.Context, StateView) (any, error),
) *FuncStage {
	return &FuncStage{
		BaseStage: BaseStage{
			StageName:         name,
			StageDependencies: deps,
			StageField:        field,
		},
		fn: fn,
	}
}

// Execute runs the wrapped function.
func (s *FuncStage) Execute(ctx context.Context, view StateView) (any, error) {
	if s.fn == nil {
		return nil, ErrInvalidInput
	}
	return s.fn(ctx, view)
}

// WithTimeout sets the timeout for a FuncStage.
func (s *FuncStage) WithTimeout(d time.Duration) *FuncStage {
	s.StageTimeout = d
	return s
}
