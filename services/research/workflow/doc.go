// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow provides a wave-scheduled DAG executor for analysis
// pipelines.
//
// The framework enables:
//   - Parallel execution of independent stages within a wave
//   - Explicit dependencies between stages
//   - Stage fault isolation: a failed stage becomes recorded data, not
//     a run abort, and sibling branches keep running
//   - Partial plans covering only a target stage and its ancestors
//   - Unified tracing via OpenTelemetry
//
// Each stage owns at most one output field on the shared State. Stages
// never write the State directly; every execution yields an Update, and
// the Executor folds the updates of a wave into the State through the
// merge reducer before the next wave is scheduled. All cross-branch
// communication happens at those wave boundaries.
//
// # Thread Safety
//
// Graph and Plan are immutable after Build and safe for concurrent use.
// State is single-writer: only the Executor mutates it, between waves.
//
// # Example
//
//	fetch := workflow.NewFuncStage("fetch", "artifact", nil, fetchFn)
//	parse := workflow.NewFuncStage("parse", "text", []string{"fetch"}, parseFn)
//	score := workflow.NewFuncStage("score", "score", []string{"parse"}, scoreFn)
//
//	graph, err := workflow.NewBuilder("analysis").
//	    AddStage(fetch).
//	    AddStage(parse).
//	    AddStage(score).
//	    Build()
//
//	exec := workflow.NewExecutor(workflow.WithLogger(logger))
//	outcome, err := exec.Run(ctx, graph.Plan(), workflow.NewState("S100ABC1"))
package workflow
