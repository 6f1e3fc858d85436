// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"fmt"
	"sort"
)

// Builder constructs a Graph with validation.
//
// Description:
//
//	Builder provides a fluent API for assembling a stage graph. Problems
//	found while adding stages accumulate and surface from Build, which
//	also validates dependency resolution, acyclicity, the single
//	entry/terminal shape, and unique field ownership. All of these are
//	definition-time faults: a graph that builds cannot fail structurally
//	at run time.
//
// Thread Safety:
//
//	Builder is NOT safe for concurrent use. Build the graph in a single
//	goroutine.
//
// Example:
//
//	graph, err := workflow.NewBuilder("filing-analysis").
//	    AddStage(fetchStage).
//	    AddStage(normalizeStage).
//	    Build()
type Builder struct {
	name   string
	stages map[string]Stage
	order  []string
	errors []error
}

// NewBuilder creates a new graph builder.
//
// Inputs:
//
//	name - The name for the graph (used in logging/metrics).
//
// Outputs:
//
//	*Builder - The builder instance.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		stages: make(map[string]Stage),
		order:  make([]string, 0),
		errors: make([]error, 0),
	}
}

// AddStage adds a stage to the graph.
//
// Description:
//
//	Records the stage and its declared dependency edges. A nil stage or
//	a duplicate name is recorded as an error and reported by Build.
//
// Inputs:
//
//	stage - The stage to add. Must not be nil.
//
// Outputs:
//
//	*Builder - The builder for chaining.
func (b *Builder) AddStage(stage Stage) *Builder {
	if stage == nil {
		b.errors = append(b.errors, ErrNilStage)
		return b
	}

	name := stage.Name()
	if name == "" {
		b.errors = append(b.errors, fmt.Errorf("%w: stage has empty name", ErrInvalidInput))
		return b
	}
	if _, exists := b.stages[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("stage %q: %w", name, ErrDuplicateStage))
		return b
	}

	b.stages[name] = stage
	b.order = append(b.order, name)
	return b
}

// Build validates and constructs the graph.
//
// Description:
//
//	Validates that every dependency resolves, that the graph is acyclic,
//	that exactly one entry and one terminal exist, and that no two
//	stages own the same output field. The first violation found is
//	returned.
//
// Outputs:
//
//	*Graph - The constructed graph.
//	error - Non-nil if validation fails.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if len(b.stages) == 0 {
		return nil, fmt.Errorf("%w: graph has no stages", ErrInvalidInput)
	}

	deps := make(map[string][]string, len(b.stages))
	dependents := make(map[string][]string, len(b.stages))
	for _, name := range b.order {
		stageDeps := b.stages[name].Dependencies()
		deps[name] = stageDeps
		for _, dep := range stageDeps {
			if _, exists := b.stages[dep]; !exists {
				return nil, fmt.Errorf("stage %q depends on %q: %w", name, dep, ErrStageNotFound)
			}
			dependents[dep] = append(dependents[dep], name)
		}
	}

	if err := b.detectCycles(deps); err != nil {
		return nil, err
	}

	if err := b.validateFields(); err != nil {
		return nil, err
	}

	entry, err := b.findEntry(deps)
	if err != nil {
		return nil, err
	}
	terminal, err := b.findTerminal(dependents)
	if err != nil {
		return nil, err
	}

	return &Graph{
		name:       b.name,
		stages:     b.stages,
		deps:       deps,
		dependents: dependents,
		entry:      entry,
		terminal:   terminal,
	}, nil
}

// detectCycles uses DFS with a recursion stack to detect cycles.
func (b *Builder) detectCycles(deps map[string][]string) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(stage string) error
	dfs = func(stage string) error {
		visited[stage] = true
		recStack[stage] = true
		path = append(path, stage)

		for _, dep := range deps[stage] {
			if !visited[dep] {
				if err := dfs(dep); err != nil {
					return err
				}
			} else if recStack[dep] {
				// Found cycle - locate where it starts
				cycleStart := -1
				for i, name := range path {
					if name == dep {
						cycleStart = i
						break
					}
				}
				cyclePath := append(path[cycleStart:], dep)
				return NewCycleError(cyclePath)
			}
		}

		path = path[:len(path)-1]
		recStack[stage] = false
		return nil
	}

	for _, name := range b.order {
		if !visited[name] {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateFields ensures no output field has two owners.
func (b *Builder) validateFields() error {
	owners := make(map[string]string, len(b.stages))
	for _, name := range b.order {
		field := b.stages[name].Field()
		if field == "" {
			continue
		}
		if owner, taken := owners[field]; taken {
			return fmt.Errorf("stages %q and %q both own field %q: %w",
				owner, name, field, ErrDuplicateField)
		}
		owners[field] = name
	}
	return nil
}

// findEntry locates the single stage with no dependencies.
func (b *Builder) findEntry(deps map[string][]string) (string, error) {
	var entries []string
	for _, name := range b.order {
		if len(deps[name]) == 0 {
			entries = append(entries, name)
		}
	}
	switch len(entries) {
	case 0:
		return "", ErrNoEntry
	case 1:
		return entries[0], nil
	default:
		sort.Strings(entries)
		return "", fmt.Errorf("%w: %v", ErrMultipleEntries, entries)
	}
}

// findTerminal locates the single stage with no dependents.
func (b *Builder) findTerminal(dependents map[string][]string) (string, error) {
	var terminals []string
	for _, name := range b.order {
		if len(dependents[name]) == 0 {
			terminals = append(terminals, name)
		}
	}
	switch len(terminals) {
	case 0:
		return "", ErrNoTerminal
	case 1:
		return terminals[0], nil
	default:
		sort.Strings(terminals)
		return "", fmt.Errorf("%w: %v", ErrMultipleTerminals, terminals)
	}
}

// Graph is a validated stage graph.
//
// Description:
//
//	Graph holds the stages and their dependency relationships. It must
//	be produced by a Builder; a Graph in hand is guaranteed acyclic with
//	exactly one entry and one terminal stage.
//
// Thread Safety:
//
//	Graph is safe for concurrent read access after building. Do not
//	modify stages after calling Build().
type Graph struct {
	name       string
	stages     map[string]Stage
	deps       map[string][]string
	dependents map[string][]string
	entry      string
	terminal   string
}

// Name returns the graph's name.
func (g *Graph) Name() string {
	return g.name
}

// Entry returns the entry stage name (no dependencies).
func (g *Graph) Entry() string {
	return g.entry
}

// Terminal returns the terminal stage name (no dependents).
func (g *Graph) Terminal() string {
	return g.terminal
}

// StageCount returns the number of stages.
func (g *Graph) StageCount() int {
	return len(g.stages)
}

// StageNames returns all stage names, sorted for determinism.
func (g *Graph) StageNames() []string {
	names := make([]string, 0, len(g.stages))
	for name := range g.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stage returns a stage by name.
func (g *Graph) Stage(name string) (Stage, bool) {
	stage, ok := g.stages[name]
	return stage, ok
}

// Dependencies returns the dependency names for a stage.
func (g *Graph) Dependencies(name string) []string {
	return g.deps[name]
}

// Dependents returns the names of stages that depend on a stage.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// FieldOf returns the owned field of a stage, or "" when the stage is
// unknown or owns none.
func (g *Graph) FieldOf(name string) string {
	stage, ok := g.stages[name]
	if !ok {
		return ""
	}
	return stage.Field()
}

// Plan returns an execution plan covering the full graph.
func (g *Graph) Plan() *Plan {
	included := make(map[string]Stage, len(g.stages))
	for name, stage := range g.stages {
		included[name] = stage
	}
	return &Plan{
		graph:  g,
		stages: included,
		target: g.terminal,
	}
}

// PlanFor returns the minimal plan that produces the target stage's
// output.
//
// Description:
//
//	The plan contains the target and its transitive dependencies and
//	nothing else; dependency edges among included stages are preserved
//	unchanged. Stages outside the closure can never execute under the
//	plan, nor appear in its diagnostics. An unknown target fails here,
//	before any execution.
//
// Inputs:
//
//	target - The stage whose output is wanted.
//
// Outputs:
//
//	*Plan - The ancestor-closure plan.
//	error - ErrStageNotFound if the target doesn't exist.
func (g *Graph) PlanFor(target string) (*Plan, error) {
	if _, ok := g.stages[target]; !ok {
		return nil, fmt.Errorf("plan target %q: %w", target, ErrStageNotFound)
	}

	included := make(map[string]Stage)
	queue := []string{target}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := included[name]; seen {
			continue
		}
		included[name] = g.stages[name]
		queue = append(queue, g.deps[name]...)
	}

	return &Plan{
		graph:  g,
		stages: included,
		target: target,
	}, nil
}

// Plan is an executable subset of a graph.
//
// Description:
//
//	A plan is closed under dependencies: every dependency of an included
//	stage is itself included, so the dependency lists of included stages
//	need no restriction. The target is the plan's terminal.
//
// Thread Safety:
//
//	Plan is immutable and safe for concurrent use.
type Plan struct {
	graph  *Graph
	stages map[string]Stage
	target string
}

// Size returns the number of stages in the plan.
func (p *Plan) Size() int {
	return len(p.stages)
}

// Contains reports whether a stage is part of the plan.
func (p *Plan) Contains(name string) bool {
	_, ok := p.stages[name]
	return ok
}

// Target returns the stage whose output the plan produces.
func (p *Plan) Target() string {
	return p.target
}

// GraphName returns the name of the graph the plan was compiled from.
func (p *Plan) GraphName() string {
	return p.graph.name
}

// Stages returns the included stage names, sorted for determinism.
func (p *Plan) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for name := range p.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stage returns an included stage by name.
func (p *Plan) Stage(name string) (Stage, bool) {
	stage, ok := p.stages[name]
	return stage, ok
}

// Dependencies returns the dependency names for an included stage. The
// closure property guarantees every listed dependency is in the plan.
func (p *Plan) Dependencies(name string) []string {
	if _, ok := p.stages[name]; !ok {
		return nil
	}
	return p.graph.deps[name]
}

// Dependents returns the included stages that depend on a stage.
// Dependents outside the plan are excluded; they can never execute.
func (p *Plan) Dependents(name string) []string {
	var out []string
	for _, dependent := range p.graph.dependents[name] {
		if _, ok := p.stages[dependent]; ok {
			out = append(out, dependent)
		}
	}
	return out
}

// FieldOf returns the owned field of an included stage.
func (p *Plan) FieldOf(name string) string {
	stage, ok := p.stages[name]
	if !ok {
		return ""
	}
	return stage.Field()
}
