// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stages holds the concrete pipeline stages for filing
// analysis: fetch, normalize, the four parallel analyses, and the
// aggregation that folds their results into one report.
package stages

import (
	"fmt"
	"log/slog"

	"github.com/harborline/filinglens/services/research/workflow"
)

// Option configures a stage at construction time.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets the logger stages emit progress through. Stages fall
// back to slog.Default when none is given.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stage names. These are the identifiers used in graphs, diagnostics,
// and partial-run targets.
const (
	StageFetch             = "fetch"
	StageNormalize         = "normalize"
	StageBusinessSummary   = "business_summary"
	StageRiskExtraction    = "risk_extraction"
	StageFinancialAnalysis = "financial_analysis"
	StageComparison        = "comparison"
	StageAggregate         = "aggregate"
)

// Owned state fields, one per producing stage.
const (
	FieldFiling          = "filing"
	FieldDocument        = "document"
	FieldBusinessSummary = "business_summary"
	FieldRisks           = "risks"
	FieldFinancials      = "financials"
	FieldComparison      = "comparison"
	FieldReport          = "report"
)

// FilingArtifact is the fetch stage's output: local paths for the
// subject filing and, when a comparison predecessor was requested, the
// prior filing.
type FilingArtifact struct {
	DocID      string `json:"doc_id"`
	Path       string `json:"path"`
	PriorDocID string `json:"prior_doc_id,omitempty"`
	PriorPath  string `json:"prior_path,omitempty"`
}

// NormalizedText is the normalize stage's output: extracted markdown
// for the subject filing (and the prior filing when present), tagged
// with the extraction strategy that produced each.
type NormalizedText struct {
	Content       string `json:"content"`
	Strategy      string `json:"strategy"`
	Pages         int    `json:"pages"`
	PriorContent  string `json:"prior_content,omitempty"`
	PriorStrategy string `json:"prior_strategy,omitempty"`
}

// dependencyOutput pulls a typed value from a declared dependency. An
// unavailable upstream surfaces as the view's error so the stage fails
// with the standard diagnostic.
func dependencyOutput[T any](view workflow.StateView, dep string) (T, error) {
	var zero T
	value, err := view.Require(dep)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("dependency %s produced %T, expected %T", dep, value, zero)
	}
	return typed, nil
}

// optionalOutput returns the dependency's value or the type's zero
// value when the upstream never produced one. Used where a missing
// input degrades the result instead of failing the stage.
func optionalOutput[T any](view workflow.StateView, dep string) T {
	var zero T
	value, ok := view.Output(dep)
	if !ok {
		return zero
	}
	typed, ok := value.(T)
	if !ok {
		return zero
	}
	return typed
}
