// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"log/slog"
	"strings"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/docparse"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/workflow"
)

// ComparisonStage extracts period-over-period changes. With a prior
// filing it compares the two documents directly; without one it mines
// the subject filing's own year-over-year statements.
type ComparisonStage struct {
	workflow.BaseStage
	client llm.Client
	logger *slog.Logger
}

func NewComparisonStage(client llm.Client, opts ...Option) *ComparisonStage {
	return &ComparisonStage{
		BaseStage: workflow.BaseStage{
			StageName:         StageComparison,
			StageDependencies: []string{StageNormalize},
			StageField:        FieldComparison,
		},
		client: client,
		logger: newSettings(opts).logger,
	}
}

func (s *ComparisonStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	text, err := dependencyOutput[*NormalizedText](view, StageNormalize)
	if err != nil {
		return nil, err
	}

	var (
		prompt string
		mode   string
	)
	if strings.TrimSpace(text.PriorContent) != "" {
		mode = report.ComparisonModeTwoDocument
		s.logger.Info("Comparing periods",
			slog.Int("current_chars", len(text.Content)),
			slog.Int("prior_chars", len(text.PriorContent)))
		prompt, err = renderPrompt(periodComparisonPrompt, map[string]any{
			"current_content": docparse.TruncateRunes(text.Content, maxComparisonRunes),
			"prior_content":   docparse.TruncateRunes(text.PriorContent, maxComparisonRunes),
		})
	} else {
		mode = report.ComparisonModeSingleDocument
		s.logger.Info("Extracting period changes from single document", slog.Int("chars", len(text.Content)))
		prompt, err = renderPrompt(periodComparisonSinglePrompt, map[string]any{
			"content": docparse.TruncateRunes(text.Content, maxContentRunes),
		})
	}
	if err != nil {
		return nil, err
	}

	var out report.PeriodComparison
	if err := s.client.GenerateStructured(ctx, prompt, &out, llm.GenerationParams{}); err != nil {
		return nil, err
	}
	out.Mode = mode

	s.logger.Info("Period comparison completed", slog.Int("change_points", len(out.ChangePoints)))
	return &out, nil
}
