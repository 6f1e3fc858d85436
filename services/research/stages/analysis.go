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

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/docparse"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/workflow"
)

// The three analysis stages run in the same wave, each reading the
// normalized markdown and producing one structured section of the
// final report.

// analyzeContent renders a single-document analysis prompt and decodes
// the structured response into out.
func analyzeContent(ctx context.Context, client llm.Client, template, content string, out any) error {
	prompt, err := renderPrompt(template, map[string]any{
		"content": docparse.TruncateRunes(content, maxContentRunes),
	})
	if err != nil {
		return err
	}
	return client.GenerateStructured(ctx, prompt, out, llm.GenerationParams{})
}

// BusinessSummaryStage extracts the business overview: segments,
// products, competitive advantages, and growth strategy.
type BusinessSummaryStage struct {
	workflow.BaseStage
	client llm.Client
	logger *slog.Logger
}

func NewBusinessSummaryStage(client llm.Client, opts ...Option) *BusinessSummaryStage {
	return &BusinessSummaryStage{
		BaseStage: workflow.BaseStage{
			StageName:         StageBusinessSummary,
			StageDependencies: []string{StageNormalize},
			StageField:        FieldBusinessSummary,
		},
		client: client,
		logger: newSettings(opts).logger,
	}
}

func (s *BusinessSummaryStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	text, err := dependencyOutput[*NormalizedText](view, StageNormalize)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Extracting business summary", slog.Int("chars", len(text.Content)))

	var out report.BusinessSummary
	if err := analyzeContent(ctx, s.client, businessSummaryPrompt, text.Content, &out); err != nil {
		return nil, err
	}
	s.logger.Info("Business summary extracted", slog.String("company", out.CompanyName))
	return &out, nil
}

// RiskExtractionStage pulls individual risks with category and
// severity from the risk sections of the filing.
type RiskExtractionStage struct {
	workflow.BaseStage
	client llm.Client
	logger *slog.Logger
}

func NewRiskExtractionStage(client llm.Client, opts ...Option) *RiskExtractionStage {
	return &RiskExtractionStage{
		BaseStage: workflow.BaseStage{
			StageName:         StageRiskExtraction,
			StageDependencies: []string{StageNormalize},
			StageField:        FieldRisks,
		},
		client: client,
		logger: newSettings(opts).logger,
	}
}

func (s *RiskExtractionStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	text, err := dependencyOutput[*NormalizedText](view, StageNormalize)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Extracting risks", slog.Int("chars", len(text.Content)))

	var out report.RiskAnalysis
	if err := analyzeContent(ctx, s.client, riskExtractionPrompt, text.Content, &out); err != nil {
		return nil, err
	}
	s.logger.Info("Risk analysis extracted", slog.Int("risks", len(out.Risks)))
	return &out, nil
}

// FinancialAnalysisStage summarizes revenue, profit, cash flow, and
// financial position, with key metrics.
type FinancialAnalysisStage struct {
	workflow.BaseStage
	client llm.Client
	logger *slog.Logger
}

func NewFinancialAnalysisStage(client llm.Client, opts ...Option) *FinancialAnalysisStage {
	return &FinancialAnalysisStage{
		BaseStage: workflow.BaseStage{
			StageName:         StageFinancialAnalysis,
			StageDependencies: []string{StageNormalize},
			StageField:        FieldFinancials,
		},
		client: client,
		logger: newSettings(opts).logger,
	}
}

func (s *FinancialAnalysisStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	text, err := dependencyOutput[*NormalizedText](view, StageNormalize)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Analyzing financials", slog.Int("chars", len(text.Content)))

	var out report.FinancialAnalysis
	if err := analyzeContent(ctx, s.client, financialAnalysisPrompt, text.Content, &out); err != nil {
		return nil, err
	}
	s.logger.Info("Financial analysis extracted", slog.Int("highlights", len(out.Highlights)))
	return &out, nil
}
