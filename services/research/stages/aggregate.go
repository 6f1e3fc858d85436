// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/workflow"
)

// AggregatorOutput is the LLM's contribution to the final report; the
// analysis sections themselves are carried over verbatim.
type AggregatorOutput struct {
	ExecutiveSummary     string   `json:"executive_summary" validate:"required"`
	InvestmentHighlights []string `json:"investment_highlights"`
	Concerns             []string `json:"concerns"`
}

// AggregateStage folds the four analysis outputs into one
// comprehensive report. Missing sections degrade to typed defaults
// rather than failing the stage; only the loss of every core analysis
// is fatal.
type AggregateStage struct {
	workflow.BaseStage
	client llm.Client
	logger *slog.Logger
}

func NewAggregateStage(client llm.Client, opts ...Option) *AggregateStage {
	return &AggregateStage{
		BaseStage: workflow.BaseStage{
			StageName: StageAggregate,
			StageDependencies: []string{
				StageBusinessSummary,
				StageRiskExtraction,
				StageFinancialAnalysis,
				StageComparison,
			},
			StageField: FieldReport,
		},
		client: client,
		logger: newSettings(opts).logger,
	}
}

func (s *AggregateStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	summary := optionalOutput[*report.BusinessSummary](view, StageBusinessSummary)
	risks := optionalOutput[*report.RiskAnalysis](view, StageRiskExtraction)
	financials := optionalOutput[*report.FinancialAnalysis](view, StageFinancialAnalysis)
	comparison := optionalOutput[*report.PeriodComparison](view, StageComparison)

	if summary == nil && risks == nil && financials == nil {
		return nil, errors.New("at least one analysis result is required")
	}

	s.logger.Info("Aggregating analysis results")

	prompt, err := renderPrompt(aggregatorPrompt, map[string]any{
		"business_summary":   formatAnalysis(summary, "事業要約"),
		"risk_analysis":      formatAnalysis(risks, "リスク分析"),
		"financial_analysis": formatAnalysis(financials, "財務分析"),
		"period_comparison":  formatAnalysis(comparison, "前期比較"),
	})
	if err != nil {
		return nil, err
	}

	var out AggregatorOutput
	if err := s.client.GenerateStructured(ctx, prompt, &out, llm.GenerationParams{}); err != nil {
		return nil, err
	}

	rep := &report.ComprehensiveReport{
		ExecutiveSummary:     out.ExecutiveSummary,
		InvestmentHighlights: out.InvestmentHighlights,
		Concerns:             out.Concerns,
		PeriodComparison:     comparison,
		GeneratedAt:          time.Now(),
	}
	if summary != nil {
		rep.BusinessSummary = *summary
	} else {
		rep.BusinessSummary = report.DefaultBusinessSummary()
	}
	if risks != nil {
		rep.RiskAnalysis = *risks
	} else {
		rep.RiskAnalysis = report.DefaultRiskAnalysis()
	}
	if financials != nil {
		rep.FinancialAnalysis = *financials
	} else {
		rep.FinancialAnalysis = report.DefaultFinancialAnalysis()
	}

	s.logger.Info("Comprehensive report generated")
	return rep, nil
}

// formatAnalysis renders one analysis section for the aggregation
// prompt. A section whose stage never produced a value becomes
// "{title}: なし" so the model treats it as explicitly absent.
func formatAnalysis[T any](analysis *T, title string) string {
	if analysis == nil {
		return title + ": なし"
	}
	data, err := sonic.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return title + ": なし"
	}
	return string(data)
}
