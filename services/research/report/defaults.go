// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

// Placeholder values substituted when an analysis stage failed and its
// section has no content. They appear verbatim in rendered reports.
const (
	NoAnalysisResult = "分析結果なし"
	Unknown          = "不明"
)

// DefaultBusinessSummary fills the business section when the
// summarization stage produced nothing.
func DefaultBusinessSummary() BusinessSummary {
	return BusinessSummary{
		CompanyName:         Unknown,
		FiscalYear:          Unknown,
		BusinessDescription: NoAnalysisResult,
		GrowthStrategy:      NoAnalysisResult,
	}
}

// DefaultRiskAnalysis fills the risk section when the risk stage
// produced nothing.
func DefaultRiskAnalysis() RiskAnalysis {
	return RiskAnalysis{
		Risks:       []RiskItem{},
		RiskSummary: NoAnalysisResult,
	}
}

// DefaultFinancialAnalysis fills the financial section when the
// financial stage produced nothing.
func DefaultFinancialAnalysis() FinancialAnalysis {
	return FinancialAnalysis{
		RevenueAnalysis:   NoAnalysisResult,
		ProfitAnalysis:    NoAnalysisResult,
		CashFlowAnalysis:  NoAnalysisResult,
		FinancialPosition: NoAnalysisResult,
		Highlights:        []FinancialHighlight{},
		Outlook:           NoAnalysisResult,
	}
}
