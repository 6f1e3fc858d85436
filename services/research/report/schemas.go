// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report defines the structured analysis outputs produced by
// the pipeline stages and renders them for humans.
//
// Every type here doubles as an LLM output contract: the llm package
// reflects a JSON schema from the struct tags, and the validate tags
// reject model responses that drop required fields. All narrative text
// is Japanese because the source filings are.
package report

import "time"

// Severity grades a finding. The Japanese values come straight from
// model output, so keep them stable.
type Severity string

const (
	SeverityHigh   Severity = "高"
	SeverityMedium Severity = "中"
	SeverityLow    Severity = "低"
)

// RiskCategory classifies a disclosed risk factor.
type RiskCategory string

const (
	RiskMarket      RiskCategory = "市場リスク"
	RiskRegulatory  RiskCategory = "規制リスク"
	RiskFinancial   RiskCategory = "財務リスク"
	RiskOperational RiskCategory = "オペレーショナルリスク"
	RiskStrategic   RiskCategory = "戦略リスク"
	RiskTechnology  RiskCategory = "技術リスク"
	RiskEnvironment RiskCategory = "環境リスク"
	RiskReputation  RiskCategory = "レピュテーションリスク"
	RiskOther       RiskCategory = "その他"
)

// ChangeCategory classifies a period-over-period change point.
type ChangeCategory string

const (
	ChangeBusiness     ChangeCategory = "事業"
	ChangeFinancial    ChangeCategory = "財務"
	ChangeRisk         ChangeCategory = "リスク"
	ChangeStrategy     ChangeCategory = "戦略"
	ChangeGovernance   ChangeCategory = "ガバナンス"
	ChangeOrganization ChangeCategory = "組織"
	ChangeOther        ChangeCategory = "その他"
)

type BusinessSegment struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	RevenueShare string   `json:"revenue_share,omitempty"`
	KeyProducts  []string `json:"key_products,omitempty"`
}

// BusinessSummary captures the business overview extracted from a
// filing's 事業の状況 section.
type BusinessSummary struct {
	CompanyName           string            `json:"company_name" validate:"required"`
	FiscalYear            string            `json:"fiscal_year" validate:"required"`
	BusinessDescription   string            `json:"business_description" validate:"required"`
	MainProductsServices  []string          `json:"main_products_services,omitempty"`
	BusinessSegments      []BusinessSegment `json:"business_segments,omitempty" validate:"dive"`
	CompetitiveAdvantages []string          `json:"competitive_advantages,omitempty"`
	GrowthStrategy        string            `json:"growth_strategy" validate:"required"`
	KeyInitiatives        []string          `json:"key_initiatives,omitempty"`
}

type RiskItem struct {
	Category    RiskCategory `json:"category" validate:"required"`
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description" validate:"required"`
	Severity    Severity     `json:"severity" validate:"required,oneof=高 中 低"`
	Mitigation  string       `json:"mitigation,omitempty"`
}

// RiskAnalysis captures the classified risk factors from a filing's
// 事業等のリスク section. NewRisks is only populated when a prior
// period is available for comparison.
type RiskAnalysis struct {
	Risks       []RiskItem `json:"risks" validate:"dive"`
	NewRisks    []string   `json:"new_risks,omitempty"`
	RiskSummary string     `json:"risk_summary" validate:"required"`
}

type FinancialHighlight struct {
	MetricName   string `json:"metric_name" validate:"required"`
	CurrentValue string `json:"current_value" validate:"required"`
	PriorValue   string `json:"prior_value,omitempty"`
	ChangeRate   string `json:"change_rate,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

// FinancialAnalysis captures the narrative financial assessment of a
// filing. Values stay as formatted strings (e.g. "1兆2,345億円") since
// the pipeline never computes with them.
type FinancialAnalysis struct {
	RevenueAnalysis   string               `json:"revenue_analysis" validate:"required"`
	ProfitAnalysis    string               `json:"profit_analysis" validate:"required"`
	CashFlowAnalysis  string               `json:"cash_flow_analysis" validate:"required"`
	FinancialPosition string               `json:"financial_position" validate:"required"`
	Highlights        []FinancialHighlight `json:"highlights,omitempty" validate:"dive"`
	Outlook           string               `json:"outlook" validate:"required"`
}

type ChangePoint struct {
	Category     ChangeCategory `json:"category" validate:"required"`
	Title        string         `json:"title" validate:"required"`
	PriorState   string         `json:"prior_state" validate:"required"`
	CurrentState string         `json:"current_state" validate:"required"`
	Significance Severity       `json:"significance" validate:"required,oneof=高 中 低"`
	Implication  string         `json:"implication,omitempty"`
}

// Comparison modes recorded on PeriodComparison.Mode.
const (
	ComparisonModeTwoDocument    = "two_document"
	ComparisonModeSingleDocument = "single_document"
)

// PeriodComparison captures what changed between the current filing and
// the prior period's filing. Mode records whether a prior filing was
// actually compared or the changes were mined from the current filing's
// own year-over-year narrative; the stage sets it after extraction.
type PeriodComparison struct {
	ChangePoints      []ChangePoint `json:"change_points" validate:"dive"`
	NewDevelopments   []string      `json:"new_developments,omitempty"`
	DiscontinuedItems []string      `json:"discontinued_items,omitempty"`
	OverallAssessment string        `json:"overall_assessment" validate:"required"`
	Mode              string        `json:"mode,omitempty"`
}

// ComprehensiveReport is the terminal output of a full analysis run.
// PeriodComparison is nil when no prior filing was supplied, and any
// section whose stage failed is substituted with its typed default so
// the report always renders whole.
type ComprehensiveReport struct {
	ExecutiveSummary     string             `json:"executive_summary"`
	BusinessSummary      BusinessSummary    `json:"business_summary"`
	RiskAnalysis         RiskAnalysis       `json:"risk_analysis"`
	FinancialAnalysis    FinancialAnalysis  `json:"financial_analysis"`
	PeriodComparison     *PeriodComparison  `json:"period_comparison,omitempty"`
	InvestmentHighlights []string           `json:"investment_highlights,omitempty"`
	Concerns             []string           `json:"concerns,omitempty"`
	GeneratedAt          time.Time          `json:"generated_at"`
}

// ComparisonItem is one aspect of a cross-document comparison.
type ComparisonItem struct {
	Aspect     string `json:"aspect" validate:"required"`
	CompanyA   string `json:"company_a" validate:"required"`
	CompanyB   string `json:"company_b" validate:"required"`
	Difference string `json:"difference" validate:"required"`
}

// ComparisonReport is the output of comparing two filings from
// different companies (as opposed to PeriodComparison, which compares
// periods of the same company).
type ComparisonReport struct {
	Documents   []string         `json:"documents"`
	Aspects     []string         `json:"aspects"`
	Comparisons []ComparisonItem `json:"comparisons" validate:"dive"`
	Summary     string           `json:"summary" validate:"required"`
}

// Summary is a focused single-document digest used by the agent's
// summarize path.
type Summary struct {
	DocID       string   `json:"doc_id"`
	Focus       string   `json:"focus,omitempty"`
	KeyPoints   []string `json:"key_points"`
	SummaryText string   `json:"summary_text" validate:"required"`
}
