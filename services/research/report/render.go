// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"fmt"
	"strings"
)

// Markdown renders a comprehensive report as a standalone Markdown
// document. Sections substituted with defaults render their
// placeholder text rather than disappearing, so a degraded run is
// visible in the output.
func Markdown(r *ComprehensiveReport) string {
	if r == nil {
		return ""
	}
	var b strings.Builder

	fmt.Fprintf(&b, "# 企業分析レポート: %s\n\n", r.BusinessSummary.CompanyName)
	fmt.Fprintf(&b, "対象年度: %s  \n", r.BusinessSummary.FiscalYear)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "生成日時: %s  \n", r.GeneratedAt.Format("2006-01-02 15:04"))
	}
	b.WriteString("\n")

	writeSection(&b, "エグゼクティブサマリー", r.ExecutiveSummary)

	b.WriteString("## 事業要約\n\n")
	b.WriteString(r.BusinessSummary.BusinessDescription)
	b.WriteString("\n\n")
	writeBulletList(&b, "主要製品・サービス", r.BusinessSummary.MainProductsServices)
	if len(r.BusinessSummary.BusinessSegments) > 0 {
		b.WriteString("### 事業セグメント\n\n")
		for _, seg := range r.BusinessSummary.BusinessSegments {
			fmt.Fprintf(&b, "- **%s**", seg.Name)
			if seg.RevenueShare != "" {
				fmt.Fprintf(&b, " (売上構成比 %s)", seg.RevenueShare)
			}
			fmt.Fprintf(&b, ": %s\n", seg.Description)
		}
		b.WriteString("\n")
	}
	writeBulletList(&b, "競争優位性", r.BusinessSummary.CompetitiveAdvantages)
	writeSubSection(&b, "成長戦略", r.BusinessSummary.GrowthStrategy)
	writeBulletList(&b, "重点施策", r.BusinessSummary.KeyInitiatives)

	b.WriteString("## リスク分析\n\n")
	for _, risk := range r.RiskAnalysis.Risks {
		fmt.Fprintf(&b, "### [%s] %s (%s)\n\n%s\n\n", risk.Severity, risk.Title, risk.Category, risk.Description)
		if risk.Mitigation != "" {
			fmt.Fprintf(&b, "対策: %s\n\n", risk.Mitigation)
		}
	}
	writeBulletList(&b, "新規リスク", r.RiskAnalysis.NewRisks)
	writeSubSection(&b, "リスク総括", r.RiskAnalysis.RiskSummary)

	b.WriteString("## 財務分析\n\n")
	if len(r.FinancialAnalysis.Highlights) > 0 {
		b.WriteString("| 指標 | 当期 | 前期 | 増減率 |\n")
		b.WriteString("|------|------|------|--------|\n")
		for _, h := range r.FinancialAnalysis.Highlights {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				h.MetricName, h.CurrentValue, orDash(h.PriorValue), orDash(h.ChangeRate))
		}
		b.WriteString("\n")
	}
	writeSubSection(&b, "売上分析", r.FinancialAnalysis.RevenueAnalysis)
	writeSubSection(&b, "利益分析", r.FinancialAnalysis.ProfitAnalysis)
	writeSubSection(&b, "キャッシュフロー分析", r.FinancialAnalysis.CashFlowAnalysis)
	writeSubSection(&b, "財政状態", r.FinancialAnalysis.FinancialPosition)
	writeSubSection(&b, "今後の見通し", r.FinancialAnalysis.Outlook)

	if r.PeriodComparison != nil {
		b.WriteString("## 前期比較\n\n")
		for _, cp := range r.PeriodComparison.ChangePoints {
			fmt.Fprintf(&b, "### [%s] %s (%s)\n\n", cp.Significance, cp.Title, cp.Category)
			fmt.Fprintf(&b, "- 前期: %s\n- 当期: %s\n", cp.PriorState, cp.CurrentState)
			if cp.Implication != "" {
				fmt.Fprintf(&b, "- 示唆: %s\n", cp.Implication)
			}
			b.WriteString("\n")
		}
		writeBulletList(&b, "新規展開事項", r.PeriodComparison.NewDevelopments)
		writeBulletList(&b, "終了・中止事項", r.PeriodComparison.DiscontinuedItems)
		writeSubSection(&b, "総合評価", r.PeriodComparison.OverallAssessment)
	}

	if len(r.InvestmentHighlights) > 0 {
		b.WriteString("## 投資ハイライト\n\n")
		for _, h := range r.InvestmentHighlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}
	if len(r.Concerns) > 0 {
		b.WriteString("## 懸念事項\n\n")
		for _, c := range r.Concerns {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// ComparisonMarkdown renders a cross-document comparison.
func ComparisonMarkdown(c *ComparisonReport) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# 比較分析レポート\n\n対象書類: %s\n\n", strings.Join(c.Documents, ", "))
	for _, item := range c.Comparisons {
		fmt.Fprintf(&b, "## %s\n\n", item.Aspect)
		fmt.Fprintf(&b, "- 企業A: %s\n- 企業B: %s\n- 主な違い: %s\n\n", item.CompanyA, item.CompanyB, item.Difference)
	}
	writeSection(&b, "総括", c.Summary)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, body)
}

func writeSubSection(b *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(b, "### %s\n\n%s\n\n", title, body)
}

func writeBulletList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
