// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"fmt"

	"github.com/slongfield/pyfmt"
)

// Prompt budgets in runes. Filings run to hundreds of pages; content
// beyond the budget is cut at a rune boundary with an omission marker.
const (
	maxContentRunes    = 100_000
	maxComparisonRunes = 50_000
)

const businessSummaryPrompt = `あなたは企業分析の専門家です。
以下は有価証券報告書から抽出したマークダウンテキストです。
事業の内容を分析し、事業要約を作成してください。日本語で回答してください。

# 分析対象

{content}

# 指示

以下の観点で整理してください。

- 企業名と対象年度
- 事業の概要（主要な事業活動の説明）
- 主要な製品・サービス
- 事業セグメント（名称、概要、可能であれば売上構成比と主要製品）
- 競争優位性
- 成長戦略と重点施策

# 注意事項

- 記載された内容のみに基づいて記述してください
- 推測や外部情報による補完は避けてください`

const riskExtractionPrompt = `あなたは企業分析の専門家です。
以下は有価証券報告書から抽出したマークダウンテキストです。
「事業等のリスク」を中心にリスク情報を分析してください。日本語で回答してください。

# 分析対象

{content}

# 指示

- 個別のリスクを抽出し、カテゴリ（市場リスク、規制リスク、財務リスク、
  オペレーショナルリスク、戦略リスク、技術リスク、環境リスク、
  レピュテーションリスク、その他）と重要度（高・中・低）を付与してください
- 各リスクには簡潔なタイトル、説明、記載があれば対応策を含めてください
- 当期に新たに記載されたリスクがあれば挙げてください
- 全体のリスク状況を総括してください

# 注意事項

- 重要度は事業への影響の大きさと発生可能性から判断してください
- 記載された内容のみに基づいて記述してください`

const financialAnalysisPrompt = `あなたは企業分析の専門家です。
以下は有価証券報告書から抽出したマークダウンテキストです。
財務状況を分析してください。日本語で回答してください。

# 分析対象

{content}

# 指示

- 売上の状況（増減要因を含む）
- 利益の状況（利益率の変化を含む）
- キャッシュフローの状況
- 財政状態（資産・負債・資本の構成）
- 主要な財務指標（指標名、当期の値、可能であれば前期の値と増減率、補足）
- 今後の見通し

# 注意事項

- 数値は報告書の記載をそのまま使用し、単位を明記してください
- 記載された内容のみに基づいて記述してください`

const periodComparisonPrompt = `あなたは企業分析の専門家です。
同一企業の2期分の有価証券報告書を比較し、重要な変化を抽出してください。
日本語で回答してください。

# 当期の報告書

{current_content}

# 前期の報告書

{prior_content}

# 指示

- 変化点をカテゴリ（事業、財務、リスク、戦略、ガバナンス、組織、その他）
  ごとに整理し、前期の状態、当期の状態、重要度（高・中・低）、
  投資判断への示唆を記述してください
- 当期に新たに始まった取り組みを挙げてください
- 終了・中止された事項を挙げてください
- 変化の全体像を総合評価として記述してください`

const periodComparisonSinglePrompt = `あなたは企業分析の専門家です。
以下は有価証券報告書から抽出したマークダウンテキストです。
報告書中の前期に関する記載（前年同期比、増減の説明など）を手がかりに、
前期からの重要な変化を抽出してください。日本語で回答してください。

# 分析対象

{content}

# 指示

- 変化点をカテゴリ（事業、財務、リスク、戦略、ガバナンス、組織、その他）
  ごとに整理し、読み取れる範囲で前期の状態、当期の状態、
  重要度（高・中・低）、投資判断への示唆を記述してください
- 当期に新たに始まった取り組みを挙げてください
- 終了・中止された事項を挙げてください
- 変化の全体像を総合評価として記述してください`

const aggregatorPrompt = `あなたは企業分析の専門家です。
以下の分析結果を統合し、投資家向けの総合レポートを作成してください。

# 事業要約

{business_summary}

# リスク分析

{risk_analysis}

# 財務分析

{financial_analysis}

# 前期比較

{period_comparison}

# 指示

上記の分析結果を踏まえ、以下を作成してください。日本語で回答してください。

1. **エグゼクティブサマリー** (executive_summary): 300-500字の総括
   - 企業の現状と強み
   - 主要なリスク
   - 財務状況のポイント
   - 投資判断に重要な要素

2. **投資ハイライト** (investment_highlights): ポジティブな要因（3-7件）
   - 競争優位性、成長機会、財務の強さなど

3. **懸念事項** (concerns): ネガティブな要因（3-7件）
   - リスク、課題、不確実性など

# 注意事項

- 客観的な分析を心がけてください
- 推測は避け、分析結果に基づいて記述してください
- 投資判断の参考になる情報を優先してください`

// renderPrompt fills a {named} template with Python-style formatting,
// which keeps the template text free of %-verbs and readable as prose.
func renderPrompt(template string, args map[string]any) (string, error) {
	prompt, err := pyfmt.Fmt(template, args)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return prompt, nil
}
