// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"fmt"

	"github.com/slongfield/pyfmt"
)

// Page content beyond this budget is cut before it reaches the model.
const maxPageRunes = 40_000

const explorePagePrompt = `あなたは企業のIRページを分析する専門家です。
以下はIRページのテキスト表現です。リンクは [テキスト](URL) の形式で、
PDFへのリンクには [PDF] が付いています。

# 対象ページ

URL: {page_url}

{content}

# 指示

このページからIR資料へのリンクを最大{max_links}件抽出してください。

- 決算短信・決算説明会資料・有価証券報告書は category を "earnings" に
- プレスリリース・ニュースは category を "news" に
- 適時開示・その他の開示資料は category を "disclosures" に
- タイトルや周辺テキストに日付があれば published_date に
  YYYY-MM-DD 形式で入れてください。なければ空欄にしてください
- URLは記載されたものをそのまま使ってください。新しいURLを
  作らないでください`

const analyzeSectionsPrompt = `あなたは企業のIRページを分析する専門家です。
以下はIRページのテキスト表現です。リンクは [テキスト](URL) の形式です。

# 対象企業

{company_name}

# 対象ページ

URL: {page_url}

{content}

# 指示

このページの構成を分析し、IR資料の掲載セクションを特定してください。

- category は "earnings"（決算資料）、"news"（ニュース・プレスリリース）、
  "disclosures"（適時開示）のいずれかにしてください
- url はそのセクションの一覧ページのURLにしてください
- link_pattern はそのセクションの資料リンクURLに共通する部分文字列が
  あれば入れてください（例: "/ir/library/"）。なければ空欄で構いません
- confidence は 0.0〜1.0 でセクション特定の確信度を入れてください
- 記載されたURLのみを使ってください`

const summarizeDocumentPrompt = `あなたは企業分析の専門家です。
以下は企業のIR資料「{title}」から抽出したテキストです。

# 資料内容

{content}

# 指示

この資料を日本語で要約してください。

- overview: 資料の概要を3〜5文でまとめてください
- impact_points: 投資判断に影響しうるポイントを最大5件、
  それぞれ label（短い見出し）と content（説明）で挙げてください
- 記載された内容のみに基づいて記述してください`

// renderPrompt fills a {named} template with Python-style formatting.
func renderPrompt(template string, args map[string]any) (string, error) {
	prompt, err := pyfmt.Fmt(template, args)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return prompt, nil
}
