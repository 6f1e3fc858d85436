// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"

	"github.com/slongfield/pyfmt"
)

const compareDocumentsPrompt = `あなたは企業分析の専門家です。
以下の複数の有価証券報告書を比較分析してください。日本語で回答してください。

# 比較対象

{documents}

# 指示

- 次の観点ごとに比較してください: {aspects}
- 各観点について、1件目の企業の内容 (company_a)、2件目の企業の内容
  (company_b)、主な違い (difference) を記述してください
- 3件以上ある場合は、1件目と2件目以降の代表的な違いを記述してください
- 最後に比較の総括を記述してください

# 注意事項

- 記載された内容のみに基づいて記述してください
- 数値を引用する場合は単位を明記してください`

const summarizeDocumentPrompt = `あなたは企業分析の専門家です。
以下は有価証券報告書から抽出したマークダウンテキストです。
書類を要約してください。日本語で回答してください。

# 要約の焦点

{focus}

# 分析対象

{content}

# 指示

- 重要なポイントを箇条書き（3-10件）で挙げてください
- 焦点に沿った簡潔な要約文を作成してください

# 注意事項

- 記載された内容のみに基づいて記述してください`

const classifyIntentPrompt = `あなたは企業リサーチ支援アシスタントです。
ユーザーのクエリを処理するのに最も適したツールを1つ選んでください。

# クエリ

{query}

# 利用可能なツール

{tools}

# 指示

- tool にはツール一覧の名前を正確に1つ記入してください
- クエリに企業名が含まれる場合は company_name に抜き出してください
- 要約や分析の焦点が指定されている場合は focus に抜き出してください`

// renderPrompt fills a {named} template with Python-style formatting,
// which keeps the template text free of %-verbs and readable as prose.
func renderPrompt(template string, args map[string]any) (string, error) {
	prompt, err := pyfmt.Fmt(template, args)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return prompt, nil
}
