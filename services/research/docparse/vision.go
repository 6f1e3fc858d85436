// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docparse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harborline/filinglens/services/llm"
)

// visionExtractionPrompt instructs the model to transcribe one rendered
// filing page. Output must be plain markdown so pages from different
// strategies interleave cleanly.
const visionExtractionPrompt = `この画像は日本企業の開示書類（有価証券報告書など）の1ページです。
ページに含まれるすべてのテキストを正確に読み取り、Markdown形式で出力してください。

ルール:
- 見出しの階層構造を # / ## などで保持する
- 表はMarkdownのテーブル形式（| 列 | 列 |）で再現する
- 図やグラフは [図: 簡潔な説明] の形式で記載する
- ページ番号、ヘッダー、フッターは出力に含めない
- 勘定科目などの会計用語や固有名詞は正確な日本語表記を保つ
- 出力はMarkdownのみとし、前置きや説明文は加えない`

// VisionStrategy renders pages to images and asks a vision-capable LLM
// to transcribe each one. The most expensive strategy, so it sits last
// in the default chain and caps the page count.
type VisionStrategy struct {
	client      llm.Client
	dpi         int
	maxPages    int
	concurrency int
}

type VisionOption func(*VisionStrategy)

func WithVisionMaxPages(n int) VisionOption {
	return func(v *VisionStrategy) {
		if n > 0 {
			v.maxPages = n
		}
	}
}

func WithVisionConcurrency(n int) VisionOption {
	return func(v *VisionStrategy) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

func WithVisionDPI(dpi int) VisionOption {
	return func(v *VisionStrategy) {
		if dpi > 0 {
			v.dpi = dpi
		}
	}
}

func NewVisionStrategy(client llm.Client, opts ...VisionOption) *VisionStrategy {
	v := &VisionStrategy{client: client, dpi: 150, maxPages: 20, concurrency: 4}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *VisionStrategy) Name() string {
	return "vision"
}

func (v *VisionStrategy) Available() bool {
	if v.client == nil || !v.client.SupportsVision() {
		return false
	}
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

func (v *VisionStrategy) ExtractMarkdown(ctx context.Context, path string) (string, error) {
	images, cleanup, err := renderPageImages(ctx, path, v.dpi, v.maxPages)
	if err != nil {
		return "", err
	}
	defer cleanup()

	pages := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, image := range images {
		g.Go(func() error {
			data, err := os.ReadFile(image)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			text, err := v.client.GenerateFromImage(gctx, visionExtractionPrompt, data, llm.GenerationParams{})
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			pages[i] = fmt.Sprintf("## Page %d\n\n%s", i+1, strings.TrimSpace(text))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}
