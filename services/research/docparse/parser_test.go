// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docparse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/filinglens/services/llm"
)

type fakeStrategy struct {
	name      string
	available bool
	text      string
	err       error
	calls     int
}

func (f *fakeStrategy) Name() string    { return f.name }
func (f *fakeStrategy) Available() bool { return f.available }

func (f *fakeStrategy) ExtractMarkdown(ctx context.Context, path string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeVisionClient struct {
	vision bool
}

func (f *fakeVisionClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return "", nil
}

func (f *fakeVisionClient) GenerateStructured(ctx context.Context, prompt string, out any, params llm.GenerationParams) error {
	return nil
}

func (f *fakeVisionClient) GenerateFromImage(ctx context.Context, prompt string, image []byte, params llm.GenerationParams) (string, error) {
	return "", nil
}

func (f *fakeVisionClient) Provider() string     { return "fake" }
func (f *fakeVisionClient) SupportsVision() bool { return f.vision }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filing.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))
	return path
}

func longMarkdown() string {
	return "## Page 1\n\n" + strings.Repeat("当社の事業の状況。", 30)
}

func TestParser_Parse_FirstStrategyWins(t *testing.T) {
	first := &fakeStrategy{name: "pdftext", available: true, text: longMarkdown()}
	second := &fakeStrategy{name: "ocr", available: true, text: longMarkdown()}
	p := NewParser(nil, WithStrategies(first, second), WithLogger(discardLogger()))

	doc, err := p.Parse(context.Background(), tempPDF(t))
	require.NoError(t, err)
	assert.Equal(t, "pdftext", doc.Strategy)
	assert.Equal(t, 1, doc.Pages)
	assert.Contains(t, doc.Markdown, "当社の事業の状況")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "later strategies must not run after a success")
}

func TestParser_Parse_SkipsUnavailable(t *testing.T) {
	first := &fakeStrategy{name: "pdftext", available: false}
	second := &fakeStrategy{name: "ocr", available: true, text: longMarkdown()}
	p := NewParser(nil, WithStrategies(first, second), WithLogger(discardLogger()))

	doc, err := p.Parse(context.Background(), tempPDF(t))
	require.NoError(t, err)
	assert.Equal(t, "ocr", doc.Strategy)
	assert.Equal(t, 0, first.calls)
}

func TestParser_Parse_InsufficientContentFallsThrough(t *testing.T) {
	first := &fakeStrategy{name: "pdftext", available: true, text: "  \n  ごく短い断片  "}
	second := &fakeStrategy{name: "ocr", available: true, text: longMarkdown()}
	p := NewParser(nil, WithStrategies(first, second), WithLogger(discardLogger()))

	doc, err := p.Parse(context.Background(), tempPDF(t))
	require.NoError(t, err)
	assert.Equal(t, "ocr", doc.Strategy)
	assert.Equal(t, 1, first.calls)
}

func TestParser_Parse_AllFail(t *testing.T) {
	first := &fakeStrategy{name: "pdftext", available: false}
	second := &fakeStrategy{name: "ocr", available: true, err: errors.New("tesseract exploded")}
	third := &fakeStrategy{name: "vision", available: true, text: "短い"}
	p := NewParser(nil, WithStrategies(first, second, third), WithLogger(discardLogger()))

	doc, err := p.Parse(context.Background(), tempPDF(t))
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.Contains(t, err.Error(), "all extraction strategies failed")
	assert.Contains(t, err.Error(), "pdftext: not available")
	assert.Contains(t, err.Error(), "ocr: tesseract exploded")
	assert.Contains(t, err.Error(), "vision: insufficient content")
}

func TestParser_Parse_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failing := &fakeStrategy{name: "pdftext", available: true, err: errors.New("interrupted")}
	fallback := &fakeStrategy{name: "ocr", available: true, text: longMarkdown()}
	p := NewParser(nil, WithStrategies(failing, fallback), WithLogger(discardLogger()))

	_, err := p.Parse(ctx, tempPDF(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.calls, "fallbacks must not run on a dead context")
}

func TestParser_Parse_MissingFile(t *testing.T) {
	p := NewParser(nil, WithStrategies(&fakeStrategy{name: "pdftext", available: true}), WithLogger(discardLogger()))
	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat pdf")
}

func TestVisionStrategy_Available(t *testing.T) {
	assert.False(t, NewVisionStrategy(nil).Available(), "nil client")
	assert.False(t, NewVisionStrategy(&fakeVisionClient{vision: false}).Available(), "text-only client")
}

func TestReadInfo_MissingFile(t *testing.T) {
	info := ReadInfo(context.Background(), "/nonexistent/filing.pdf")
	assert.Equal(t, "/nonexistent/filing.pdf", info.Path)
	assert.Zero(t, info.Pages)
}
