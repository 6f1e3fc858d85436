// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package docparse turns filing PDFs into markdown. A parser walks a
// chain of extraction strategies from cheapest to most expensive and
// keeps the first result with enough content to analyze.
package docparse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/harborline/filinglens/services/llm"
)

// minContentRunes is the threshold below which an extraction is treated
// as failed. Text-layer extraction of a scanned PDF typically yields a
// few stray characters, not usable content.
const minContentRunes = 100

// Info holds PDF metadata read from pdfinfo. Best effort; zero values
// mean the tool was missing or the field absent.
type Info struct {
	Path     string
	Pages    int
	Title    string
	PageSize string
}

// Document is the parsed form of one filing PDF.
type Document struct {
	Markdown string
	Strategy string
	Pages    int
	Info     Info
}

type Parser struct {
	strategies []Strategy
	logger     *slog.Logger
}

type ParserOption func(*Parser)

// WithStrategies replaces the default extraction chain.
func WithStrategies(strategies ...Strategy) ParserOption {
	return func(p *Parser) {
		p.strategies = strategies
	}
}

func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser builds a parser with the default chain: text layer first,
// OCR for scanned documents, vision transcription as the last resort.
// client may be nil, which leaves the vision strategy unavailable.
func NewParser(client llm.Client, opts ...ParserOption) *Parser {
	p := &Parser{
		strategies: []Strategy{
			NewPDFTextStrategy(),
			NewOCRStrategy(),
			NewVisionStrategy(client),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts markdown from the PDF at path. Strategies run in
// order; the first one producing enough content wins and its name is
// recorded on the Document. When every strategy fails the per-strategy
// failures come back joined in a single error.
func (p *Parser) Parse(ctx context.Context, path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	var failures []error
	for _, strategy := range p.strategies {
		if !strategy.Available() {
			failures = append(failures, fmt.Errorf("%s: not available", strategy.Name()))
			continue
		}
		text, err := strategy.ExtractMarkdown(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("Extraction strategy failed",
				slog.String("strategy", strategy.Name()),
				slog.String("path", path),
				slog.String("error", err.Error()))
			failures = append(failures, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(text)) <= minContentRunes {
			p.logger.Warn("Extraction produced insufficient content",
				slog.String("strategy", strategy.Name()),
				slog.String("path", path))
			failures = append(failures, fmt.Errorf("%s: insufficient content", strategy.Name()))
			continue
		}

		doc := &Document{
			Markdown: text,
			Strategy: strategy.Name(),
			Pages:    strings.Count(text, "## Page "),
			Info:     ReadInfo(ctx, path),
		}
		if doc.Info.Pages > 0 {
			doc.Pages = doc.Info.Pages
		}
		p.logger.Info("Parsed document",
			slog.String("strategy", strategy.Name()),
			slog.String("path", path),
			slog.Int("pages", doc.Pages))
		return doc, nil
	}
	return nil, fmt.Errorf("all extraction strategies failed: %w", errors.Join(failures...))
}

// ReadInfo shells out to pdfinfo for page count and metadata. Missing
// tool or parse trouble yields a zero-valued Info rather than an error.
func ReadInfo(ctx context.Context, path string) Info {
	info := Info{Path: path}
	out, err := runCommand(ctx, "pdfinfo", path)
	if err != nil {
		return info
	}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil {
				info.Pages = n
			}
		case "Title":
			info.Title = value
		case "Page size":
			info.PageSize = value
		}
	}
	return info
}
