// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"

	"github.com/harborline/filinglens/services/research/cache"
	"github.com/harborline/filinglens/services/research/docparse"
	"github.com/harborline/filinglens/services/research/workflow"
)

// DocumentParser turns a filing PDF into markdown.
type DocumentParser interface {
	Parse(ctx context.Context, path string) (*docparse.Document, error)
}

// markdownArtifactKind labels cached extraction results.
const markdownArtifactKind = "markdown"

type markdownArtifact struct {
	Strategy string `json:"strategy"`
	Pages    int    `json:"pages"`
	Markdown string `json:"markdown"`
}

// NormalizeStage converts the fetched filing (and the prior filing
// when present) to markdown. Extraction can be slow when a document
// needs OCR or vision transcription, so results are cached per doc ID.
type NormalizeStage struct {
	workflow.BaseStage
	parser DocumentParser
	store  *cache.Store
	logger *slog.Logger
}

// NewNormalizeStage builds the normalize stage. store may be nil,
// which disables extraction reuse.
func NewNormalizeStage(parser DocumentParser, store *cache.Store, opts ...Option) *NormalizeStage {
	return &NormalizeStage{
		BaseStage: workflow.BaseStage{
			StageName:         StageNormalize,
			StageDependencies: []string{StageFetch},
			StageField:        FieldDocument,
			StageTimeout:      10 * time.Minute,
		},
		parser: parser,
		store:  store,
		logger: newSettings(opts).logger,
	}
}

func (s *NormalizeStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	filing, err := dependencyOutput[*FilingArtifact](view, StageFetch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Parsing document", slog.String("doc_id", filing.DocID), slog.String("path", filing.Path))
	current, err := s.normalizeOne(ctx, filing.DocID, filing.Path)
	if err != nil {
		return nil, err
	}

	text := &NormalizedText{
		Content:  current.Markdown,
		Strategy: current.Strategy,
		Pages:    current.Pages,
	}

	if filing.PriorPath != "" {
		s.logger.Info("Parsing prior document", slog.String("doc_id", filing.PriorDocID), slog.String("path", filing.PriorPath))
		prior, err := s.normalizeOne(ctx, filing.PriorDocID, filing.PriorPath)
		if err != nil {
			return nil, err
		}
		text.PriorContent = prior.Markdown
		text.PriorStrategy = prior.Strategy
	}

	s.logger.Info("Document parsed",
		slog.String("doc_id", filing.DocID),
		slog.String("strategy", text.Strategy),
		slog.Int("pages", text.Pages))
	return text, nil
}

func (s *NormalizeStage) normalizeOne(ctx context.Context, docID, path string) (markdownArtifact, error) {
	if art, ok := s.cachedMarkdown(ctx, docID); ok {
		return art, nil
	}

	doc, err := s.parser.Parse(ctx, path)
	if err != nil {
		return markdownArtifact{}, err
	}
	art := markdownArtifact{
		Strategy: doc.Strategy,
		Pages:    doc.Pages,
		Markdown: doc.Markdown,
	}
	s.storeMarkdown(ctx, docID, art)
	return art, nil
}

func (s *NormalizeStage) cachedMarkdown(ctx context.Context, docID string) (markdownArtifact, bool) {
	if s.store == nil || docID == "" {
		return markdownArtifact{}, false
	}
	data, err := s.store.GetArtifact(ctx, docID, markdownArtifactKind)
	if err != nil {
		return markdownArtifact{}, false
	}
	var art markdownArtifact
	if err := sonic.Unmarshal(data, &art); err != nil || art.Markdown == "" {
		return markdownArtifact{}, false
	}
	s.logger.Info("Reusing extracted markdown", slog.String("doc_id", docID), slog.String("strategy", art.Strategy))
	return art, true
}

func (s *NormalizeStage) storeMarkdown(ctx context.Context, docID string, art markdownArtifact) {
	if s.store == nil || docID == "" {
		return
	}
	data, err := sonic.Marshal(art)
	if err != nil {
		return
	}
	if err := s.store.PutArtifact(ctx, docID, markdownArtifactKind, data); err != nil {
		s.logger.Warn("Caching extracted markdown failed", slog.String("doc_id", docID), slog.String("error", err.Error()))
	}
}
