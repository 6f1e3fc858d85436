// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/docparse"
)

// DocumentParser turns a downloaded PDF into markdown for
// summarization.
type DocumentParser interface {
	Parse(ctx context.Context, path string) (*docparse.Document, error)
}

// FetchOptions narrow an IR retrieval.
type FetchOptions struct {
	// Category keeps one section only; empty means all.
	Category Category
	// Since drops documents published before the cutoff. Undated
	// documents are always kept.
	Since time.Time
	// MaxDocuments caps the result, newest first. Zero means the
	// default of 20.
	MaxDocuments int
	// Download fetches each document's PDF to local disk.
	Download bool
	// Force re-downloads PDFs that already exist locally.
	Force bool
	// Summarize runs the LLM digest over each downloaded document.
	// Implies Download.
	Summarize bool
}

const defaultMaxDocuments = 20

// Service retrieves IR documents for a company: a saved template
// drives the scrape when one exists, LLM page exploration covers the
// rest.
type Service struct {
	scraper   *Scraper
	templates *TemplateStore
	explorer  *Explorer
	generator *Generator
	parser    DocumentParser
	client    llm.Client
	dataDir   string
	logger    *slog.Logger
}

type ServiceOption func(*Service)

func WithTemplatesDir(dir string) ServiceOption {
	return func(s *Service) {
		if dir != "" {
			s.templates = NewTemplateStore(dir)
		}
	}
}

func WithDataDir(dir string) ServiceOption {
	return func(s *Service) {
		if dir != "" {
			s.dataDir = dir
		}
	}
}

func WithScraper(scraper *Scraper) ServiceOption {
	return func(s *Service) {
		if scraper != nil {
			s.scraper = scraper
		}
	}
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the scraper, template store, explorer, and
// generator. parser may be nil, which disables PDF summaries.
func NewService(client llm.Client, parser DocumentParser, opts ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	s := &Service{
		client:    client,
		parser:    parser,
		templates: NewTemplateStore("data/ir_templates"),
		dataDir:   "data/ir",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scraper == nil {
		s.scraper = NewScraper(WithScraperLogger(s.logger))
	}
	s.explorer = NewExplorer(client, s.logger)
	s.generator = NewGenerator(client, s.logger)
	return s, nil
}

// Templates exposes the template store for listing and saving.
func (s *Service) Templates() *TemplateStore {
	return s.templates
}

// FetchDocuments retrieves IR documents for a securities code using
// its saved template. ErrNoTemplate surfaces when none exists; the
// caller decides whether to fall back to ExplorePage or generate one.
func (s *Service) FetchDocuments(ctx context.Context, secCode string, opts FetchOptions) ([]Document, error) {
	tpl, err := s.templates.Load(secCode)
	if err != nil {
		return nil, err
	}

	docs, err := scrapeSections(ctx, s.scraper, tpl, opts.Category)
	if err != nil {
		return nil, fmt.Errorf("scraping IR sections for %s: %w", secCode, err)
	}
	s.logger.Info("Scraped IR documents from template", "sec_code", secCode, "documents", len(docs))
	return s.finish(ctx, secCode, docs, opts)
}

// ExplorePage retrieves IR documents from an arbitrary page with LLM
// exploration. secCode only names the download directory and may be
// empty.
func (s *Service) ExplorePage(ctx context.Context, secCode, pageURL string, opts FetchOptions) ([]Document, error) {
	maxDocs := opts.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocuments
	}
	docs, err := s.explorer.Explore(ctx, s.scraper, pageURL, maxDocs)
	if err != nil {
		return nil, err
	}
	if opts.Category != "" {
		kept := docs[:0]
		for _, doc := range docs {
			if doc.Category == opts.Category {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}
	if secCode == "" {
		secCode = "adhoc"
	}
	return s.finish(ctx, secCode, docs, opts)
}

// GenerateTemplate builds and saves a template for the company's IR
// page. Returns the saved file path.
func (s *Service) GenerateTemplate(ctx context.Context, secCode, companyName, entryURL string, overwrite bool) (string, error) {
	if strings.TrimSpace(secCode) == "" {
		return "", errors.New("securities code is required")
	}
	if strings.TrimSpace(entryURL) == "" {
		return "", errors.New("IR page URL is required")
	}
	tpl, err := s.generator.Generate(ctx, s.scraper, secCode, companyName, entryURL)
	if err != nil {
		return "", err
	}
	return s.templates.Save(tpl, overwrite)
}

// finish applies filters, ordering, and the optional download and
// summary passes.
func (s *Service) finish(ctx context.Context, secCode string, docs []Document, opts FetchOptions) ([]Document, error) {
	docs = filterSince(dedupeByURL(docs), opts.Since)
	sortByDate(docs)

	maxDocs := opts.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocuments
	}
	if len(docs) > maxDocs {
		docs = docs[:maxDocs]
	}

	if !opts.Download && !opts.Summarize {
		return docs, nil
	}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		savePath := s.savePath(secCode, docs[i])
		local, err := s.scraper.DownloadPDF(ctx, docs[i].URL, docs[i].URL, savePath, opts.Force)
		if err != nil {
			s.logger.Warn("IR document download failed", "url", docs[i].URL, "error", err.Error())
			continue
		}
		docs[i].FilePath = local

		if opts.Summarize {
			summary, err := s.summarize(ctx, docs[i])
			if err != nil {
				s.logger.Warn("IR document summary failed", "url", docs[i].URL, "error", err.Error())
				continue
			}
			docs[i].Summary = summary
		}
	}
	return docs, nil
}

func (s *Service) savePath(secCode string, doc Document) string {
	category := string(doc.Category)
	if category == "" {
		category = string(CategoryNews)
	}
	name := "document.pdf"
	if parsed, err := url.Parse(doc.URL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			name = sanitizeFileName(base)
		}
	}
	return filepath.Join(s.dataDir, secCode, category, name)
}

// summarize extracts the PDF's text and asks the model for an
// overview plus impact points.
func (s *Service) summarize(ctx context.Context, doc Document) (*Summary, error) {
	if s.parser == nil {
		return nil, errors.New("no document parser configured")
	}
	parsed, err := s.parser.Parse(ctx, doc.FilePath)
	if err != nil {
		return nil, err
	}

	prompt, err := renderPrompt(summarizeDocumentPrompt, map[string]any{
		"title":   doc.Title,
		"content": docparse.TruncateRunes(parsed.Markdown, maxPageRunes),
	})
	if err != nil {
		return nil, err
	}
	var summary Summary
	if err := s.client.GenerateStructured(ctx, prompt, &summary, llm.GenerationParams{}); err != nil {
		return nil, err
	}
	return &summary, nil
}
