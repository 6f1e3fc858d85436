// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/docparse"
)

// maxSubpages caps how many linked pages the generator inspects beyond
// the entry page.
const maxSubpages = 4

// Generator derives a reusable Template from a live IR page by asking
// the LLM which sections carry which material.
type Generator struct {
	client llm.Client
	logger *slog.Logger
}

func NewGenerator(client llm.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, logger: logger}
}

type sectionProposal struct {
	Category    string  `json:"category" validate:"required,oneof=earnings news disclosures"`
	URL         string  `json:"url" validate:"required"`
	LinkPattern string  `json:"link_pattern"`
	Confidence  float64 `json:"confidence"`
}

type pageAnalysis struct {
	Sections []sectionProposal `json:"sections"`
}

// Generate inspects the IR page (and a few linked subpages) and
// builds a template. The entry page may be the company homepage; the
// IR section is then located first.
func (g *Generator) Generate(ctx context.Context, scraper *Scraper, secCode, companyName, entryURL string) (*Template, error) {
	src, err := scraper.FetchPage(ctx, entryURL)
	if err != nil {
		return nil, err
	}
	pageURL := entryURL
	if irURL := findIRLink(src, entryURL); irURL != "" && irURL != entryURL {
		g.logger.Info("Following IR section link", "from", entryURL, "to", irURL)
		if irSrc, err := scraper.FetchPage(ctx, irURL); err == nil {
			src, pageURL = irSrc, irURL
		}
	}

	sections := make(map[Category]Section)
	g.analyzePage(ctx, src, pageURL, companyName, sections)
	for _, sub := range irSubpages(src, pageURL) {
		if len(sections) >= len(Categories()) {
			break
		}
		subSrc, err := scraper.FetchPage(ctx, sub)
		if err != nil {
			continue
		}
		g.analyzePage(ctx, subSrc, sub, companyName, sections)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no IR sections identified at %s", pageURL)
	}

	tpl := &Template{}
	tpl.Company.SecCode = secCode
	tpl.Company.Name = companyName
	tpl.IRPage.BaseURL = pageURL
	tpl.IRPage.Sections = sections
	return tpl, nil
}

// analyzePage asks the model for this page's sections and merges the
// confident ones in, keeping the best proposal per category.
func (g *Generator) analyzePage(ctx context.Context, src, pageURL, companyName string, sections map[Category]Section) {
	content := docparse.TruncateRunes(flattenPage(src, pageURL), maxPageRunes)
	prompt, err := renderPrompt(analyzeSectionsPrompt, map[string]any{
		"company_name": companyName,
		"page_url":     pageURL,
		"content":      content,
	})
	if err != nil {
		g.logger.Warn("Rendering section analysis prompt failed", "error", err.Error())
		return
	}

	var analysis pageAnalysis
	if err := g.client.GenerateStructured(ctx, prompt, &analysis, llm.GenerationParams{}); err != nil {
		g.logger.Warn("Section analysis failed", "url", pageURL, "error", err.Error())
		return
	}

	base, _ := url.Parse(pageURL)
	confidences := make(map[Category]float64, len(sections))
	for _, proposal := range analysis.Sections {
		category, ok := ParseCategory(proposal.Category)
		if !ok || category == "" {
			continue
		}
		resolved := resolveURL(base, proposal.URL)
		if resolved == "" {
			continue
		}
		prev, fromThisPage := confidences[category]
		if fromThisPage && prev >= proposal.Confidence {
			continue
		}
		if _, existing := sections[category]; existing && !fromThisPage {
			// Kept from an earlier page; a later guess must not
			// displace it.
			continue
		}
		sections[category] = Section{
			URL:         resolved,
			LinkPattern: strings.TrimSpace(proposal.LinkPattern),
		}
		confidences[category] = proposal.Confidence
	}
}

// irSubpages picks same-host links off the IR page that look like
// deeper IR listings.
func irSubpages(src, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	seen := map[string]bool{pageURL: true}
	var subs []string
	for _, link := range pageLinks(src, pageURL) {
		parsed, err := url.Parse(link.URL)
		if err != nil || parsed.Host != base.Host || seen[link.URL] {
			continue
		}
		path := strings.ToLower(parsed.Path)
		if strings.HasSuffix(path, ".pdf") {
			continue
		}
		if !strings.Contains(path, "ir") && !strings.Contains(path, "investor") &&
			!strings.Contains(path, "news") && !strings.Contains(path, "library") {
			continue
		}
		seen[link.URL] = true
		subs = append(subs, link.URL)
		if len(subs) >= maxSubpages {
			break
		}
	}
	return subs
}
