// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/docparse"
)

// Explorer finds IR documents on pages no template describes by
// showing the flattened page to the LLM and asking for the material
// links.
type Explorer struct {
	client llm.Client
	logger *slog.Logger
}

func NewExplorer(client llm.Client, logger *slog.Logger) *Explorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{client: client, logger: logger}
}

type extractedLink struct {
	Title         string `json:"title" validate:"required"`
	URL           string `json:"url" validate:"required"`
	Category      string `json:"category"`
	PublishedDate string `json:"published_date"`
}

type extractedLinks struct {
	Links []extractedLink `json:"links"`
}

// Explore fetches the page and extracts up to maxLinks document links.
// Links the model invents (absent from the page, or off-page hosts
// rewritten to nonsense) are filtered by re-resolving each URL.
func (e *Explorer) Explore(ctx context.Context, scraper *Scraper, pageURL string, maxLinks int) ([]Document, error) {
	if maxLinks <= 0 {
		maxLinks = 20
	}
	src, err := scraper.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	content := docparse.TruncateRunes(flattenPage(src, pageURL), maxPageRunes)
	prompt, err := renderPrompt(explorePagePrompt, map[string]any{
		"page_url":  pageURL,
		"content":   content,
		"max_links": maxLinks,
	})
	if err != nil {
		return nil, err
	}

	var out extractedLinks
	if err := e.client.GenerateStructured(ctx, prompt, &out, llm.GenerationParams{}); err != nil {
		return nil, err
	}

	onPage := make(map[string]bool)
	for _, link := range pageLinks(src, pageURL) {
		onPage[link.URL] = true
	}

	base, _ := url.Parse(pageURL)
	var docs []Document
	for _, link := range out.Links {
		resolved := resolveURL(base, link.URL)
		if resolved == "" || !onPage[resolved] {
			e.logger.Debug("Dropping link not present on page", "url", link.URL)
			continue
		}
		category, ok := ParseCategory(link.Category)
		if !ok {
			category = ""
		}
		doc := Document{
			Title:    strings.TrimSpace(link.Title),
			URL:      resolved,
			Category: classifyTitle(link.Title, category),
		}
		if ts, err := time.Parse("2006-01-02", strings.TrimSpace(link.PublishedDate)); err == nil {
			doc.PublishedDate = ts
		} else {
			doc.PublishedDate = dateInText(link.Title)
		}
		docs = append(docs, doc)
		if len(docs) >= maxLinks {
			break
		}
	}
	e.logger.Info("Explored IR page", "url", pageURL, "links", len(docs))
	return dedupeByURL(docs), nil
}
