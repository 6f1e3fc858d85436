// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ir retrieves investor-relations material from company
// websites: earnings presentations, press releases, and timely
// disclosures that never reach EDINET. Known sites are scraped from
// saved page templates; unknown ones are explored with the LLM.
package ir

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Category classifies an IR document by where it belongs on a typical
// IR page.
type Category string

const (
	CategoryEarnings    Category = "earnings"
	CategoryNews        Category = "news"
	CategoryDisclosures Category = "disclosures"
)

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{CategoryEarnings, CategoryNews, CategoryDisclosures}
}

// ParseCategory resolves a user-supplied category name. An empty
// string means all categories.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryEarnings:
		return CategoryEarnings, true
	case CategoryNews:
		return CategoryNews, true
	case CategoryDisclosures:
		return CategoryDisclosures, true
	case "":
		return "", true
	}
	return "", false
}

// ImpactPoint is one analyst-facing takeaway from a summarized
// document.
type ImpactPoint struct {
	Label   string `json:"label" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// Summary is the LLM's digest of one IR document.
type Summary struct {
	Overview     string        `json:"overview" validate:"required"`
	ImpactPoints []ImpactPoint `json:"impact_points"`
}

// Document is one discovered IR item. PublishedDate is zero when the
// page did not carry a recognizable date. FilePath is set once the
// underlying PDF has been downloaded.
type Document struct {
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Category      Category  `json:"category"`
	PublishedDate time.Time `json:"published_date,omitempty"`
	FilePath      string    `json:"file_path,omitempty"`
	Summary       *Summary  `json:"summary,omitempty"`
}

// Title keywords that override a document's page-derived category.
// Pages routinely mix earnings material into news feeds; the title is
// the more reliable signal.
var (
	earningsKeywords    = []string{"決算短信", "決算説明", "決算補足", "業績予想", "四半期報告", "有価証券報告書", "earnings", "financial results"}
	disclosuresKeywords = []string{"適時開示", "自己株式", "株式分割", "配当予想", "役員の異動", "組織変更", "業務提携", "timely disclosure"}
)

// classifyTitle reclassifies a document by its title, falling back to
// the category the page assigned.
func classifyTitle(title string, fallback Category) Category {
	lower := strings.ToLower(title)
	for _, kw := range earningsKeywords {
		if strings.Contains(lower, kw) {
			return CategoryEarnings
		}
	}
	for _, kw := range disclosuresKeywords {
		if strings.Contains(lower, kw) {
			return CategoryDisclosures
		}
	}
	if fallback == "" {
		return CategoryNews
	}
	return fallback
}

// dedupeByURL drops repeated links, keeping the first occurrence. IR
// pages commonly list the same PDF under several sections.
func dedupeByURL(docs []Document) []Document {
	seen := make(map[string]bool, len(docs))
	out := docs[:0]
	for _, doc := range docs {
		if doc.URL == "" || seen[doc.URL] {
			continue
		}
		seen[doc.URL] = true
		out = append(out, doc)
	}
	return out
}

// filterSince keeps documents published on or after the cutoff.
// Documents without a recognizable date are kept; dropping them would
// silently lose most timely disclosures.
func filterSince(docs []Document, since time.Time) []Document {
	if since.IsZero() {
		return docs
	}
	out := docs[:0]
	for _, doc := range docs {
		if doc.PublishedDate.IsZero() || !doc.PublishedDate.Before(since) {
			out = append(out, doc)
		}
	}
	return out
}

// sortByDate orders newest first, undated documents last in their
// original order.
func sortByDate(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		di, dj := docs[i].PublishedDate, docs[j].PublishedDate
		if di.IsZero() || dj.IsZero() {
			return dj.IsZero() && !di.IsZero()
		}
		return di.After(dj)
	})
}

var datePatterns = []struct {
	layout string
	expr   *regexp.Regexp
}{
	{"2006年1月2日", regexp.MustCompile(`\d{4}年\d{1,2}月\d{1,2}日`)},
	{"2006/1/2", regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}`)},
	{"2006.1.2", regexp.MustCompile(`\d{4}\.\d{1,2}\.\d{1,2}`)},
	{"2006-01-02", regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)},
}

// dateInText pulls the first recognizable Japanese or ISO date out of
// a link title or its surrounding text. Returns zero when nothing
// parses.
func dateInText(text string) time.Time {
	for _, p := range datePatterns {
		match := p.expr.FindString(text)
		if match == "" {
			continue
		}
		if ts, err := time.Parse(p.layout, match); err == nil {
			return ts
		}
	}
	return time.Time{}
}
