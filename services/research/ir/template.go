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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoTemplate is returned when no saved template covers the company.
var ErrNoTemplate = errors.New("no IR template for company")

// Section pins one listing page of a company's IR site. LinkPattern,
// when set, is a substring document URLs must contain; it filters
// navigation links out of listing pages that mix both.
type Section struct {
	URL         string `yaml:"url"`
	LinkPattern string `yaml:"link_pattern,omitempty"`
	DateFormat  string `yaml:"date_format,omitempty"`
}

// Template records where a company publishes IR material so repeat
// fetches skip the LLM entirely.
type Template struct {
	Company struct {
		SecCode    string `yaml:"sec_code"`
		Name       string `yaml:"name"`
		EDINETCode string `yaml:"edinet_code,omitempty"`
	} `yaml:"company"`
	IRPage struct {
		BaseURL  string               `yaml:"base_url"`
		Sections map[Category]Section `yaml:"sections"`
	} `yaml:"ir_page"`
}

// TemplateStore keeps one YAML file per company under a directory,
// named <sec_code>_<company>.yaml.
type TemplateStore struct {
	dir string
}

func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir}
}

// Load finds the template for a securities code.
func (ts *TemplateStore) Load(secCode string) (*Template, error) {
	secCode = strings.TrimSpace(secCode)
	if secCode == "" {
		return nil, errors.New("securities code is required")
	}
	matches, err := filepath.Glob(filepath.Join(ts.dir, secCode+"_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning templates: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, secCode)
	}
	sort.Strings(matches)

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", matches[0], err)
	}
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", matches[0], err)
	}
	if tpl.IRPage.BaseURL == "" || len(tpl.IRPage.Sections) == 0 {
		return nil, fmt.Errorf("template %s has no usable sections", matches[0])
	}
	return &tpl, nil
}

// Save writes the template, refusing to clobber an existing one unless
// overwrite is set. Returns the file path.
func (ts *TemplateStore) Save(tpl *Template, overwrite bool) (string, error) {
	if tpl == nil || tpl.Company.SecCode == "" {
		return "", errors.New("template needs a securities code")
	}
	name := tpl.Company.SecCode + "_" + sanitizeFileName(tpl.Company.Name) + ".yaml"
	path := filepath.Join(ts.dir, name)

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("template %s already exists", path)
		}
	}
	data, err := yaml.Marshal(tpl)
	if err != nil {
		return "", fmt.Errorf("encoding template: %w", err)
	}
	if err := os.MkdirAll(ts.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating template directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing template: %w", err)
	}
	return path, nil
}

// List returns the template file names on disk, sorted.
func (ts *TemplateStore) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(ts.dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning templates: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "company"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "　", "_", ":", "_")
	return replacer.Replace(name)
}

// scrapeSections walks the template's sections and collects document
// links from each listing page. wantCategory narrows to one section;
// empty means all.
func scrapeSections(ctx context.Context, scraper *Scraper, tpl *Template, wantCategory Category) ([]Document, error) {
	categories := make([]Category, 0, len(tpl.IRPage.Sections))
	for category := range tpl.IRPage.Sections {
		if wantCategory != "" && category != wantCategory {
			continue
		}
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var docs []Document
	var lastErr error
	for _, category := range categories {
		section := tpl.IRPage.Sections[category]
		found, err := scrapeSection(ctx, scraper, section, category)
		if err != nil {
			lastErr = err
			continue
		}
		docs = append(docs, found...)
	}
	if len(docs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return dedupeByURL(docs), nil
}

func scrapeSection(ctx context.Context, scraper *Scraper, section Section, category Category) ([]Document, error) {
	src, err := scraper.FetchPage(ctx, section.URL)
	if err != nil {
		return nil, err
	}

	var docs []Document
	for _, link := range pageLinks(src, section.URL) {
		if !strings.HasSuffix(strings.ToLower(strippedPath(link.URL)), ".pdf") {
			continue
		}
		if section.LinkPattern != "" && !strings.Contains(link.URL, section.LinkPattern) {
			continue
		}
		doc := Document{
			Title:         link.Text,
			URL:           link.URL,
			Category:      classifyTitle(link.Text, category),
			PublishedDate: sectionDate(link.Text, section.DateFormat),
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func sectionDate(text, layout string) time.Time {
	if layout != "" {
		for _, field := range strings.Fields(text) {
			if ts, err := time.Parse(layout, field); err == nil {
				return ts
			}
		}
	}
	return dateInText(text)
}

func strippedPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
