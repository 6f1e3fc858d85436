// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edinet

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const (
	// DefaultCodeListURL is the FSA's published EDINET code list, a zip
	// holding one Shift-JIS CSV of every registered filer.
	DefaultCodeListURL = "https://disclosure2dl.edinet-fsa.go.jp/searchdocument/codelist/Edinetcode.zip"

	codeListCSVName   = "EdinetcodeDlInfo.csv"
	codeListStampName = "Edinetcode.timestamp"

	// defaultCodeListMaxAge is how long a downloaded list stays fresh.
	// The FSA refreshes the file daily but filer churn is slow.
	defaultCodeListMaxAge = 7 * 24 * time.Hour

	maxCodeListBytes = 64 * 1024 * 1024
)

// Company is one registered filer from the EDINET code list.
type Company struct {
	EDINETCode  string `json:"edinet_code"`
	SecCode     string `json:"sec_code,omitempty"`
	Name        string `json:"name"`
	NameKana    string `json:"name_kana,omitempty"`
	NameEnglish string `json:"name_english,omitempty"`
	Listed      bool   `json:"listed"`
	Industry    string `json:"industry,omitempty"`
}

// CompanyMatch is one lookup candidate with its match score (0-100)
// and the field the query matched on.
type CompanyMatch struct {
	Company    Company `json:"company"`
	Score      int     `json:"score"`
	MatchField string  `json:"match_field"`
}

// CodeList resolves company names, securities codes, and EDINET codes
// against the FSA's filer registry. The list is downloaded once,
// cached on disk, and reloaded only after it goes stale. Safe for
// concurrent use.
type CodeList struct {
	dir        string
	sourceURL  string
	maxAge     time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	companies []Company
	byEDINET  map[string]int
	bySec     map[string]int
}

type CodeListOption func(*CodeList)

func WithCodeListURL(u string) CodeListOption {
	return func(c *CodeList) {
		if u != "" {
			c.sourceURL = u
		}
	}
}

func WithCodeListMaxAge(d time.Duration) CodeListOption {
	return func(c *CodeList) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

func WithCodeListHTTPClient(hc *http.Client) CodeListOption {
	return func(c *CodeList) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithCodeListLogger(logger *slog.Logger) CodeListOption {
	return func(c *CodeList) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCodeList builds a resolver that caches the downloaded list under
// dir.
func NewCodeList(dir string, opts ...CodeListOption) *CodeList {
	c := &CodeList{
		dir:        dir,
		sourceURL:  DefaultCodeListURL,
		maxAge:     defaultCodeListMaxAge,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var edinetCodePattern = regexp.MustCompile(`^E\d{5}$`)

// Search resolves a free-form query to filer candidates. An EDINET
// code or securities code resolves exactly; anything else is matched
// against the registered names (Japanese, kana, English) and scored.
// Results come back sorted best-first, at most limit entries.
func (c *CodeList) Search(ctx context.Context, query string, limit int) ([]CompanyMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("company query is required")
	}
	if limit <= 0 {
		limit = 5
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if edinetCodePattern.MatchString(strings.ToUpper(query)) {
		if idx, ok := c.byEDINET[strings.ToUpper(query)]; ok {
			return []CompanyMatch{{Company: c.companies[idx], Score: 100, MatchField: "edinet_code"}}, nil
		}
		return nil, nil
	}
	if sec, ok := normalizeSecCode(query); ok {
		if idx, ok := c.bySec[sec]; ok {
			return []CompanyMatch{{Company: c.companies[idx], Score: 100, MatchField: "sec_code"}}, nil
		}
		return nil, nil
	}

	matches := c.matchByName(query)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ByEDINETCode returns the filer registered under the given code.
func (c *CodeList) ByEDINETCode(ctx context.Context, code string) (*Company, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.byEDINET[strings.ToUpper(strings.TrimSpace(code))]; ok {
		company := c.companies[idx]
		return &company, nil
	}
	return nil, nil
}

// BySecCode returns the filer for a securities code. Four-digit codes
// are normalized to EDINET's five-digit form with a trailing zero.
func (c *CodeList) BySecCode(ctx context.Context, code string) (*Company, error) {
	sec, ok := normalizeSecCode(code)
	if !ok {
		return nil, fmt.Errorf("invalid securities code %q", code)
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.bySec[sec]; ok {
		company := c.companies[idx]
		return &company, nil
	}
	return nil, nil
}

func normalizeSecCode(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if _, err := strconv.Atoi(code); err != nil {
		return "", false
	}
	switch len(code) {
	case 4:
		return code + "0", true
	case 5:
		return code, true
	}
	return "", false
}

// legalPrefixes are stripped before name comparison so "トヨタ" finds
// "トヨタ自動車株式会社".
var legalPrefixes = []string{"株式会社", "有限会社", "合同会社", "合資会社", "合名会社"}

func stripLegalForm(name string) string {
	for _, prefix := range legalPrefixes {
		name = strings.ReplaceAll(name, prefix, "")
	}
	return strings.TrimSpace(name)
}

// majorIndustryKeywords break score ties toward well-known filers when
// a short query matches many names.
var majorIndustryKeywords = []string{"自動車", "電機", "製薬", "銀行", "証券", "保険", "製作所"}

func (c *CodeList) matchByName(query string) []CompanyMatch {
	queryNorm := strings.ToLower(stripLegalForm(query))
	if queryNorm == "" {
		return nil
	}

	var matches []CompanyMatch
	for _, company := range c.companies {
		score, field := scoreCompany(company, queryNorm)
		if score < 50 {
			continue
		}
		matches = append(matches, CompanyMatch{Company: company, Score: score, MatchField: field})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		pi, pj := prefixRank(matches[i].Company, queryNorm), prefixRank(matches[j].Company, queryNorm)
		if pi != pj {
			return pi > pj
		}
		if matches[i].Company.Listed != matches[j].Company.Listed {
			return matches[i].Company.Listed
		}
		ii, ij := industryRank(matches[i].Company), industryRank(matches[j].Company)
		if ii != ij {
			return ii > ij
		}
		return matches[i].Company.Name < matches[j].Company.Name
	})
	return matches
}

// scoreCompany scores by containment: one name containing the other
// is a full match, matching the dominant way users abbreviate
// Japanese company names.
func scoreCompany(company Company, queryNorm string) (int, string) {
	fields := []struct {
		value string
		name  string
	}{
		{strings.ToLower(stripLegalForm(company.Name)), "name"},
		{strings.ToLower(company.NameKana), "name_kana"},
		{strings.ToLower(company.NameEnglish), "name_english"},
	}
	best, bestField := 0, ""
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		score := 0
		switch {
		case f.value == queryNorm:
			score = 100
		case strings.Contains(f.value, queryNorm) || strings.Contains(queryNorm, f.value):
			score = 90
		}
		if score > best {
			best, bestField = score, f.name
		}
	}
	return best, bestField
}

func prefixRank(company Company, queryNorm string) int {
	if strings.HasPrefix(strings.ToLower(stripLegalForm(company.Name)), queryNorm) {
		return 1
	}
	return 0
}

func industryRank(company Company) int {
	for _, kw := range majorIndustryKeywords {
		if strings.Contains(company.Name, kw) || strings.Contains(company.Industry, kw) {
			return 1
		}
	}
	return 0
}

// ensure loads the list into memory, downloading a fresh copy when the
// cached one is missing or stale. A stale cache is still served if the
// refresh fails; resolution beats freshness here.
func (c *CodeList) ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := c.cacheFresh()
	if len(c.companies) > 0 && fresh {
		return nil
	}

	if !fresh {
		if err := c.refresh(ctx); err != nil {
			if len(c.companies) > 0 || c.cacheExists() {
				c.logger.Warn("Code list refresh failed, serving stale cache", "error", err.Error())
			} else {
				return fmt.Errorf("downloading EDINET code list: %w", err)
			}
		}
	}
	if len(c.companies) > 0 && !c.cacheFresh() {
		// Stale but already loaded; skip the reparse.
		return nil
	}
	return c.load()
}

func (c *CodeList) csvPath() string   { return filepath.Join(c.dir, codeListCSVName) }
func (c *CodeList) stampPath() string { return filepath.Join(c.dir, codeListStampName) }

func (c *CodeList) cacheExists() bool {
	_, err := os.Stat(c.csvPath())
	return err == nil
}

func (c *CodeList) cacheFresh() bool {
	if !c.cacheExists() {
		return false
	}
	data, err := os.ReadFile(c.stampPath())
	if err != nil {
		return false
	}
	stamp, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	return time.Since(stamp) < c.maxAge
}

// refresh downloads the zip and writes the extracted CSV plus a
// timestamp marker next to it.
func (c *CodeList) refresh(ctx context.Context) error {
	c.logger.Info("Downloading EDINET code list", "url", c.sourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp.StatusCode, "code list download failed", c.sourceURL)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxCodeListBytes))
	if err != nil {
		return fmt.Errorf("reading code list: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return fmt.Errorf("opening code list zip: %w", err)
	}
	var csvData []byte
	for _, f := range zr.File {
		if filepath.Base(f.Name) != codeListCSVName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		csvData, err = io.ReadAll(io.LimitReader(rc, maxCodeListBytes))
		rc.Close()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		break
	}
	if csvData == nil {
		return fmt.Errorf("zip does not contain %s", codeListCSVName)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(c.csvPath(), csvData, 0o644); err != nil {
		return fmt.Errorf("writing code list CSV: %w", err)
	}
	if err := os.WriteFile(c.stampPath(), []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("writing code list timestamp: %w", err)
	}
	c.companies = nil
	c.logger.Info("EDINET code list cached", "bytes", len(csvData), "path", c.csvPath())
	return nil
}

// CSV column headers as published by the FSA.
const (
	columnEDINETCode  = "ＥＤＩＮＥＴコード"
	columnSecCode     = "証券コード"
	columnName        = "提出者名"
	columnNameKana    = "提出者名（カナ）"
	columnNameEnglish = "提出者名（英字）"
	columnListed      = "上場区分"
	columnIndustry    = "提出者業種"
)

// load parses the cached CSV. The file is Shift-JIS with a one-line
// banner before the header row.
func (c *CodeList) load() error {
	f, err := os.Open(c.csvPath())
	if err != nil {
		return fmt.Errorf("opening code list CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(transform.NewReader(f, japanese.ShiftJIS.NewDecoder()))
	reader.FieldsPerRecord = -1

	// Banner line.
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("reading code list banner: %w", err)
	}
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading code list header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col[columnEDINETCode]; !ok {
		return fmt.Errorf("code list CSV missing %s column", columnEDINETCode)
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var companies []Company
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading code list row: %w", err)
		}
		company := Company{
			EDINETCode:  field(record, columnEDINETCode),
			SecCode:     field(record, columnSecCode),
			Name:        field(record, columnName),
			NameKana:    field(record, columnNameKana),
			NameEnglish: field(record, columnNameEnglish),
			Listed:      field(record, columnListed) == "上場",
			Industry:    field(record, columnIndustry),
		}
		if company.EDINETCode == "" || company.Name == "" {
			continue
		}
		companies = append(companies, company)
	}

	c.companies = companies
	c.byEDINET = make(map[string]int, len(companies))
	c.bySec = make(map[string]int, len(companies))
	for i, company := range companies {
		c.byEDINET[company.EDINETCode] = i
		if company.SecCode != "" {
			c.bySec[company.SecCode] = i
		}
	}
	c.logger.Info("EDINET code list loaded", "companies", len(companies))
	return nil
}
