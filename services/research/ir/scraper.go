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
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "FilingLensBot/1.0 (+https://harborline.io/filinglens)"

	maxPageBytes = 8 * 1024 * 1024
	maxPDFBytes  = 128 * 1024 * 1024
)

// ErrDisallowed marks a URL the site's robots.txt excludes.
var ErrDisallowed = fmt.Errorf("path disallowed by robots.txt")

// Scraper fetches IR pages and downloads disclosed PDFs over plain
// HTTP. Requests are rate limited per scraper and robots.txt is
// honored per host. Safe for concurrent use.
type Scraper struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger

	mu     sync.Mutex
	robots map[string][]string
}

type ScraperOption func(*Scraper)

func WithScraperHTTPClient(hc *http.Client) ScraperOption {
	return func(s *Scraper) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithScraperRateLimit caps outgoing requests. Company IR servers are
// small; the default stays at one request per second.
func WithScraperRateLimit(rps float64, burst int) ScraperOption {
	return func(s *Scraper) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) ScraperOption {
	return func(s *Scraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewScraper(opts ...ScraperOption) *Scraper {
	s := &Scraper{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		userAgent:  defaultUserAgent,
		logger:     slog.Default(),
		robots:     make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPage retrieves one HTML page as a string.
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := s.checkRobots(ctx, pageURL); err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pageURL, err)
	}
	s.logger.Debug("Fetched IR page", "url", pageURL, "bytes", len(body))
	return string(body), nil
}

// DownloadPDF fetches a document to savePath, creating parent
// directories. An existing file is reused unless force is set. The
// page the link came from rides as the Referer; some IR servers
// reject bare downloads.
func (s *Scraper) DownloadPDF(ctx context.Context, docURL, referer, savePath string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(savePath); err == nil {
			s.logger.Debug("PDF already downloaded", "path", savePath)
			return savePath, nil
		}
	}
	if err := s.checkRobots(ctx, docURL); err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", fmt.Errorf("building download request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/pdf,*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", docURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %d", docURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", docURL, err)
	}
	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	if err := os.WriteFile(savePath, body, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", savePath, err)
	}
	s.logger.Info("Downloaded IR document", "url", docURL, "bytes", len(body), "path", savePath)
	return savePath, nil
}

// checkRobots enforces the host's robots.txt for the wildcard agent.
// An unreachable or unparsable robots.txt allows everything.
func (s *Scraper) checkRobots(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: no host", rawURL)
	}

	disallowed := s.disallowedPrefixes(ctx, parsed)
	for _, prefix := range disallowed {
		if strings.HasPrefix(parsed.Path, prefix) {
			return fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
	}
	return nil
}

func (s *Scraper) disallowedPrefixes(ctx context.Context, page *url.URL) []string {
	s.mu.Lock()
	prefixes, ok := s.robots[page.Host]
	s.mu.Unlock()
	if ok {
		return prefixes
	}

	prefixes = s.fetchRobots(ctx, page.Scheme+"://"+page.Host+"/robots.txt")
	s.mu.Lock()
	s.robots[page.Host] = prefixes
	s.mu.Unlock()
	return prefixes
}

func (s *Scraper) fetchRobots(ctx context.Context, robotsURL string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	return parseRobots(string(body))
}

// parseRobots extracts Disallow prefixes from the wildcard agent
// group. Only the subset of the protocol IR sites actually use.
func parseRobots(body string) []string {
	var prefixes []string
	applies := false
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "user-agent:"):
			agent := strings.TrimSpace(line[len("user-agent:"):])
			applies = agent == "*"
		case applies && strings.HasPrefix(lower, "disallow:"):
			path := strings.TrimSpace(line[len("disallow:"):])
			if path != "" {
				prefixes = append(prefixes, path)
			}
		}
	}
	return prefixes
}
