// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package edinet is a client for Japan's EDINET disclosure API. It
// fetches daily document lists and downloads filings, with rate
// limiting, retry on server errors, and classification of EDINET's
// in-band error statuses (the API can return HTTP 200 with an internal
// failure status in the payload).
package edinet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.edinet-fsa.go.jp/api/v2"

	defaultListTimeout     = 30 * time.Second
	defaultDownloadTimeout = 300 * time.Second
	defaultMaxAttempts     = 3

	retryBaseDelay = 4 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// Client calls the EDINET v2 API. Safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	limiter         *rate.Limiter
	maxAttempts     int
	listTimeout     time.Duration
	downloadTimeout time.Duration
	logger          *slog.Logger

	// retryDelay is swapped out in tests.
	retryDelay func(attempt int) time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit caps outgoing requests. EDINET is a shared public
// service; the default stays polite.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for the given API key. The key is sent as
// the Subscription-Key query parameter on every request.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("EDINET API key is required")
	}
	c := &Client{
		httpClient:      &http.Client{},
		baseURL:         DefaultBaseURL,
		apiKey:          apiKey,
		limiter:         rate.NewLimiter(rate.Limit(10), 5),
		maxAttempts:     defaultMaxAttempts,
		listTimeout:     defaultListTimeout,
		downloadTimeout: defaultDownloadTimeout,
		logger:          slog.Default(),
		retryDelay:      backoffDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetDocumentList fetches the filing list for one day. With
// includeDetails the response carries full per-document metadata
// (type=2); without it only the counts (type=1).
func (c *Client) GetDocumentList(ctx context.Context, day time.Time, includeDetails bool) (*DocumentListResponse, error) {
	endpoint := "/documents.json"
	reqType := "1"
	if includeDetails {
		reqType = "2"
	}
	query := url.Values{
		"date": {day.Format("2006-01-02")},
		"type": {reqType},
	}

	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	body, _, err := c.getWithRetry(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	if err := checkTopLevelStatus(body, endpoint); err != nil {
		return nil, err
	}
	var resp DocumentListResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding document list: %w", err)
	}
	if err := checkMetadataStatus(resp.Metadata, endpoint); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadDocument fetches a document in the requested format and
// writes it to savePath, creating parent directories as needed. A JSON
// body on a 200 response is an in-band error, never document content.
func (c *Client) DownloadDocument(ctx context.Context, docID string, docType DownloadType, savePath string) (string, error) {
	endpoint := "/documents/" + docID
	query := url.Values{"type": {strconv.Itoa(int(docType))}}

	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	body, header, err := c.getWithRetry(ctx, endpoint, query)
	if err != nil {
		return "", err
	}

	if strings.Contains(header.Get("Content-Type"), "application/json") {
		if err := checkTopLevelStatus(body, endpoint); err != nil {
			return "", err
		}
		var resp DocumentListResponse
		if err := sonic.Unmarshal(body, &resp); err == nil {
			if err := checkMetadataStatus(resp.Metadata, endpoint); err != nil {
				return "", err
			}
		}
		return "", newAPIError(0, "unexpected JSON response for document download", endpoint)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	if err := os.WriteFile(savePath, body, 0o644); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}
	c.logger.Debug("Downloaded document", "doc_id", docID, "type", int(docType), "bytes", len(body), "path", savePath)
	return savePath, nil
}

// getWithRetry performs the request, retrying on server errors with
// exponential backoff. Client errors (4xx) return immediately.
func (c *Client) getWithRetry(ctx context.Context, endpoint string, query url.Values) ([]byte, http.Header, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay(attempt)
			c.logger.Warn("Retrying EDINET request", "endpoint", endpoint, "attempt", attempt, "delay", delay.String())
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, header, err := c.get(ctx, endpoint, query)
		if err == nil {
			return body, header, nil
		}
		lastErr = err
		if !errors.Is(err, ErrServer) {
			return nil, nil, err
		}
	}
	return nil, nil, lastErr
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	query.Set("Subscription-Key", c.apiKey)
	reqURL := c.baseURL + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, newAPIError(resp.StatusCode, messageFromBody(body), endpoint)
	}
	return body, resp.Header, nil
}

// checkTopLevelStatus handles the {"statusCode": 401, "message": ...}
// error format EDINET returns under HTTP 200.
func checkTopLevelStatus(body []byte, endpoint string) error {
	var probe struct {
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	if err := sonic.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if probe.StatusCode != 0 && probe.StatusCode != http.StatusOK {
		return newAPIError(probe.StatusCode, probe.Message, endpoint)
	}
	return nil
}

// checkMetadataStatus handles the {"metadata": {"status": "404"}}
// error format.
func checkMetadataStatus(meta ResponseMetadata, endpoint string) error {
	if meta.Status == "" || meta.Status == "200" {
		return nil
	}
	code, err := strconv.Atoi(meta.Status)
	if err != nil {
		code = 0
	}
	return newAPIError(code, meta.Message, endpoint)
}

func messageFromBody(body []byte) string {
	var probe struct {
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(body, &probe); err == nil && probe.Message != "" {
		return probe.Message
	}
	return ""
}

func backoffDelay(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 2) // 4s, 8s, 16s, ...
	if d <= 0 || d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}
