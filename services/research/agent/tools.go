// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research"
	"github.com/harborline/filinglens/services/research/cache"
	"github.com/harborline/filinglens/services/research/docparse"
	"github.com/harborline/filinglens/services/research/edinet"
	"github.com/harborline/filinglens/services/research/ir"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/stages"
)

const (
	// maxCompareDocRunes bounds each document section in the comparison
	// prompt so several filings fit one context window.
	maxCompareDocRunes = 40_000
	// maxSummaryRunes bounds the content handed to the summarizer.
	maxSummaryRunes = 60_000
	// summaryChunkRunes is the chunk size used when narrowing a
	// document to the chunks that mention the requested focus.
	summaryChunkRunes = 4_000

	// compareConcurrency limits parallel document preparation.
	compareConcurrency = 3

	// defaultSearchDays is the lookback window when a search query
	// names no dates. EDINET serves one list per day, so an unbounded
	// range would fan out into one request per calendar day.
	defaultSearchDays = 7
)

// defaultAspects are the comparison axes used when the caller names
// none.
var defaultAspects = []string{"事業内容", "財務状況", "リスク"}

// Tool is one capability the agent can route a query to. Run returns
// a JSON document describing the result.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, args Args) (string, error)
}

// Args carries extracted tool arguments as strings. List-valued
// arguments are comma-separated.
type Args map[string]string

// Get returns a trimmed argument value.
func (a Args) Get(key string) string {
	return strings.TrimSpace(a[key])
}

// List splits a comma-separated argument into its non-empty parts.
func (a Args) List(key string) []string {
	raw := a[key]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Runner is the slice of the analysis pipeline the tools need.
// Partial runs give the tools cache-aware fetch and text extraction
// without re-running analysis stages.
type Runner interface {
	RunFull(ctx context.Context, docID, priorDocID string) (*research.Result, error)
	RunStage(ctx context.Context, stageName, docID, priorDocID string) (*research.Result, error)
}

// DocumentSearcher is the slice of edinet.DocumentService the search
// tool needs.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, filter edinet.Filter) ([]edinet.DocumentMetadata, error)
}

// StatsProvider is the slice of cache.Store the stats tool needs.
type StatsProvider interface {
	Stats(ctx context.Context) (*cache.Stats, error)
}

// CompanySearcher is the slice of edinet.CodeList the lookup tool
// needs.
type CompanySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]edinet.CompanyMatch, error)
}

// IRFetcher is the slice of ir.Service the IR tool needs.
type IRFetcher interface {
	FetchDocuments(ctx context.Context, secCode string, opts ir.FetchOptions) ([]ir.Document, error)
	ExplorePage(ctx context.Context, secCode, pageURL string, opts ir.FetchOptions) ([]ir.Document, error)
}

func marshalResult(v any) (string, error) {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(data), nil
}

// normalizedContent runs the minimal closure ending at the normalize
// stage and returns the document's markdown. Cached artifacts are
// reused by the stages themselves.
func normalizedContent(ctx context.Context, runner Runner, docID string) (string, error) {
	result, err := runner.RunStage(ctx, stages.StageNormalize, docID, "")
	if err != nil {
		return "", err
	}
	// Report the root cause when the closure failed.
	if failure, ok := result.State.FailureFor(stages.StageFetch); ok {
		return "", errors.New(failure.Message)
	}
	if failure, ok := result.State.FailureFor(stages.StageNormalize); ok {
		return "", errors.New(failure.Message)
	}
	value, ok := result.State.Value(stages.FieldDocument)
	if !ok {
		return "", fmt.Errorf("document %s produced no text", docID)
	}
	text, ok := value.(*stages.NormalizedText)
	if !ok {
		return "", fmt.Errorf("document %s produced no text", docID)
	}
	return text.Content, nil
}

// AnalyzeTool runs the full analysis pipeline for one filing and
// returns the comprehensive report.
type AnalyzeTool struct {
	runner Runner
}

func NewAnalyzeTool(runner Runner) *AnalyzeTool {
	return &AnalyzeTool{runner: runner}
}

func (t *AnalyzeTool) Name() string { return "analyze_document" }

func (t *AnalyzeTool) Description() string {
	return "書類IDを指定して有価証券報告書を分析し、統合レポートを生成する"
}

func (t *AnalyzeTool) Run(ctx context.Context, args Args) (string, error) {
	docID := args.Get("doc_id")
	if docID == "" {
		return "", errors.New("doc_id is required")
	}

	result, err := t.runner.RunFull(ctx, docID, args.Get("prior_doc_id"))
	if err != nil {
		return "", err
	}
	if result.Report == nil {
		parts := make([]string, 0, len(result.State.Errors))
		for _, se := range result.State.Errors {
			parts = append(parts, se.Error())
		}
		if len(parts) == 0 {
			parts = append(parts, "unknown error")
		}
		return "", fmt.Errorf("analysis failed: %s", strings.Join(parts, "; "))
	}
	return marshalResult(result.Report)
}

// DownloadTool fetches a filing PDF without analyzing it.
type DownloadTool struct {
	runner Runner
}

func NewDownloadTool(runner Runner) *DownloadTool {
	return &DownloadTool{runner: runner}
}

func (t *DownloadTool) Name() string { return "download_document" }

func (t *DownloadTool) Description() string {
	return "書類IDを指定してPDFをダウンロードする（分析は行わない）"
}

func (t *DownloadTool) Run(ctx context.Context, args Args) (string, error) {
	docID := args.Get("doc_id")
	if docID == "" {
		return "", errors.New("doc_id is required")
	}

	result, err := t.runner.RunStage(ctx, stages.StageFetch, docID, "")
	if err != nil {
		return "", err
	}
	if failure, ok := result.State.FailureFor(stages.StageFetch); ok {
		return "", errors.New(failure.Message)
	}
	value, ok := result.State.Value(stages.FieldFiling)
	if !ok {
		return "", fmt.Errorf("document %s produced no artifact", docID)
	}
	artifact, ok := value.(*stages.FilingArtifact)
	if !ok {
		return "", fmt.Errorf("document %s produced no artifact", docID)
	}
	return marshalResult(artifact)
}

// CompareTool compares two or more filings aspect by aspect.
type CompareTool struct {
	runner Runner
	client llm.Client
}

func NewCompareTool(runner Runner, client llm.Client) *CompareTool {
	return &CompareTool{runner: runner, client: client}
}

func (t *CompareTool) Name() string { return "compare_documents" }

func (t *CompareTool) Description() string {
	return "複数の書類IDを指定して企業間の比較分析を行う"
}

func (t *CompareTool) Run(ctx context.Context, args Args) (string, error) {
	docIDs := args.List("doc_ids")
	if len(docIDs) < 2 {
		return "", errors.New("at least 2 document IDs are required for comparison")
	}
	aspects := args.List("aspects")
	if len(aspects) == 0 {
		aspects = defaultAspects
	}

	slog.Info("Comparing documents", "doc_ids", docIDs, "aspects", aspects)

	sections := make([]string, len(docIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compareConcurrency)
	for i, docID := range docIDs {
		g.Go(func() error {
			content, err := normalizedContent(gctx, t.runner, docID)
			if err != nil {
				return fmt.Errorf("document %s: %w", docID, err)
			}
			sections[i] = fmt.Sprintf("## 書類: %s\n\n%s",
				docID, docparse.TruncateRunes(content, maxCompareDocRunes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	prompt, err := renderPrompt(compareDocumentsPrompt, map[string]any{
		"documents": strings.Join(sections, "\n\n---\n\n"),
		"aspects":   strings.Join(aspects, ", "),
	})
	if err != nil {
		return "", err
	}

	var cmp report.ComparisonReport
	if err := t.client.GenerateStructured(ctx, prompt, &cmp, llm.GenerationParams{}); err != nil {
		return "", fmt.Errorf("comparing documents: %w", err)
	}
	cmp.Documents = docIDs
	cmp.Aspects = aspects
	return marshalResult(&cmp)
}

// SummarizeTool produces a digest of one filing, optionally narrowed
// to a focus such as リスク or 財務.
type SummarizeTool struct {
	runner Runner
	client llm.Client
}

func NewSummarizeTool(runner Runner, client llm.Client) *SummarizeTool {
	return &SummarizeTool{runner: runner, client: client}
}

func (t *SummarizeTool) Name() string { return "summarize_document" }

func (t *SummarizeTool) Description() string {
	return "書類IDを指定して有価証券報告書を要約する"
}

func (t *SummarizeTool) Run(ctx context.Context, args Args) (string, error) {
	docID := args.Get("doc_id")
	if docID == "" {
		return "", errors.New("doc_id is required")
	}
	focus := args.Get("focus")

	content, err := normalizedContent(ctx, t.runner, docID)
	if err != nil {
		return "", err
	}

	focusLabel := focus
	if focusLabel == "" {
		focusLabel = "全体"
	}
	prompt, err := renderPrompt(summarizeDocumentPrompt, map[string]any{
		"focus":   focusLabel,
		"content": focusContent(content, focus),
	})
	if err != nil {
		return "", err
	}

	var sum report.Summary
	if err := t.client.GenerateStructured(ctx, prompt, &sum, llm.GenerationParams{}); err != nil {
		return "", fmt.Errorf("summarizing document %s: %w", docID, err)
	}
	sum.DocID = docID
	sum.Focus = focus
	return marshalResult(&sum)
}

// focusContent narrows long documents to the chunks mentioning the
// focus. Without a focus, or when no chunk mentions it, the head of
// the document is used instead.
func focusContent(content, focus string) string {
	if strings.TrimSpace(focus) == "" {
		return docparse.TruncateRunes(content, maxSummaryRunes)
	}
	chunks, err := docparse.SplitMarkdown(content, summaryChunkRunes, 0)
	if err != nil || len(chunks) == 0 {
		return docparse.TruncateRunes(content, maxSummaryRunes)
	}
	var picked []string
	for _, chunk := range chunks {
		if strings.Contains(chunk, focus) {
			picked = append(picked, chunk)
		}
	}
	if len(picked) == 0 {
		return docparse.TruncateRunes(content, maxSummaryRunes)
	}
	return docparse.TruncateRunes(strings.Join(picked, "\n\n"), maxSummaryRunes)
}

// SearchTool looks up disclosure documents on EDINET.
type SearchTool struct {
	searcher DocumentSearcher
}

func NewSearchTool(searcher DocumentSearcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

func (t *SearchTool) Name() string { return "search_documents" }

func (t *SearchTool) Description() string {
	return "企業コードや企業名で開示書類を検索する"
}

func (t *SearchTool) Run(ctx context.Context, args Args) (string, error) {
	filter := edinet.Filter{
		EDINETCode:   args.Get("edinet_code"),
		SecCode:      args.Get("sec_code"),
		CompanyName:  args.Get("company_name"),
		DocTypeCodes: args.List("doc_type_codes"),
		StartDate:    parseDate(args.Get("start_date")),
		EndDate:      parseDate(args.Get("end_date")),
	}
	if filter.EDINETCode == "" && filter.SecCode == "" && filter.CompanyName == "" {
		return "", errors.New("edinet_code, sec_code or company_name is required")
	}
	if filter.StartDate.IsZero() && filter.EndDate.IsZero() {
		filter.EndDate = time.Now()
		filter.StartDate = filter.EndDate.AddDate(0, 0, -(defaultSearchDays - 1))
	}

	docs, err := t.searcher.SearchDocuments(ctx, filter)
	if err != nil {
		return "", err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].SubmitDateTime > docs[j].SubmitDateTime
	})
	if limit := parseLimit(args.Get("limit")); limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return marshalResult(docs)
}

func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		slog.Warn("Ignoring invalid date", "value", raw)
		return time.Time{}
	}
	return day
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// CompanyLookupTool resolves company names to EDINET and securities
// codes against the FSA's filer registry.
type CompanyLookupTool struct {
	companies CompanySearcher
}

func NewCompanyLookupTool(companies CompanySearcher) *CompanyLookupTool {
	return &CompanyLookupTool{companies: companies}
}

func (t *CompanyLookupTool) Name() string { return "search_company" }

func (t *CompanyLookupTool) Description() string {
	return "企業名からEDINETコードと証券コードを検索する"
}

func (t *CompanyLookupTool) Run(ctx context.Context, args Args) (string, error) {
	query := args.Get("company_name")
	if query == "" {
		query = args.Get("query")
	}
	if query == "" {
		return "", errors.New("company_name is required")
	}
	limit := parseLimit(args.Get("limit"))
	if limit == 0 {
		limit = 5
	}

	matches, err := t.companies.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return marshalResult(struct {
		Query   string                `json:"query"`
		Count   int                   `json:"count"`
		Matches []edinet.CompanyMatch `json:"matches"`
	}{Query: query, Count: len(matches), Matches: matches})
}

// IRFetchTool retrieves investor-relations documents from a company's
// website: by securities code through a saved template, or by page URL
// through LLM exploration.
type IRFetchTool struct {
	fetcher   IRFetcher
	companies CompanySearcher
}

// NewIRFetchTool builds the IR tool. companies may be nil, which
// disables name-based resolution; callers then pass sec_code or url.
func NewIRFetchTool(fetcher IRFetcher, companies CompanySearcher) *IRFetchTool {
	return &IRFetchTool{fetcher: fetcher, companies: companies}
}

func (t *IRFetchTool) Name() string { return "fetch_ir_documents" }

func (t *IRFetchTool) Description() string {
	return "企業のIRサイトから決算説明資料や適時開示などのIR資料を取得する"
}

func (t *IRFetchTool) Run(ctx context.Context, args Args) (string, error) {
	category, ok := ir.ParseCategory(args.Get("category"))
	if !ok {
		return "", fmt.Errorf("unknown IR category %q", args.Get("category"))
	}
	opts := ir.FetchOptions{
		Category:     category,
		MaxDocuments: parseLimit(args.Get("limit")),
		Summarize:    args.Get("summarize") == "true",
	}
	if days := parseLimit(args.Get("since_days")); days > 0 {
		opts.Since = time.Now().AddDate(0, 0, -days)
	}

	secCode := args.Get("sec_code")
	if pageURL := args.Get("url"); pageURL != "" {
		docs, err := t.fetcher.ExplorePage(ctx, secCode, pageURL, opts)
		if err != nil {
			return "", err
		}
		return marshalIRDocuments(secCode, docs)
	}

	if secCode == "" {
		resolved, err := t.resolveSecCode(ctx, args.Get("company_name"))
		if err != nil {
			return "", err
		}
		secCode = resolved
	}
	docs, err := t.fetcher.FetchDocuments(ctx, secCode, opts)
	if err != nil {
		return "", err
	}
	return marshalIRDocuments(secCode, docs)
}

func (t *IRFetchTool) resolveSecCode(ctx context.Context, companyName string) (string, error) {
	if companyName == "" || t.companies == nil {
		return "", errors.New("sec_code, url or company_name is required")
	}
	matches, err := t.companies.Search(ctx, companyName, 1)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 || matches[0].Company.SecCode == "" {
		return "", fmt.Errorf("no listed company found for %q", companyName)
	}
	return matches[0].Company.SecCode, nil
}

func marshalIRDocuments(secCode string, docs []ir.Document) (string, error) {
	return marshalResult(struct {
		SecCode   string        `json:"sec_code,omitempty"`
		Count     int           `json:"count"`
		Documents []ir.Document `json:"documents"`
	}{SecCode: secCode, Count: len(docs), Documents: docs})
}

// CacheStatsTool reports what the local cache holds.
type CacheStatsTool struct {
	provider StatsProvider
}

func NewCacheStatsTool(provider StatsProvider) *CacheStatsTool {
	return &CacheStatsTool{provider: provider}
}

func (t *CacheStatsTool) Name() string { return "cache_stats" }

func (t *CacheStatsTool) Description() string {
	return "ローカルキャッシュの統計情報を表示する"
}

func (t *CacheStatsTool) Run(ctx context.Context, args Args) (string, error) {
	stats, err := t.provider.Stats(ctx)
	if err != nil {
		return "", err
	}
	return marshalResult(stats)
}
