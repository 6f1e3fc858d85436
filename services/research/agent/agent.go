// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent routes natural-language research queries to tools.
//
// Routing is two-tiered: keyword scoring over an embedded registry
// resolves the common phrasings without an LLM round trip, and an LLM
// intent classification breaks ties or handles queries no keyword
// matches. Document IDs and dates are extracted from the query by
// pattern; company names and summary focus come from the classifier.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/harborline/filinglens/services/llm"
)

// ErrNoToolMatched reports that neither keyword routing nor intent
// classification produced a usable tool for the query.
var ErrNoToolMatched = errors.New("no tool matches the query")

const (
	routeSourceKeywords = "keywords"
	routeSourceLLM      = "llm"
)

var (
	// EDINET document IDs look like S100ABCD.
	docIDPattern   = regexp.MustCompile(`(?i)\bS100[0-9A-Z]{4}\b`)
	datePattern    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	urlPattern     = regexp.MustCompile(`https?://[^\s　]+`)
	secCodePattern = regexp.MustCompile(`\b\d{4,5}\b`)
)

// Answer is the agent's reply: which tool ran, under which inferred
// intent, and the tool's JSON result.
type Answer struct {
	Query     string   `json:"query"`
	Intent    string   `json:"intent"`
	Tool      string   `json:"tool"`
	Result    string   `json:"result"`
	ToolsUsed []string `json:"tools_used"`
}

// intentDecision is the structured output of the LLM intent
// classifier.
type intentDecision struct {
	Tool        string `json:"tool" validate:"required"`
	CompanyName string `json:"company_name,omitempty"`
	Focus       string `json:"focus,omitempty"`
}

// Agent answers research queries by picking and running one tool.
type Agent struct {
	registry *Registry
	tools    map[string]Tool
	client   llm.Client
	logger   *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRegistry replaces the registry loaded from disk or the binary.
func WithRegistry(registry *Registry) Option {
	return func(a *Agent) {
		if registry != nil {
			a.registry = registry
		}
	}
}

// New builds an agent over the given tools. The client powers intent
// classification for queries keyword routing cannot resolve.
func New(client llm.Client, tools []Tool, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if len(tools) == 0 {
		return nil, errors.New("at least one tool is required")
	}

	a := &Agent{
		client: client,
		tools:  make(map[string]Tool, len(tools)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		registry, err := LoadRegistry()
		if err != nil {
			return nil, fmt.Errorf("loading tool registry: %w", err)
		}
		a.registry = registry
	}

	for _, tool := range tools {
		if tool == nil {
			continue
		}
		if _, dup := a.tools[tool.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool %q", tool.Name())
		}
		a.tools[tool.Name()] = tool
	}
	if len(a.tools) == 0 {
		return nil, errors.New("at least one tool is required")
	}
	return a, nil
}

// ToolNames returns the registered tool names, sorted.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process routes the query to a tool, runs it, and returns the
// answer.
func (a *Agent) Process(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	a.logger.Info("Processing query", "query", preview(query, 120))

	args := extractArgs(query)

	routeStart := time.Now()
	name, source, err := a.route(ctx, query, args)
	routingLatency.Observe(time.Since(routeStart).Seconds())
	if err != nil {
		return nil, err
	}
	routingDecisions.WithLabelValues(name, source).Inc()
	a.logger.Info("Routed query", "tool", name, "source", source)

	tool := a.tools[name]
	runStart := time.Now()
	result, err := tool.Run(ctx, args)
	toolDuration.WithLabelValues(name).Observe(time.Since(runStart).Seconds())
	if err != nil {
		toolRuns.WithLabelValues(name, "error").Inc()
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	toolRuns.WithLabelValues(name, "ok").Inc()

	return &Answer{
		Query:     query,
		Intent:    intentFor(name),
		Tool:      name,
		Result:    result,
		ToolsUsed: []string{name},
	}, nil
}

// route picks a tool name and reports how it was picked. A clear
// keyword winner short-circuits; ties and keyword-less queries go to
// the LLM classifier, which may also fill argument slots.
func (a *Agent) route(ctx context.Context, query string, args Args) (string, string, error) {
	matches := a.registry.Match(query)
	registered := matches[:0]
	for _, m := range matches {
		if _, ok := a.tools[m.Tool]; ok {
			registered = append(registered, m)
		}
	}
	if len(registered) > 0 &&
		(len(registered) == 1 || registered[0].MatchCount > registered[1].MatchCount) {
		return registered[0].Tool, routeSourceKeywords, nil
	}
	return a.classify(ctx, query, args)
}

func (a *Agent) classify(ctx context.Context, query string, args Args) (string, string, error) {
	prompt, err := renderPrompt(classifyIntentPrompt, map[string]any{
		"query": query,
		"tools": a.toolGuide(),
	})
	if err != nil {
		return "", "", err
	}

	var decision intentDecision
	if err := a.client.GenerateStructured(ctx, prompt, &decision, llm.GenerationParams{}); err != nil {
		return "", "", fmt.Errorf("classifying query intent: %w", err)
	}
	if _, ok := a.tools[decision.Tool]; !ok {
		return "", "", fmt.Errorf("%w: classifier picked %q", ErrNoToolMatched, decision.Tool)
	}
	if decision.CompanyName != "" {
		args["company_name"] = decision.CompanyName
	}
	if decision.Focus != "" {
		args["focus"] = decision.Focus
	}
	return decision.Tool, routeSourceLLM, nil
}

// toolGuide renders one line per registered tool for the classifier
// prompt, preferring the registry's use_when guidance.
func (a *Agent) toolGuide() string {
	var b strings.Builder
	for _, name := range a.ToolNames() {
		b.WriteString("- ")
		b.WriteString(name)
		if entry, ok := a.registry.Entry(name); ok && entry.UseWhen != "" {
			b.WriteString(": ")
			b.WriteString(entry.UseWhen)
			if entry.AvoidWhen != "" {
				b.WriteString("（不適: ")
				b.WriteString(entry.AvoidWhen)
				b.WriteString("）")
			}
		} else if desc := a.tools[name].Description(); desc != "" {
			b.WriteString(": ")
			b.WriteString(desc)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractArgs pulls pattern-recognizable arguments out of the query.
// When a query names two documents the second is treated as the prior
// period; the compare tool reads the full doc_ids list instead.
func extractArgs(query string) Args {
	args := Args{"query": query}

	ids := docIDPattern.FindAllString(query, -1)
	if len(ids) > 0 {
		for i := range ids {
			ids[i] = strings.ToUpper(ids[i])
		}
		args["doc_id"] = ids[0]
		args["doc_ids"] = strings.Join(ids, ",")
		if len(ids) == 2 {
			args["prior_doc_id"] = ids[1]
		}
	}

	dates := datePattern.FindAllString(query, -1)
	if len(dates) > 0 {
		args["start_date"] = dates[0]
	}
	if len(dates) > 1 {
		args["end_date"] = dates[1]
	}

	masked := query
	if pageURL := urlPattern.FindString(query); pageURL != "" {
		args["url"] = strings.TrimRight(pageURL, "。、)」")
		masked = urlPattern.ReplaceAllString(query, " ")
	}
	if sec := extractSecCode(masked); sec != "" {
		args["sec_code"] = sec
	}
	return args
}

// extractSecCode finds a standalone securities code in the query.
// Four- and five-digit runs that are really years or date components
// are skipped.
func extractSecCode(query string) string {
	for _, loc := range secCodePattern.FindAllStringIndex(query, -1) {
		if loc[0] > 0 {
			switch query[loc[0]-1] {
			case '-', '/', '.':
				continue
			}
		}
		rest := query[loc[1]:]
		if strings.HasPrefix(rest, "年") || strings.HasPrefix(rest, "-") ||
			strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, ".") {
			continue
		}
		return query[loc[0]:loc[1]]
	}
	return ""
}

// intentFor labels a tool choice with the user-facing intent.
func intentFor(tool string) string {
	switch tool {
	case "analyze_document":
		return "分析"
	case "compare_documents":
		return "比較"
	case "summarize_document":
		return "要約"
	case "download_document":
		return "取得"
	case "search_documents":
		return "検索"
	case "search_company":
		return "企業検索"
	case "fetch_ir_documents":
		return "IR取得"
	case "cache_stats":
		return "統計"
	}
	return "その他"
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// DefaultTools assembles the standard tool set from whichever
// collaborators are available.
func DefaultTools(runner Runner, client llm.Client, searcher DocumentSearcher, stats StatsProvider, companies CompanySearcher, irFetcher IRFetcher) []Tool {
	var tools []Tool
	if runner != nil {
		tools = append(tools, NewAnalyzeTool(runner), NewDownloadTool(runner))
		if client != nil {
			tools = append(tools,
				NewCompareTool(runner, client),
				NewSummarizeTool(runner, client),
			)
		}
	}
	if searcher != nil {
		tools = append(tools, NewSearchTool(searcher))
	}
	if stats != nil {
		tools = append(tools, NewCacheStatsTool(stats))
	}
	if companies != nil {
		tools = append(tools, NewCompanyLookupTool(companies))
	}
	if irFetcher != nil {
		tools = append(tools, NewIRFetchTool(irFetcher, companies))
	}
	return tools
}
