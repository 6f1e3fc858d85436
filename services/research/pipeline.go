// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package research assembles the filing-analysis pipeline: the stage
// graph, the executor that runs it, and the collaborators each stage
// needs. Callers construct a Pipeline once and reuse it across runs.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/cache"
	"github.com/harborline/filinglens/services/research/edinet"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/stages"
	"github.com/harborline/filinglens/services/research/workflow"
)

// GraphName identifies the analysis graph in logs, traces, and metrics.
const GraphName = "filing_analysis"

const defaultDownloadDir = "data/downloads/pdf"

// PDFDownloader is the slice of the EDINET client the fetch adapter
// needs.
type PDFDownloader interface {
	DownloadDocument(ctx context.Context, docID string, docType edinet.DownloadType, savePath string) (string, error)
}

// PDFFetcher adapts the EDINET download API to the fetch stage. Filings
// land under dir as <doc_id>.pdf.
type PDFFetcher struct {
	downloader PDFDownloader
	dir        string
}

// NewPDFFetcher builds the fetch adapter. An empty dir falls back to
// data/downloads/pdf.
func NewPDFFetcher(downloader PDFDownloader, dir string) *PDFFetcher {
	if dir == "" {
		dir = defaultDownloadDir
	}
	return &PDFFetcher{downloader: downloader, dir: dir}
}

// Fetch downloads the filing's PDF rendition and returns its local path.
func (f *PDFFetcher) Fetch(ctx context.Context, docID string) (string, error) {
	savePath := filepath.Join(f.dir, docID+".pdf")
	return f.downloader.DownloadDocument(ctx, docID, edinet.DownloadPDF, savePath)
}

// NewAnalysisGraph builds the seven-stage filing analysis graph:
// fetch feeds normalize, the four analyses fan out from normalize, and
// aggregate joins them into the final report. A nil store disables
// download and extraction reuse but changes nothing else. opts apply
// to every stage.
func NewAnalysisGraph(fetcher stages.Fetcher, parser stages.DocumentParser, client llm.Client, store *cache.Store, opts ...stages.Option) (*workflow.Graph, error) {
	return workflow.NewBuilder(GraphName).
		AddStage(stages.NewFetchStage(fetcher, store, opts...)).
		AddStage(stages.NewNormalizeStage(parser, store, opts...)).
		AddStage(stages.NewBusinessSummaryStage(client, opts...)).
		AddStage(stages.NewRiskExtractionStage(client, opts...)).
		AddStage(stages.NewFinancialAnalysisStage(client, opts...)).
		AddStage(stages.NewComparisonStage(client, opts...)).
		AddStage(stages.NewAggregateStage(client, opts...)).
		Build()
}

// Pipeline runs the analysis graph. Safe for concurrent use; each run
// gets its own state record.
type Pipeline struct {
	graph    *workflow.Graph
	executor *workflow.Executor
	store    *cache.Store
	logger   *slog.Logger
	observer workflow.Observer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStore attaches the filing cache. Downloads, extracted markdown,
// and finished reports are reused and recorded through it.
func WithStore(store *cache.Store) PipelineOption {
	return func(p *Pipeline) { p.store = store }
}

// WithLogger sets the pipeline and executor logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers an observer for stage transitions, e.g. CLI
// progress output.
func WithObserver(observer workflow.Observer) PipelineOption {
	return func(p *Pipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// NewPipeline wires the stages into a validated graph and prepares an
// executor for it.
func NewPipeline(fetcher stages.Fetcher, parser stages.DocumentParser, client llm.Client, opts ...PipelineOption) (*Pipeline, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if parser == nil {
		return nil, errors.New("document parser is required")
	}
	if client == nil {
		return nil, errors.New("llm client is required")
	}

	p := &Pipeline{
		logger:   slog.Default(),
		observer: workflow.NopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}

	graph, err := NewAnalysisGraph(fetcher, parser, client, p.store, stages.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("building analysis graph: %w", err)
	}
	p.graph = graph
	p.executor = workflow.NewExecutor(
		workflow.WithLogger(p.logger),
		workflow.WithObserver(p.observer),
	)
	return p, nil
}

// Graph returns the underlying validated stage graph.
func (p *Pipeline) Graph() *workflow.Graph {
	return p.graph
}

// StageNames returns the stages of the graph, sorted.
func (p *Pipeline) StageNames() []string {
	return p.graph.StageNames()
}

// Result is the outcome of a pipeline run. Report is non-nil only when
// the aggregation stage ran and succeeded; a degraded run still carries
// a report, with typed defaults standing in for failed sections.
type Result struct {
	RunID          string
	Report         *report.ComprehensiveReport
	State          *workflow.State
	Duration       time.Duration
	Waves          int
	StageDurations map[string]time.Duration
}

// Degraded reports whether any stage recorded a failure.
func (r *Result) Degraded() bool {
	return len(r.State.Errors) > 0
}

// RunFull executes every stage for one filing. priorDocID optionally
// names the previous period's filing; when set, the comparison stage
// works from both documents. Stage failures are recorded on the result,
// not returned: the error is non-nil only for invalid input,
// cancellation, or an internal scheduling fault.
func (p *Pipeline) RunFull(ctx context.Context, docID, priorDocID string) (*Result, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, fmt.Errorf("%w: doc ID is required", workflow.ErrInvalidInput)
	}

	st := workflow.NewState(docID)
	if prior := strings.TrimSpace(priorDocID); prior != "" {
		st.WithPrior(prior)
	}

	p.logger.Info("Starting full analysis", "doc_id", docID, "prior_doc_id", st.PriorSubjectID)
	outcome, err := p.executor.Run(ctx, p.graph.Plan(), st)
	if err != nil {
		return nil, err
	}

	result := p.resultFrom(outcome)
	p.persistReport(ctx, docID, result.Report)
	return result, nil
}

// RunStage executes one stage and only the upstream stages its output
// needs. Stages outside that closure never run. priorDocID matters
// only when the closure includes the comparison stage.
func (p *Pipeline) RunStage(ctx context.Context, stageName, docID, priorDocID string) (*Result, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, fmt.Errorf("%w: doc ID is required", workflow.ErrInvalidInput)
	}

	plan, err := p.graph.PlanFor(stageName)
	if err != nil {
		return nil, err
	}

	st := workflow.NewState(docID)
	if prior := strings.TrimSpace(priorDocID); prior != "" {
		st.WithPrior(prior)
	}

	p.logger.Info("Starting partial analysis", "stage", stageName, "doc_id", docID, "stages", plan.Size())
	outcome, err := p.executor.Run(ctx, plan, st)
	if err != nil {
		return nil, err
	}

	result := p.resultFrom(outcome)
	p.persistReport(ctx, docID, result.Report)
	return result, nil
}

func (p *Pipeline) resultFrom(outcome *workflow.Outcome) *Result {
	result := &Result{
		RunID:          outcome.RunID,
		State:          outcome.State,
		Duration:       outcome.Duration,
		Waves:          outcome.Waves,
		StageDurations: outcome.StageDurations,
	}
	if value, ok := outcome.State.Value(stages.FieldReport); ok {
		if rep, ok := value.(*report.ComprehensiveReport); ok {
			result.Report = rep
		}
	}
	return result
}

// persistReport caches the finished report for later retrieval. A cache
// failure degrades to a warning; the run already succeeded.
func (p *Pipeline) persistReport(ctx context.Context, docID string, rep *report.ComprehensiveReport) {
	if p.store == nil || rep == nil {
		return
	}
	if err := p.store.PutReport(ctx, docID, rep); err != nil {
		p.logger.Warn("Caching report failed", "doc_id", docID, "error", err)
		return
	}
	p.logger.Info("Report cached", "doc_id", docID)
}
