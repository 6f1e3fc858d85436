// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/harborline/filinglens/pkg/logging"
	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/pkg/validation"
	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research"
	"github.com/harborline/filinglens/services/research/cache"
	"github.com/harborline/filinglens/services/research/docparse"
	"github.com/harborline/filinglens/services/research/edinet"
	"github.com/harborline/filinglens/services/research/ir"
	"github.com/harborline/filinglens/services/research/telemetry"
	"github.com/harborline/filinglens/services/research/workflow"
)

// fatal prints a styled error and exits.
func fatal(format string, args ...any) {
	ux.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolveDocIDs sanitizes the positional document ID and the optional
// --prior flag, exiting on malformed input before any network or LLM
// work starts.
func resolveDocIDs(raw string) (docID, prior string) {
	docID, err := validation.SanitizeDocumentID(raw)
	if err != nil {
		fatal("%v", err)
	}
	if priorDocID != "" {
		if prior, err = validation.SanitizeDocumentID(priorDocID); err != nil {
			fatal("Invalid --prior document ID: %v", err)
		}
	}
	return docID, prior
}

// newEDINETClient builds the EDINET API client from the resolved
// config.
func newEDINETClient(logger *logging.Logger) (*edinet.Client, error) {
	if config.EDINETAPIKey == "" {
		return nil, errors.New("EDINET API key is not configured (set FILINGLENS_EDINET_API_KEY or edinet_api_key in ~/.filinglens.yaml)")
	}
	opts := []edinet.ClientOption{edinet.WithLogger(logger.Slog())}
	if config.EDINETBaseURL != "" {
		opts = append(opts, edinet.WithBaseURL(config.EDINETBaseURL))
	}
	return edinet.NewClient(config.EDINETAPIKey, opts...)
}

// openStore opens the filing cache at the configured path.
func openStore(logger *logging.Logger) (*cache.Store, error) {
	cfg := cache.DefaultConfig(config.CacheDir)
	cfg.Logger = logger.Slog()
	return cache.Open(cfg)
}

// newPipeline wires the analysis pipeline: EDINET downloads, PDF
// extraction, the LLM stages, and optionally the cache. A nil store
// disables download and report reuse but changes nothing else.
func newPipeline(logger *logging.Logger, store *cache.Store, observer workflow.Observer) (*research.Pipeline, error) {
	client, err := llm.NewFromEnv()
	if err != nil {
		return nil, err
	}
	edinetClient, err := newEDINETClient(logger)
	if err != nil {
		return nil, err
	}
	return assemblePipeline(logger, store, observer, client, edinetClient)
}

// assemblePipeline builds the pipeline from already-constructed
// clients. Commands that also hand the clients to the agent or the
// document searcher go through here; one EDINET client means one
// rate limiter for the whole process.
func assemblePipeline(logger *logging.Logger, store *cache.Store, observer workflow.Observer, client llm.Client, edinetClient *edinet.Client) (*research.Pipeline, error) {
	fetcher := research.NewPDFFetcher(edinetClient, config.DownloadDir)
	parser := docparse.NewParser(client, docparse.WithLogger(logger.Slog()))

	opts := []research.PipelineOption{research.WithLogger(logger.Slog())}
	if store != nil {
		opts = append(opts, research.WithStore(store))
	}
	if observer != nil {
		opts = append(opts, research.WithObserver(observer))
	}
	return research.NewPipeline(fetcher, parser, client, opts...)
}

// newCompanyDirectory builds the EDINET code list resolver, cached
// under the data directory.
func newCompanyDirectory(logger *logging.Logger) *edinet.CodeList {
	return edinet.NewCodeList(filepath.Join(config.DataDir, "edinet_codes"),
		edinet.WithCodeListLogger(logger.Slog()))
}

// newIRService wires IR retrieval: the scraper, the template store,
// LLM page exploration, and the PDF parser used for summaries.
func newIRService(logger *logging.Logger, client llm.Client) (*ir.Service, error) {
	parser := docparse.NewParser(client, docparse.WithLogger(logger.Slog()))
	return ir.NewService(client, parser,
		ir.WithTemplatesDir(config.IRTemplatesDir),
		ir.WithDataDir(filepath.Join(config.DataDir, "ir")),
		ir.WithServiceLogger(logger.Slog()),
	)
}

// maybeInitTelemetry installs the OTLP trace exporter when --trace is
// set. Without the flag it is a no-op; the returned shutdown is always
// safe to call.
func maybeInitTelemetry(ctx context.Context, logger *logging.Logger) func(context.Context) error {
	nop := func(context.Context) error { return nil }
	if !traceEnabled {
		return nop
	}
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	if cfg.TraceExporter == "none" {
		cfg.TraceExporter = "otlp"
	}
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		logger.Warn("Telemetry init failed, continuing without traces", "error", err)
		return nop
	}
	return shutdown
}
