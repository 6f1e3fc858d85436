// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/agent"
	"github.com/harborline/filinglens/services/research/api"
	"github.com/harborline/filinglens/services/research/edinet"
	"github.com/harborline/filinglens/services/research/telemetry"
	"github.com/harborline/filinglens/services/research/workflow"
)

func runServe(cmd *cobra.Command, args []string) {
	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	// The server always starts telemetry; without --trace only the
	// Prometheus metrics endpoint comes up.
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceVersion = version
	if traceEnabled && telemetryCfg.TraceExporter == "none" {
		telemetryCfg.TraceExporter = "otlp"
	}
	shutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		logger.Warn("Telemetry init failed, continuing without it", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	defer shutdown(context.Background())

	client, err := llm.NewFromEnv()
	if err != nil {
		fatal("Failed to configure the language model: %v", err)
	}
	edinetClient, err := newEDINETClient(logger)
	if err != nil {
		fatal("%v", err)
	}
	searcher := edinet.NewDocumentService(edinetClient, logger.Slog())

	store := openStoreOrWarn(logger)
	if store != nil {
		defer store.Close()
	}

	pipeline, err := assemblePipeline(logger, store, workflow.NewLogObserver(logger.Slog()), client, edinetClient)
	if err != nil {
		fatal("Failed to assemble the pipeline: %v", err)
	}

	var stats agent.StatsProvider
	if store != nil {
		stats = store
	}
	irService, err := newIRService(logger, client)
	if err != nil {
		fatal("Failed to wire IR retrieval: %v", err)
	}
	tools := agent.DefaultTools(pipeline, client, searcher, stats,
		newCompanyDirectory(logger), irService)
	researcher, err := agent.New(client, tools, agent.WithLogger(logger.Slog()))
	if err != nil {
		fatal("Failed to build the research agent: %v", err)
	}

	port := servePort
	if port <= 0 {
		port = config.Port
	}
	server, err := api.NewServer(pipeline,
		api.WithPort(port),
		api.WithLogger(logger.Slog()),
		api.WithSearcher(searcher),
		api.WithStats(stats),
		api.WithAgent(researcher),
	)
	if err != nil {
		fatal("Failed to build the API server: %v", err)
	}

	ux.Title("FilingLens API server")
	ux.KeyValue("address", fmt.Sprintf("http://localhost:%d", port))
	ux.KeyValue("health", fmt.Sprintf("http://localhost:%d/healthz", port))
	ux.Muted("Press Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		fatal("Server stopped: %v", err)
	}
	ux.Success("Server shut down cleanly")
}
