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
	"strings"

	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/agent"
	"github.com/harborline/filinglens/services/research/edinet"
)

func runQuery(cmd *cobra.Command, args []string) {
	question := strings.TrimSpace(strings.Join(args, " "))

	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	shutdown := maybeInitTelemetry(ctx, logger)
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

	pipeline, err := assemblePipeline(logger, store, progressObserver{}, client, edinetClient)
	if err != nil {
		fatal("Failed to assemble the pipeline: %v", err)
	}

	// A nil *cache.Store must not be assigned to the interface, or
	// the stats tool would register against a dead provider.
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

	answer, err := researcher.Process(ctx, question)
	if errors.Is(err, agent.ErrNoToolMatched) {
		ux.Warning("No tool matches that question")
		ux.Muted("Try naming a document ID (S100XXXX), a company, or asking about the cache")
		os.Exit(1)
	}
	if err != nil {
		fatal("Query failed: %v", err)
	}

	// In plain mode stdout carries only the answer body so the
	// command pipes cleanly into jq.
	if ux.GetMode() != ux.ModePlain {
		ux.KeyValue("intent", answer.Intent)
		ux.KeyValue("tool", answer.Tool)
		if len(answer.ToolsUsed) > 1 {
			ux.KeyValue("tools_used", strings.Join(answer.ToolsUsed, ", "))
		}
	}
	fmt.Println(answer.Result)
}
