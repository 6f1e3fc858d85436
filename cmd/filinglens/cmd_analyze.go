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
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/logging"
	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/services/research"
	"github.com/harborline/filinglens/services/research/cache"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/workflow"
)

func runAnalyze(cmd *cobra.Command, args []string) {
	docID, prior := resolveDocIDs(args[0])

	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	shutdown := maybeInitTelemetry(ctx, logger)
	defer func() { _ = shutdown(context.Background()) }()

	store := openStoreOrWarn(logger)
	if store != nil {
		defer store.Close()
	}

	pipeline, err := newPipeline(logger, store, progressObserver{})
	if err != nil {
		fatal("Failed to assemble the pipeline: %v", err)
	}

	ux.Title("Analyzing " + docID)
	if prior != "" {
		ux.Muted("Comparing against prior filing " + prior)
	}

	result, err := pipeline.RunFull(ctx, docID, prior)
	if err != nil {
		fatal("Analysis failed: %v", err)
	}

	printRunSummary(result)

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(report.Markdown(result.Report)), 0o644); err != nil {
			fatal("Failed to write report to %s: %v", outputPath, err)
		}
		ux.Success("Report written to " + outputPath)
	} else {
		ux.Muted("Use --output report.md to save the full report")
	}
}

func runStage(cmd *cobra.Command, args []string) {
	stageName := args[0]
	docID, prior := resolveDocIDs(args[1])

	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	shutdown := maybeInitTelemetry(ctx, logger)
	defer func() { _ = shutdown(context.Background()) }()

	store := openStoreOrWarn(logger)
	if store != nil {
		defer store.Close()
	}

	pipeline, err := newPipeline(logger, store, progressObserver{})
	if err != nil {
		fatal("Failed to assemble the pipeline: %v", err)
	}

	result, err := pipeline.RunStage(ctx, stageName, docID, prior)
	if err != nil {
		if errors.Is(err, workflow.ErrStageNotFound) {
			ux.Error(fmt.Sprintf("Unknown stage %q", stageName))
			ux.Muted("Available stages: " + strings.Join(pipeline.StageNames(), ", "))
			os.Exit(1)
		}
		fatal("Stage run failed: %v", err)
	}

	if result.Degraded() {
		ux.Warning("Run degraded: " + joinStageErrors(result.State.Errors))
	}

	// Stdout carries only the stage's output so the command pipes
	// cleanly into jq.
	field := pipeline.Graph().FieldOf(stageName)
	if field == "" {
		return
	}
	value, ok := result.State.Value(field)
	if !ok {
		ux.Warning(fmt.Sprintf("Stage %s recorded no %s output", stageName, field))
		return
	}
	data, err := sonic.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal("Failed to encode %s output: %v", field, err)
	}
	fmt.Println(string(data))
}

// openStoreOrWarn opens the filing cache, downgrading failures to a
// warning. Runs work without the cache, they just redo downloads and
// extraction.
func openStoreOrWarn(logger *logging.Logger) *cache.Store {
	store, err := openStore(logger)
	if err != nil {
		ux.Warning(fmt.Sprintf("Cache unavailable, continuing without reuse: %v", err))
		return nil
	}
	return store
}

// printRunSummary prints the run outcome: recorded stage failures when
// the run degraded, then the report's headline sections.
func printRunSummary(result *research.Result) {
	if result.Degraded() {
		ux.WarningBox("Analysis degraded; failed sections use defaults",
			joinStageErrors(result.State.Errors))
	} else {
		ux.Success(fmt.Sprintf("Analysis complete in %s (%d waves)",
			result.Duration.Round(time.Millisecond), result.Waves))
	}

	if result.Report == nil {
		ux.Warning("No report was produced")
		return
	}
	ux.KeyValue("run_id", result.RunID)
	ux.KeyValue("company", result.Report.BusinessSummary.CompanyName)
	ux.Box("エグゼクティブサマリー", result.Report.ExecutiveSummary)
}

func joinStageErrors(errs []workflow.StageError) string {
	lines := make([]string, 0, len(errs))
	for _, se := range errs {
		lines = append(lines, fmt.Sprintf("%s: %s", se.Stage, se.Message))
	}
	return strings.Join(lines, "\n")
}
