// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/logging"
	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/services/research/cache"
)

// openCache opens the configured cache or exits. Unlike the analysis
// commands, the cache commands have nothing to do without it.
func openCache(logger *logging.Logger) *cache.Store {
	store, err := openStore(logger)
	if err != nil {
		fatal("Failed to open the cache at %s: %v", config.CacheDir, err)
	}
	return store
}

func runCacheStats(cmd *cobra.Command, args []string) {
	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	store := openCache(logger)
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		fatal("Failed to read cache statistics: %v", err)
	}

	ux.Title("Cache statistics")
	ux.KeyValue("location", config.CacheDir)
	ux.KeyValue("documents", strconv.Itoa(stats.TotalDocuments))
	ux.KeyValue("companies", strconv.Itoa(stats.TotalCompanies))
	ux.KeyValue("reports", strconv.Itoa(stats.TotalReports))
	ux.KeyValue("size", formatBytes(stats.SizeBytes))
}

func runCacheList(cmd *cobra.Command, args []string) {
	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	store := openCache(logger)
	defer store.Close()

	records, err := store.List(ctx)
	if err != nil {
		fatal("Failed to list cached documents: %v", err)
	}
	if len(records) == 0 {
		ux.Info("Cache is empty")
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FetchedAt.After(records[j].FetchedAt)
	})

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.DocID,
			rec.CompanyName,
			rec.SecCode,
			rec.DocTypeCode,
			rec.Period,
			rec.FetchedAt.Format("2006-01-02 15:04"),
		})
	}
	ux.Table([]string{"DOC ID", "COMPANY", "CODE", "TYPE", "PERIOD", "FETCHED"}, rows)
	ux.Muted(fmt.Sprintf("%d document(s) cached", len(records)))
}

func runCacheClear(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		ux.Error("The --force flag is required to proceed with this destructive operation")
		ux.Info("Example: filinglens cache clear --force")
		os.Exit(1)
	}

	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	store := openCache(logger)
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		fatal("Failed to clear the cache: %v", err)
	}
	ux.Success("Cache cleared")
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
