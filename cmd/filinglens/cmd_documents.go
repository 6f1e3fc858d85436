// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/pkg/validation"
	"github.com/harborline/filinglens/services/research/edinet"
)

// searchWindowDays is the lookback window when no date flags are given.
const searchWindowDays = 7

func runSearch(cmd *cobra.Command, args []string) {
	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	client, err := newEDINETClient(logger)
	if err != nil {
		fatal("%v", err)
	}
	service := edinet.NewDocumentService(client, logger.Slog())

	filter, err := buildSearchFilter(time.Now())
	if err != nil {
		fatal("%v", err)
	}

	documents, err := service.SearchDocuments(ctx, filter)
	if err != nil {
		fatal("Search failed: %v", err)
	}
	if len(documents) == 0 {
		ux.Info("No documents matched")
		return
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return documents[i].SubmitDateTime > documents[j].SubmitDateTime
	})
	if searchLimit > 0 && len(documents) > searchLimit {
		documents = documents[:searchLimit]
	}

	rows := make([][]string, 0, len(documents))
	for _, doc := range documents {
		rows = append(rows, searchRow(doc))
	}
	ux.Table([]string{"DOC ID", "COMPANY", "TYPE", "SUBMITTED", "DESCRIPTION"}, rows)
	ux.Muted(fmt.Sprintf("%d document(s)", len(documents)))
}

// buildSearchFilter maps the search flags onto a document filter.
// --date pins the range to a single day and wins over --from/--to;
// with no date flags at all the range covers the last searchWindowDays
// days ending at now.
func buildSearchFilter(now time.Time) (edinet.Filter, error) {
	filter := edinet.Filter{CompanyName: strings.TrimSpace(searchName)}
	if code := strings.TrimSpace(searchSecCode); code != "" {
		// EDINET listings carry the five-digit form, so a four-digit
		// exchange code would never match without normalization.
		normalized, err := validation.SanitizeSecCode(code)
		if err != nil {
			return edinet.Filter{}, err
		}
		filter.SecCode = normalized
	}
	if code := strings.ToUpper(strings.TrimSpace(searchEDINETCode)); code != "" {
		if err := validation.ValidateEDINETCode(code); err != nil {
			return edinet.Filter{}, err
		}
		filter.EDINETCode = code
	}
	if types := strings.TrimSpace(searchTypes); types != "" {
		for _, code := range strings.Split(types, ",") {
			if code = strings.TrimSpace(code); code != "" {
				filter.DocTypeCodes = append(filter.DocTypeCodes, code)
			}
		}
	}

	switch {
	case searchDate != "":
		day, err := time.Parse("2006-01-02", searchDate)
		if err != nil {
			return edinet.Filter{}, fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", searchDate)
		}
		filter.StartDate, filter.EndDate = day, day
	case searchFrom != "" || searchTo != "":
		if searchFrom != "" {
			from, err := time.Parse("2006-01-02", searchFrom)
			if err != nil {
				return edinet.Filter{}, fmt.Errorf("invalid --from %q (want YYYY-MM-DD)", searchFrom)
			}
			filter.StartDate = from
		}
		if searchTo != "" {
			to, err := time.Parse("2006-01-02", searchTo)
			if err != nil {
				return edinet.Filter{}, fmt.Errorf("invalid --to %q (want YYYY-MM-DD)", searchTo)
			}
			filter.EndDate = to
		}
	default:
		filter.EndDate = now
		filter.StartDate = filter.EndDate.AddDate(0, 0, -(searchWindowDays - 1))
	}
	return filter, nil
}

func searchRow(doc edinet.DocumentMetadata) []string {
	description := doc.DocDescription
	if runes := []rune(description); len(runes) > 40 {
		description = string(runes[:39]) + "…"
	}
	return []string{doc.DocID, doc.FilerName, doc.DocTypeCode, doc.SubmitDateTime, description}
}

func runDownload(cmd *cobra.Command, args []string) {
	docID, err := validation.SanitizeDocumentID(args[0])
	if err != nil {
		fatal("%v", err)
	}

	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	client, err := newEDINETClient(logger)
	if err != nil {
		fatal("%v", err)
	}

	docType := edinet.DownloadType(downloadType)
	outDir := downloadDir
	if outDir == "" {
		outDir = config.DownloadDir
	}
	savePath := filepath.Join(outDir, docID+downloadExtension(docType))

	ux.Info(fmt.Sprintf("Downloading %s (type %d)", docID, downloadType))
	saved, err := client.DownloadDocument(ctx, docID, docType, savePath)
	if err != nil {
		fatal("Download failed: %v", err)
	}
	ux.Success("Saved to " + saved)
}

// downloadExtension picks the file extension for a download format.
// Only the PDF endpoint serves a bare file; every other format arrives
// as a ZIP archive.
func downloadExtension(docType edinet.DownloadType) string {
	if docType == edinet.DownloadPDF {
		return ".pdf"
	}
	return ".zip"
}
