// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edinet

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Filter narrows a document search. Zero-value fields are ignored;
// populated fields combine with AND. Dates are inclusive; a zero
// EndDate means today and a zero StartDate means EndDate only.
type Filter struct {
	EDINETCode   string
	SecCode      string
	CompanyName  string
	DocTypeCodes []string
	StartDate    time.Time
	EndDate      time.Time
}

// DocumentLister is the slice of Client the search service needs.
type DocumentLister interface {
	GetDocumentList(ctx context.Context, day time.Time, includeDetails bool) (*DocumentListResponse, error)
}

// DocumentService layers day-range search and client-side filtering on
// top of the raw list API. EDINET only exposes per-day listings, so a
// date-range search fans out over the days and filters locally.
type DocumentService struct {
	lister DocumentLister
	logger *slog.Logger
}

func NewDocumentService(lister DocumentLister, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{lister: lister, logger: logger}
}

// SearchDocuments fetches every day in the filter's range and returns
// the documents matching all criteria. A failed day is logged and
// skipped so one bad date does not void the whole range; context
// cancellation aborts.
func (s *DocumentService) SearchDocuments(ctx context.Context, filter Filter) ([]DocumentMetadata, error) {
	endDate := filter.EndDate
	if endDate.IsZero() {
		endDate = time.Now()
	}
	startDate := filter.StartDate
	if startDate.IsZero() {
		startDate = endDate
	}

	var all []DocumentMetadata
	for day := truncateDay(startDate); !day.After(truncateDay(endDate)); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := s.lister.GetDocumentList(ctx, day, true)
		if err != nil {
			s.logger.Warn("Failed to fetch documents for date", "date", day.Format("2006-01-02"), "error", err)
			continue
		}
		all = append(all, resp.Results...)
	}

	return applyFilter(all, filter), nil
}

func applyFilter(documents []DocumentMetadata, filter Filter) []DocumentMetadata {
	result := make([]DocumentMetadata, 0, len(documents))
	for _, doc := range documents {
		if filter.SecCode != "" && doc.SecCode != filter.SecCode {
			continue
		}
		if filter.EDINETCode != "" && doc.EDINETCode != filter.EDINETCode {
			continue
		}
		if filter.CompanyName != "" && !strings.Contains(doc.FilerName, filter.CompanyName) {
			continue
		}
		if len(filter.DocTypeCodes) > 0 && !slices.Contains(filter.DocTypeCodes, doc.DocTypeCode) {
			continue
		}
		result = append(result, doc)
	}
	return result
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
