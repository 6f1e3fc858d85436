// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edinet

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLister struct {
	byDate map[string][]DocumentMetadata
	errOn  map[string]error
	calls  []string
}

func (f *fakeLister) GetDocumentList(ctx context.Context, day time.Time, includeDetails bool) (*DocumentListResponse, error) {
	key := day.Format("2006-01-02")
	f.calls = append(f.calls, key)
	if err, ok := f.errOn[key]; ok {
		return nil, err
	}
	docs := f.byDate[key]
	return &DocumentListResponse{
		Metadata: ResponseMetadata{Status: "200", Resultset: ResultSet{Count: len(docs)}},
		Results:  docs,
	}, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDocumentService_SearchDocuments_DateRange(t *testing.T) {
	lister := &fakeLister{byDate: map[string][]DocumentMetadata{
		"2025-06-01": {{DocID: "S100AAAA", DocTypeCode: DocTypeAnnualReport, FilerName: "A社"}},
		"2025-06-03": {{DocID: "S100BBBB", DocTypeCode: DocTypeAnnualReport, FilerName: "B社"}},
	}}
	svc := NewDocumentService(lister, nil)

	docs, err := svc.SearchDocuments(context.Background(), Filter{
		StartDate: day(2025, 6, 1),
		EndDate:   day(2025, 6, 3),
	})
	if err != nil {
		t.Fatalf("SearchDocuments returned error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if len(lister.calls) != 3 {
		t.Errorf("API calls = %d, want one per day in range", len(lister.calls))
	}
	if lister.calls[0] != "2025-06-01" || lister.calls[2] != "2025-06-03" {
		t.Errorf("calls = %v", lister.calls)
	}
}

func TestDocumentService_SearchDocuments_FiltersCombine(t *testing.T) {
	docs := []DocumentMetadata{
		{DocID: "S1", SecCode: "72030", FilerName: "トヨタ自動車株式会社", DocTypeCode: "120", EDINETCode: "E02144"},
		{DocID: "S2", SecCode: "72030", FilerName: "トヨタ自動車株式会社", DocTypeCode: "140", EDINETCode: "E02144"},
		{DocID: "S3", SecCode: "99999", FilerName: "別の会社", DocTypeCode: "120", EDINETCode: "E99999"},
	}
	lister := &fakeLister{byDate: map[string][]DocumentMetadata{"2025-06-01": docs}}
	svc := NewDocumentService(lister, nil)

	got, err := svc.SearchDocuments(context.Background(), Filter{
		SecCode:      "72030",
		DocTypeCodes: []string{"120"},
		StartDate:    day(2025, 6, 1),
		EndDate:      day(2025, 6, 1),
	})
	if err != nil {
		t.Fatalf("SearchDocuments returned error: %v", err)
	}
	if len(got) != 1 || got[0].DocID != "S1" {
		t.Fatalf("got = %v, want only S1", got)
	}
}

func TestDocumentService_SearchDocuments_CompanyNameSubstring(t *testing.T) {
	docs := []DocumentMetadata{
		{DocID: "S1", FilerName: "トヨタ自動車株式会社"},
		{DocID: "S2", FilerName: "日産自動車株式会社"},
		{DocID: "S3", FilerName: ""},
	}
	lister := &fakeLister{byDate: map[string][]DocumentMetadata{"2025-06-01": docs}}
	svc := NewDocumentService(lister, nil)

	got, err := svc.SearchDocuments(context.Background(), Filter{
		CompanyName: "トヨタ",
		StartDate:   day(2025, 6, 1),
		EndDate:     day(2025, 6, 1),
	})
	if err != nil {
		t.Fatalf("SearchDocuments returned error: %v", err)
	}
	if len(got) != 1 || got[0].DocID != "S1" {
		t.Fatalf("got = %v, want substring match only", got)
	}
}

func TestDocumentService_SearchDocuments_SkipsFailedDays(t *testing.T) {
	lister := &fakeLister{
		byDate: map[string][]DocumentMetadata{
			"2025-06-01": {{DocID: "S1"}},
			"2025-06-03": {{DocID: "S3"}},
		},
		errOn: map[string]error{
			"2025-06-02": newAPIError(503, "unavailable", "/documents.json"),
		},
	}
	svc := NewDocumentService(lister, nil)

	got, err := svc.SearchDocuments(context.Background(), Filter{
		StartDate: day(2025, 6, 1),
		EndDate:   day(2025, 6, 3),
	})
	if err != nil {
		t.Fatalf("a failed day should not fail the search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("documents = %d, want results from the healthy days", len(got))
	}
}

func TestDocumentService_SearchDocuments_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{}
	svc := NewDocumentService(lister, nil)

	_, err := svc.SearchDocuments(ctx, Filter{StartDate: day(2025, 6, 1), EndDate: day(2025, 6, 3)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(lister.calls) != 0 {
		t.Errorf("calls = %d, want none after cancellation", len(lister.calls))
	}
}

func TestDocumentService_SearchDocuments_DefaultDates(t *testing.T) {
	lister := &fakeLister{}
	svc := NewDocumentService(lister, nil)

	if _, err := svc.SearchDocuments(context.Background(), Filter{}); err != nil {
		t.Fatalf("SearchDocuments returned error: %v", err)
	}
	if len(lister.calls) != 1 {
		t.Fatalf("calls = %d, zero dates should query a single day", len(lister.calls))
	}
	if lister.calls[0] != time.Now().Format("2006-01-02") {
		t.Errorf("queried day = %s, want today", lister.calls[0])
	}
}

func TestApplyFilter_Empty(t *testing.T) {
	docs := []DocumentMetadata{{DocID: "S1"}, {DocID: "S2"}}
	got := applyFilter(docs, Filter{})
	if len(got) != 2 {
		t.Fatalf("empty filter should keep everything, got %d", len(got))
	}
}
