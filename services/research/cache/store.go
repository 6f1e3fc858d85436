// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"

	"github.com/harborline/filinglens/services/research/report"
)

// ErrNotFound reports a cache miss on keyed lookups.
var ErrNotFound = errors.New("not found in cache")

const (
	metaPrefix     = "meta:"
	reportPrefix   = "report:"
	artifactPrefix = "artifact:"
)

func metaKey(docID string) []byte {
	return []byte(metaPrefix + docID)
}

func reportKey(docID string) []byte {
	return []byte(reportPrefix + docID)
}

func artifactKey(docID, kind string) []byte {
	return []byte(artifactPrefix + docID + ":" + kind)
}

// DocumentRecord describes one downloaded filing.
type DocumentRecord struct {
	DocID       string    `json:"doc_id"`
	SecCode     string    `json:"sec_code,omitempty"`
	EDINETCode  string    `json:"edinet_code,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	DocTypeCode string    `json:"doc_type_code,omitempty"`
	Period      string    `json:"period,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Filter narrows FindByFilter results. Zero fields match everything.
type Filter struct {
	SecCode     string
	DocTypeCode string
	Period      string
}

func (f Filter) matches(rec *DocumentRecord) bool {
	if f.SecCode != "" && rec.SecCode != f.SecCode {
		return false
	}
	if f.DocTypeCode != "" && rec.DocTypeCode != f.DocTypeCode {
		return false
	}
	if f.Period != "" && rec.Period != f.Period {
		return false
	}
	return true
}

// Stats summarizes cache contents.
type Stats struct {
	TotalDocuments int   `json:"total_documents"`
	TotalCompanies int   `json:"total_companies"`
	TotalReports   int   `json:"total_reports"`
	SizeBytes      int64 `json:"size_bytes"`
}

// Store is the filing cache. Safe for concurrent use.
type Store struct {
	db     *db
	logger *slog.Logger
}

// Open opens (or creates) the cache described by cfg. The caller must
// Close the store when done.
func Open(cfg Config) (*Store, error) {
	d, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: d, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.close()
}

// PutDocumentMeta records a downloaded filing. FetchedAt is stamped
// when unset.
func (s *Store) PutDocumentMeta(ctx context.Context, rec *DocumentRecord) error {
	if rec == nil || rec.DocID == "" {
		return errors.New("document record needs a doc ID")
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode document record: %w", err)
	}
	return s.db.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(metaKey(rec.DocID), data)
	})
}

func (s *Store) GetDocumentMeta(ctx context.Context, docID string) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(docID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return sonic.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByDocID reports whether a usable cached download exists. Unlike
// GetDocumentMeta a miss is not an error, and a record whose file has
// vanished from disk counts as a miss.
func (s *Store) FindByDocID(ctx context.Context, docID string) (*DocumentRecord, error) {
	rec, err := s.GetDocumentMeta(ctx, docID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.FilePath == "" {
		return nil, nil
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		s.logger.Warn("Cached document file is missing on disk",
			slog.String("doc_id", docID),
			slog.String("path", rec.FilePath))
		return nil, nil
	}
	return rec, nil
}

// FindByFilter returns cached documents matching f, in doc ID order.
func (s *Store) FindByFilter(ctx context.Context, f Filter) ([]DocumentRecord, error) {
	records, err := s.scanDocuments(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]DocumentRecord, 0, len(records))
	for _, rec := range records {
		if f.matches(&rec) {
			matched = append(matched, rec)
		}
	}
	s.logger.Debug("Cache filter applied",
		slog.Int("matched", len(matched)),
		slog.Int("total", len(records)))
	return matched, nil
}

// List returns every cached document record, in doc ID order.
func (s *Store) List(ctx context.Context) ([]DocumentRecord, error) {
	return s.scanDocuments(ctx)
}

func (s *Store) scanDocuments(ctx context.Context) ([]DocumentRecord, error) {
	var records []DocumentRecord
	err := s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		prefix := []byte(metaPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec DocumentRecord
			err := it.Item().Value(func(val []byte) error {
				return sonic.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stats counts documents, distinct companies by securities code, and
// stored reports, plus the database footprint.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	records, err := s.scanDocuments(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalDocuments: len(records)}
	companies := make(map[string]struct{})
	for _, rec := range records {
		if rec.SecCode != "" {
			companies[rec.SecCode] = struct{}{}
		}
	}
	stats.TotalCompanies = len(companies)

	err = s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(reportPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stats.TotalReports++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsm, vlog := s.db.Size()
	stats.SizeBytes = lsm + vlog
	return stats, nil
}

// PutReport persists a finished analysis report for a document.
func (s *Store) PutReport(ctx context.Context, docID string, rep *report.ComprehensiveReport) error {
	if docID == "" {
		return errors.New("report needs a doc ID")
	}
	if rep == nil {
		return errors.New("report must not be nil")
	}
	data, err := sonic.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.db.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(reportKey(docID), data)
	})
}

func (s *Store) GetReport(ctx context.Context, docID string) (*report.ComprehensiveReport, error) {
	var rep report.ComprehensiveReport
	err := s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(docID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return sonic.Unmarshal(val, &rep)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("report %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// PutArtifact stores derived bytes for a document under a kind label,
// for example extracted markdown, so expensive extraction runs once
// per filing.
func (s *Store) PutArtifact(ctx context.Context, docID, kind string, data []byte) error {
	if docID == "" || kind == "" {
		return errors.New("artifact needs a doc ID and a kind")
	}
	return s.db.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(artifactKey(docID, kind), data)
	})
}

func (s *Store) GetArtifact(ctx context.Context, docID, kind string) ([]byte, error) {
	var data []byte
	err := s.db.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(artifactKey(docID, kind))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("artifact %s/%s: %w", docID, kind, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Clear drops every record, report, and artifact. Downloaded files on
// disk are not touched; re-runs will re-index them.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	s.logger.Info("Cache cleared")
	return nil
}
