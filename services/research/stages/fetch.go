// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harborline/filinglens/services/research/cache"
	"github.com/harborline/filinglens/services/research/workflow"
)

// Fetcher downloads one filing and returns the local file path.
type Fetcher interface {
	Fetch(ctx context.Context, docID string) (string, error)
}

// FetchStage is the pipeline entry. It resolves the subject filing
// (and the prior filing when one was requested) to local files,
// reusing cached downloads when the store has a live copy.
type FetchStage struct {
	workflow.BaseStage
	fetcher Fetcher
	store   *cache.Store
	logger  *slog.Logger
}

// NewFetchStage builds the fetch stage. store may be nil, which
// disables download reuse.
func NewFetchStage(fetcher Fetcher, store *cache.Store, opts ...Option) *FetchStage {
	return &FetchStage{
		BaseStage: workflow.BaseStage{
			StageName:    StageFetch,
			StageField:   FieldFiling,
			StageTimeout: 5 * time.Minute,
		},
		fetcher: fetcher,
		store:   store,
		logger:  newSettings(opts).logger,
	}
}

func (s *FetchStage) Execute(ctx context.Context, view workflow.StateView) (any, error) {
	docID := strings.TrimSpace(view.SubjectID())
	if docID == "" {
		return nil, errors.New("required field is missing or empty: subject id")
	}

	path, err := s.fetchOne(ctx, docID)
	if err != nil {
		return nil, err
	}
	artifact := &FilingArtifact{DocID: docID, Path: path}

	if prior := strings.TrimSpace(view.PriorSubjectID()); prior != "" {
		priorPath, err := s.fetchOne(ctx, prior)
		if err != nil {
			return nil, fmt.Errorf("prior document %s: %w", prior, err)
		}
		artifact.PriorDocID = prior
		artifact.PriorPath = priorPath
	}
	return artifact, nil
}

func (s *FetchStage) fetchOne(ctx context.Context, docID string) (string, error) {
	if s.store != nil {
		rec, err := s.store.FindByDocID(ctx, docID)
		if err != nil {
			s.logger.Warn("Cache lookup failed", slog.String("doc_id", docID), slog.String("error", err.Error()))
		} else if rec != nil {
			s.logger.Info("Document already cached", slog.String("doc_id", docID), slog.String("path", rec.FilePath))
			return rec.FilePath, nil
		}
	}

	s.logger.Info("Downloading document", slog.String("doc_id", docID))
	path, err := s.fetcher.Fetch(ctx, docID)
	if err != nil {
		return "", err
	}

	if s.store != nil {
		rec := &cache.DocumentRecord{DocID: docID, FilePath: path}
		if err := s.store.PutDocumentMeta(ctx, rec); err != nil {
			s.logger.Warn("Recording download in cache failed", slog.String("doc_id", docID), slog.String("error", err.Error()))
		}
	}
	return path, nil
}
