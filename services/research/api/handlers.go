// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborline/filinglens/pkg/validation"
	"github.com/harborline/filinglens/services/research/agent"
	"github.com/harborline/filinglens/services/research/edinet"
	"github.com/harborline/filinglens/services/research/report"
	"github.com/harborline/filinglens/services/research/telemetry"
	"github.com/harborline/filinglens/services/research/workflow"
)

// searchWindowDays bounds a date-less search. EDINET serves per-day
// lists, so an open-ended range would mean one upstream request per
// day.
const searchWindowDays = 7

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", s.handleMetrics)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/stages/:name", s.handleStage)
		v1.GET("/documents/search", s.handleSearch)
		v1.GET("/cache/stats", s.handleCacheStats)
		v1.POST("/query", s.handleQuery)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
	})
}

// handleMetrics resolves the Prometheus handler per request because
// telemetry may be initialized after the server is constructed.
func (s *Server) handleMetrics(c *gin.Context) {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		c.JSON(http.StatusNotFound, errorBody("metrics are not enabled", nil))
		return
	}
	handler.ServeHTTP(c.Writer, c.Request)
}

type analyzeRequest struct {
	DocID      string `json:"doc_id" binding:"required"`
	PriorDocID string `json:"prior_doc_id"`
}

// runResponse reports a full pipeline run. Stage failures ride along
// as data: a degraded run still answers 200 with the surviving report
// sections.
type runResponse struct {
	RunID      string                      `json:"run_id"`
	DocID      string                      `json:"doc_id"`
	PriorDocID string                      `json:"prior_doc_id,omitempty"`
	Degraded   bool                        `json:"degraded"`
	Waves      int                         `json:"waves"`
	DurationMS int64                       `json:"duration_ms"`
	Completed  []string                    `json:"completed"`
	Errors     []workflow.StageError       `json:"errors,omitempty"`
	Report     *report.ComprehensiveReport `json:"report,omitempty"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid request body", err))
		return
	}
	if err := validateDocIDs(req.DocID, req.PriorDocID); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid document ID", err))
		return
	}

	result, err := s.pipeline.RunFull(c.Request.Context(), req.DocID, req.PriorDocID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, workflow.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorBody("Analysis failed", err))
		return
	}

	c.JSON(http.StatusOK, runResponse{
		RunID:      result.RunID,
		DocID:      result.State.SubjectID,
		PriorDocID: result.State.PriorSubjectID,
		Degraded:   result.Degraded(),
		Waves:      result.Waves,
		DurationMS: result.Duration.Milliseconds(),
		Completed:  result.State.Completed,
		Errors:     result.State.Errors,
		Report:     result.Report,
	})
}

type stageRequest struct {
	DocID      string `json:"doc_id" binding:"required"`
	PriorDocID string `json:"prior_doc_id"`
}

type stageResponse struct {
	RunID      string                `json:"run_id"`
	DocID      string                `json:"doc_id"`
	PriorDocID string                `json:"prior_doc_id,omitempty"`
	Stage      string                `json:"stage"`
	Field      string                `json:"field,omitempty"`
	Degraded   bool                  `json:"degraded"`
	Waves      int                   `json:"waves"`
	DurationMS int64                 `json:"duration_ms"`
	Completed  []string              `json:"completed"`
	Errors     []workflow.StageError `json:"errors,omitempty"`
	Output     any                   `json:"output,omitempty"`
}

// handleStage runs one stage plus the upstream closure its output
// needs, and returns that stage's output field.
func (s *Server) handleStage(c *gin.Context) {
	name := c.Param("name")

	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid request body", err))
		return
	}
	if err := validateDocIDs(req.DocID, req.PriorDocID); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid document ID", err))
		return
	}

	result, err := s.pipeline.RunStage(c.Request.Context(), name, req.DocID, req.PriorDocID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workflow.ErrStageNotFound):
			status = http.StatusNotFound
		case errors.Is(err, workflow.ErrInvalidInput):
			status = http.StatusBadRequest
		}
		c.JSON(status, errorBody("Stage run failed", err))
		return
	}

	resp := stageResponse{
		RunID:      result.RunID,
		DocID:      result.State.SubjectID,
		PriorDocID: result.State.PriorSubjectID,
		Stage:      name,
		Degraded:   result.Degraded(),
		Waves:      result.Waves,
		DurationMS: result.Duration.Milliseconds(),
		Completed:  result.State.Completed,
		Errors:     result.State.Errors,
	}
	if field := s.pipeline.Graph().FieldOf(name); field != "" {
		resp.Field = field
		if value, ok := result.State.Value(field); ok {
			resp.Output = value
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSearch(c *gin.Context) {
	if s.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("document search is not configured", nil))
		return
	}

	filter := edinet.Filter{CompanyName: strings.TrimSpace(c.Query("name"))}
	if code := strings.TrimSpace(c.Query("sec_code")); code != "" {
		normalized, err := validation.SanitizeSecCode(code)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("Invalid sec_code", err))
			return
		}
		filter.SecCode = normalized
	}
	if code := strings.ToUpper(strings.TrimSpace(c.Query("edinet_code"))); code != "" {
		if err := validation.ValidateEDINETCode(code); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("Invalid edinet_code", err))
			return
		}
		filter.EDINETCode = code
	}
	if types := strings.TrimSpace(c.Query("doc_type")); types != "" {
		for _, code := range strings.Split(types, ",") {
			if code = strings.TrimSpace(code); code != "" {
				filter.DocTypeCodes = append(filter.DocTypeCodes, code)
			}
		}
	}

	var err error
	if filter.StartDate, err = parseDateParam(c.Query("from")); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid from date", err))
		return
	}
	if filter.EndDate, err = parseDateParam(c.Query("to")); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid to date", err))
		return
	}
	if filter.StartDate.IsZero() && filter.EndDate.IsZero() {
		filter.EndDate = time.Now()
		filter.StartDate = filter.EndDate.AddDate(0, 0, -(searchWindowDays - 1))
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, errorBody("Invalid limit", err))
			return
		}
	}

	documents, err := s.searcher.SearchDocuments(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("Search failed", err))
		return
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return documents[i].SubmitDateTime > documents[j].SubmitDateTime
	})
	if limit > 0 && len(documents) > limit {
		documents = documents[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(documents),
		"documents": documents,
	})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("cache is not configured", nil))
		return
	}

	stats, err := s.stats.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("Reading cache stats failed", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

func (s *Server) handleQuery(c *gin.Context) {
	if s.agent == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("query agent is not configured", nil))
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid request body", err))
		return
	}

	answer, err := s.agent.Process(c.Request.Context(), req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrNoToolMatched) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, errorBody("Query failed", err))
		return
	}
	c.JSON(http.StatusOK, answer)
}

func parseDateParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

// validateDocIDs checks the subject document ID and, when given, the
// prior-period one.
func validateDocIDs(docID, priorDocID string) error {
	if err := validation.ValidateDocumentID(docID); err != nil {
		return err
	}
	if priorDocID != "" {
		return validation.ValidateDocumentID(priorDocID)
	}
	return nil
}
