// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/pkg/validation"
	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/ir"
)

func runCompany(cmd *cobra.Command, args []string) {
	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	query := args[0]
	limit := companyLimit
	if limit <= 0 {
		limit = 5
	}

	directory := newCompanyDirectory(logger)
	matches, err := directory.Search(ctx, query, limit)
	if err != nil {
		fatal("Company lookup failed: %v", err)
	}
	if len(matches) == 0 {
		ux.Info("No companies matched")
		return
	}

	rows := make([][]string, 0, len(matches))
	for _, match := range matches {
		listed := "-"
		if match.Company.Listed {
			listed = "listed"
		}
		rows = append(rows, []string{
			match.Company.EDINETCode,
			match.Company.SecCode,
			match.Company.Name,
			match.Company.Industry,
			listed,
		})
	}
	ux.Table([]string{"EDINET", "SEC CODE", "COMPANY", "INDUSTRY", "STATUS"}, rows)
	ux.Muted(fmt.Sprintf("%d match(es)", len(matches)))
}

func runIRFetch(cmd *cobra.Command, args []string) {
	if len(args) == 0 && irURL == "" {
		fatal("Pass a securities code or --url")
	}

	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	client, err := llm.NewFromEnv()
	if err != nil {
		fatal("Failed to configure the language model: %v", err)
	}
	service, err := newIRService(logger, client)
	if err != nil {
		fatal("Failed to wire IR retrieval: %v", err)
	}

	category, ok := ir.ParseCategory(irCategory)
	if !ok {
		fatal("Unknown category %q (want earnings, news, or disclosures)", irCategory)
	}
	opts := ir.FetchOptions{
		Category:     category,
		MaxDocuments: irLimit,
		Download:     irDownload,
		Force:        irForce,
		Summarize:    irSummarize,
	}
	if irSinceDays > 0 {
		opts.Since = time.Now().AddDate(0, 0, -irSinceDays)
	}

	var secCode string
	if len(args) > 0 {
		if secCode, err = validation.SanitizeSecCode(args[0]); err != nil {
			fatal("%v", err)
		}
	}

	var documents []ir.Document
	switch {
	case irURL != "":
		documents, err = service.ExplorePage(ctx, secCode, irURL, opts)
	default:
		documents, err = service.FetchDocuments(ctx, secCode, opts)
		if errors.Is(err, ir.ErrNoTemplate) {
			ux.Warning(fmt.Sprintf("No IR template saved for %s", secCode))
			ux.Muted("Generate one with: filinglens ir template " + secCode + " --url <IR page>")
			ux.Muted("Or explore a page directly with --url")
			return
		}
	}
	if err != nil {
		fatal("IR fetch failed: %v", err)
	}
	if len(documents) == 0 {
		ux.Info("No IR documents found")
		return
	}

	rows := make([][]string, 0, len(documents))
	for _, doc := range documents {
		rows = append(rows, irRow(doc))
	}
	ux.Table([]string{"DATE", "CATEGORY", "TITLE", "SAVED"}, rows)
	ux.Muted(fmt.Sprintf("%d document(s)", len(documents)))

	for _, doc := range documents {
		if doc.Summary == nil {
			continue
		}
		ux.Title(doc.Title)
		ux.Info(doc.Summary.Overview)
		for _, point := range doc.Summary.ImpactPoints {
			ux.KeyValue(point.Label, point.Content)
		}
	}
}

func irRow(doc ir.Document) []string {
	date := "-"
	if !doc.PublishedDate.IsZero() {
		date = doc.PublishedDate.Format("2006-01-02")
	}
	title := doc.Title
	if runes := []rune(title); len(runes) > 40 {
		title = string(runes[:39]) + "…"
	}
	saved := doc.FilePath
	if saved == "" {
		saved = doc.URL
	}
	return []string{date, string(doc.Category), title, saved}
}

func runIRTemplate(cmd *cobra.Command, args []string) {
	logger := newLogger(config)
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	secCode, err := validation.SanitizeSecCode(args[0])
	if err != nil {
		fatal("%v", err)
	}

	client, err := llm.NewFromEnv()
	if err != nil {
		fatal("Failed to configure the language model: %v", err)
	}
	service, err := newIRService(logger, client)
	if err != nil {
		fatal("Failed to wire IR retrieval: %v", err)
	}

	companyName := irTemplateName
	if companyName == "" {
		// The registry lookup is best-effort; the LLM only uses the
		// name as context when reading the page.
		directory := newCompanyDirectory(logger)
		if company, err := directory.BySecCode(ctx, secCode); err == nil {
			companyName = company.Name
		}
	}

	ux.Info(fmt.Sprintf("Analyzing IR pages starting at %s", irTemplateURL))
	saved, err := service.GenerateTemplate(ctx, secCode, companyName, irTemplateURL, irTemplateOverwrite)
	if err != nil {
		fatal("Template generation failed: %v", err)
	}
	ux.Success("Template saved to " + saved)
	ux.Muted("Fetch documents with: filinglens ir fetch " + secCode)
}
