// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/services/research/edinet"
)

var config Config

// --- Global Command Variables ---
var (
	cfgFile      string
	verbose      bool
	quiet        bool
	jsonLogs     bool
	traceEnabled bool

	priorDocID string // shared by analyze and stage
	outputPath string

	searchDate       string
	searchFrom       string
	searchTo         string
	searchSecCode    string
	searchEDINETCode string
	searchName       string
	searchTypes      string
	searchLimit      int

	downloadType int
	downloadDir  string

	companyLimit int

	irCategory  string
	irSinceDays int
	irLimit     int
	irURL       string
	irDownload  bool
	irSummarize bool
	irForce     bool

	irTemplateURL       string
	irTemplateName      string
	irTemplateOverwrite bool

	servePort int

	rootCmd = &cobra.Command{
		Use:   "filinglens",
		Short: "Analyze Japanese EDINET securities filings",
		Long: `FilingLens downloads corporate filings from EDINET, extracts their
				text, and runs a staged LLM analysis pipeline that produces a
				comprehensive Japanese-language report.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadDotEnv()

			loaded, err := loadConfig(cfgFile)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
			config = loaded
			applyLLMEnv(config)

			ux.InitMode()
			if quiet {
				ux.SetMode(ux.ModePlain)
			}
		},
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze [doc-id]",
		Short: "Run the full analysis pipeline on a filing",
		Args:  cobra.ExactArgs(1),
		Run:   runAnalyze, // Defined in cmd_analyze.go
	}
	stageCmd = &cobra.Command{
		Use:   "stage [stage-name] [doc-id]",
		Short: "Run one pipeline stage plus the upstream stages it needs",
		Args:  cobra.ExactArgs(2),
		Run:   runStage, // Defined in cmd_analyze.go
	}

	// --- Documents ---
	searchCmd = &cobra.Command{
		Use:   "search",
		Short: "Search EDINET disclosure listings",
		Run:   runSearch, // Defined in cmd_documents.go
	}
	downloadCmd = &cobra.Command{
		Use:   "download [doc-id]",
		Short: "Download a filing in a chosen format",
		Args:  cobra.ExactArgs(1),
		Run:   runDownload, // Defined in cmd_documents.go
	}

	// --- Companies & IR ---
	companyCmd = &cobra.Command{
		Use:   "company [name]",
		Short: "Look up EDINET and securities codes by company name",
		Args:  cobra.ExactArgs(1),
		Run:   runCompany, // Defined in cmd_ir.go
	}
	irCmd = &cobra.Command{
		Use:   "ir",
		Short: "Fetch investor-relations material from company websites",
	}
	irFetchCmd = &cobra.Command{
		Use:   "fetch [sec-code]",
		Short: "Fetch IR documents via a saved template or --url",
		Args:  cobra.MaximumNArgs(1),
		Run:   runIRFetch, // Defined in cmd_ir.go
	}
	irTemplateCmd = &cobra.Command{
		Use:   "template [sec-code]",
		Short: "Generate a scraping template from a company's IR page",
		Args:  cobra.ExactArgs(1),
		Run:   runIRTemplate, // Defined in cmd_ir.go
	}

	// --- Agent ---
	queryCmd = &cobra.Command{
		Use:   "query [question]",
		Short: "Route a natural-language research question to a tool",
		Args:  cobra.MinimumNArgs(1),
		Run:   runQuery, // Defined in cmd_query.go
	}

	// --- Cache ---
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the filing cache",
	}
	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache document, company, and report counts",
		Run:   runCacheStats, // Defined in cmd_cache.go
	}
	cacheListCmd = &cobra.Command{
		Use:   "list",
		Short: "List cached filings",
		Run:   runCacheList, // Defined in cmd_cache.go
	}
	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "DANGER: Delete every cached record, report, and artifact",
		Run:   runCacheClear, // Defined in cmd_cache.go
	}

	// --- Serving ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis pipeline over HTTP",
		Run:   runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run:   runVersion, // Defined in main.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: ~/.filinglens.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"Plain output, no styling or stderr logs")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false,
		"Emit stderr logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false,
		"Export OpenTelemetry traces over OTLP")

	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&priorDocID, "prior", "",
		"Prior period's document ID, enables the period comparison")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "",
		"Write the full markdown report to this file")

	rootCmd.AddCommand(stageCmd)
	stageCmd.Flags().StringVar(&priorDocID, "prior", "",
		"Prior period's document ID, used when the comparison stage is in scope")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchDate, "date", "", "Single submission date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "Range start (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "Range end (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchSecCode, "code", "", "Securities code, e.g. 7203")
	searchCmd.Flags().StringVar(&searchEDINETCode, "edinet-code", "", "EDINET filer code, e.g. E02144")
	searchCmd.Flags().StringVar(&searchName, "name", "", "Company name substring")
	searchCmd.Flags().StringVar(&searchTypes, "type", "", "Document type codes, comma separated (e.g. 120,140)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Keep only the newest N results (0 = all)")

	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().IntVar(&downloadType, "doc-type", int(edinet.DownloadPDF),
		"Format: 1=XBRL, 2=PDF, 3=attachments, 4=English, 5=CSV")
	downloadCmd.Flags().StringVar(&downloadDir, "out", "", "Output directory (default: configured download dir)")

	rootCmd.AddCommand(companyCmd)
	companyCmd.Flags().IntVar(&companyLimit, "limit", 5, "Maximum matches to show")

	rootCmd.AddCommand(irCmd)
	irCmd.AddCommand(irFetchCmd)
	irFetchCmd.Flags().StringVar(&irCategory, "category", "",
		"Keep one section: earnings, news, or disclosures")
	irFetchCmd.Flags().IntVar(&irSinceDays, "since-days", 0,
		"Drop documents published more than N days ago (0 = no cutoff)")
	irFetchCmd.Flags().IntVar(&irLimit, "limit", 0, "Keep only the newest N documents (0 = default cap)")
	irFetchCmd.Flags().StringVar(&irURL, "url", "",
		"Explore this IR page with the LLM instead of a saved template")
	irFetchCmd.Flags().BoolVar(&irDownload, "download", false, "Download each document's PDF")
	irFetchCmd.Flags().BoolVar(&irSummarize, "summarize", false,
		"Download and summarize each document with the LLM")
	irFetchCmd.Flags().BoolVar(&irForce, "force", false, "Re-download PDFs that already exist locally")

	irCmd.AddCommand(irTemplateCmd)
	irTemplateCmd.Flags().StringVar(&irTemplateURL, "url", "", "Company IR page to analyze (required)")
	irTemplateCmd.Flags().StringVar(&irTemplateName, "name", "",
		"Company name for the template (default: resolved from the filer registry)")
	irTemplateCmd.Flags().BoolVar(&irTemplateOverwrite, "overwrite", false,
		"Replace an existing template for this code")
	_ = irTemplateCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(queryCmd)

	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheClearCmd.Flags().Bool("force", false, "Required to confirm the deletion")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default: configured port)")

	rootCmd.AddCommand(versionCmd)
}
