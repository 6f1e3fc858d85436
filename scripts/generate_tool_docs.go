// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// generate_tool_docs generates a markdown reference from the research
// agent's tool_registry.yaml.
//
// Usage:
//
//	go run scripts/generate_tool_docs.go > docs/tool_reference.md
//
// The generated documentation includes:
//   - Full tool inventory with categories
//   - Keywords and routing guidance
//   - Keyword index with trigger mapping
//   - Summary statistics
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const registryPath = "services/research/agent/tool_registry.yaml"

// ToolRegistryYAML is the root structure for YAML deserialization.
type ToolRegistryYAML struct {
	Tools []ToolEntryYAML `yaml:"tools"`
}

// ToolEntryYAML represents a single tool entry in the YAML file.
type ToolEntryYAML struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	UseWhen   string   `yaml:"use_when"`
	AvoidWhen string   `yaml:"avoid_when,omitempty"`
}

// ToolCategory represents a category of tools.
type ToolCategory struct {
	Name        string
	Description string
	Tools       []ToolEntryYAML
}

func main() {
	data, err := os.ReadFile(registryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", registryPath, err)
		os.Exit(1)
	}

	var registry ToolRegistryYAML
	if err := yaml.Unmarshal(data, &registry); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing YAML: %v\n", err)
		os.Exit(1)
	}

	categories := categorizeTools(registry.Tools)
	generateMarkdown(categories, registry.Tools)
}

// categorizeTools groups tools into categories based on their names.
func categorizeTools(tools []ToolEntryYAML) []ToolCategory {
	categoryMap := map[string]*ToolCategory{
		"analysis": {
			Name:        "Analysis Tools",
			Description: "Tools that run the LLM pipeline over one or more filings: full analysis, comparison, and focused summaries.",
		},
		"documents": {
			Name:        "Document Tools",
			Description: "Tools that talk to the EDINET disclosure API: searching listings and downloading filings without analysis.",
		},
		"companies": {
			Name:        "Company & IR Tools",
			Description: "Tools that resolve companies against the EDINET filer registry and fetch material from corporate IR sites.",
		},
		"cache": {
			Name:        "Cache Tools",
			Description: "Tools that inspect the local filing cache.",
		},
	}

	for _, tool := range tools {
		switch {
		case tool.Name == "analyze_document" || tool.Name == "compare_documents" ||
			tool.Name == "summarize_document":
			categoryMap["analysis"].Tools = append(categoryMap["analysis"].Tools, tool)

		case tool.Name == "search_documents" || tool.Name == "download_document":
			categoryMap["documents"].Tools = append(categoryMap["documents"].Tools, tool)

		case tool.Name == "search_company" || tool.Name == "fetch_ir_documents":
			categoryMap["companies"].Tools = append(categoryMap["companies"].Tools, tool)

		case strings.HasPrefix(tool.Name, "cache_"):
			categoryMap["cache"].Tools = append(categoryMap["cache"].Tools, tool)

		default:
			categoryMap["analysis"].Tools = append(categoryMap["analysis"].Tools, tool)
		}
	}

	order := []string{"analysis", "documents", "companies", "cache"}

	var result []ToolCategory
	for _, key := range order {
		if cat, ok := categoryMap[key]; ok && len(cat.Tools) > 0 {
			result = append(result, *cat)
		}
	}
	return result
}

// generateMarkdown outputs the full markdown documentation.
func generateMarkdown(categories []ToolCategory, allTools []ToolEntryYAML) {
	fmt.Println("# Tool Reference")
	fmt.Println()
	fmt.Println("## Overview")
	fmt.Println()
	fmt.Println("This document is a reference for the tools the FilingLens research agent can route a query to.")
	fmt.Printf("The tool registry is embedded from `%s` and can be overridden with `FILINGLENS_TOOL_REGISTRY`.\n", registryPath)
	fmt.Println()
	fmt.Printf("**Generated:** %s\n", time.Now().Format("2006-01-02 15:04:05 UTC"))
	fmt.Println()

	totalKeywords := 0
	hasAvoidance := 0
	for _, tool := range allTools {
		totalKeywords += len(tool.Keywords)
		if tool.AvoidWhen != "" {
			hasAvoidance++
		}
	}

	fmt.Println("## Summary Statistics")
	fmt.Println()
	fmt.Println("| Metric | Count |")
	fmt.Println("|--------|-------|")
	fmt.Printf("| Total Tools | %d |\n", len(allTools))
	fmt.Printf("| Total Keywords | %d |\n", totalKeywords)
	fmt.Printf("| Tools with Avoidance Guidance | %d |\n", hasAvoidance)
	fmt.Printf("| Tool Categories | %d |\n", len(categories))
	fmt.Println()

	fmt.Println("## Table of Contents")
	fmt.Println()
	for i, cat := range categories {
		fmt.Printf("%d. [%s](#%s)\n", i+1, cat.Name, strings.ToLower(strings.ReplaceAll(cat.Name, " ", "-")))
	}
	fmt.Println()

	fmt.Println("---")
	fmt.Println()
	fmt.Println("## Quick Reference")
	fmt.Println()
	fmt.Println("| Tool | Category | Keywords (Top 3) | Has Avoidance |")
	fmt.Println("|------|----------|------------------|---------------|")

	for _, cat := range categories {
		for _, tool := range cat.Tools {
			keywords := tool.Keywords
			if len(keywords) > 3 {
				keywords = keywords[:3]
			}
			keywordStr := strings.Join(keywords, ", ")
			if len(tool.Keywords) > 3 {
				keywordStr += ", ..."
			}

			hasAvoid := "No"
			if tool.AvoidWhen != "" {
				hasAvoid = "Yes"
			}

			fmt.Printf("| `%s` | %s | %s | %s |\n", tool.Name, cat.Name, keywordStr, hasAvoid)
		}
	}
	fmt.Println()

	fmt.Println("---")
	fmt.Println()
	for _, cat := range categories {
		fmt.Printf("## %s\n", cat.Name)
		fmt.Println()
		fmt.Println(cat.Description)
		fmt.Println()

		for _, tool := range cat.Tools {
			printToolDetails(tool)
		}
	}

	fmt.Println("---")
	fmt.Println()
	fmt.Println("## Keyword Index")
	fmt.Println()
	fmt.Println("This index maps keywords to the tools they trigger. Keywords are")
	fmt.Println("substring-matched against the lowercased query, so Japanese forms need")
	fmt.Println("no word boundaries.")
	fmt.Println()

	keywordIndex := buildKeywordIndex(allTools)
	keywords := make([]string, 0, len(keywordIndex))
	for k := range keywordIndex {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	fmt.Println("| Keyword | Triggers Tools |")
	fmt.Println("|---------|----------------|")
	for _, kw := range keywords {
		fmt.Printf("| `%s` | %s |\n", kw, strings.Join(keywordIndex[kw], ", "))
	}
	fmt.Println()

	fmt.Println("---")
	fmt.Println()
	fmt.Printf("*This document is auto-generated from `%s`.*\n", registryPath)
	fmt.Println()
	fmt.Println("*To regenerate: `go run scripts/generate_tool_docs.go > docs/tool_reference.md`*")
}

// printToolDetails prints detailed information for a single tool.
func printToolDetails(tool ToolEntryYAML) {
	fmt.Printf("### `%s`\n", tool.Name)
	fmt.Println()

	fmt.Println("| Property | Value |")
	fmt.Println("|----------|-------|")
	fmt.Printf("| **Use When** | %s |\n", tool.UseWhen)
	if tool.AvoidWhen != "" {
		fmt.Printf("| **Avoid When** | %s |\n", tool.AvoidWhen)
	}
	fmt.Println()

	fmt.Println("**Keywords:**")
	fmt.Println()
	fmt.Print("`")
	fmt.Print(strings.Join(tool.Keywords, "`, `"))
	fmt.Println("`")
	fmt.Println()
}

// buildKeywordIndex creates a map of keyword -> tool names.
func buildKeywordIndex(tools []ToolEntryYAML) map[string][]string {
	index := make(map[string][]string)
	for _, tool := range tools {
		for _, kw := range tool.Keywords {
			index[kw] = append(index[kw], tool.Name)
		}
	}
	return index
}
