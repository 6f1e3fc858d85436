// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"
)

const (
	// maxRegistryFileSize caps external registry files at 1MB.
	maxRegistryFileSize = 1024 * 1024
	// maxKeywordsPerTool caps keywords per tool entry.
	maxKeywordsPerTool = 50
	// maxToolsInRegistry caps total tool entries.
	maxToolsInRegistry = 100

	// registryEnvVar names an external registry file that overrides the
	// embedded default.
	registryEnvVar = "FILINGLENS_TOOL_REGISTRY"
)

//go:embed tool_registry.yaml
var defaultRegistryYAML []byte

var (
	routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filinglens_tool_routing_decisions_total",
			Help: "Total tool routing decisions by tool and routing source",
		},
		[]string{"tool", "source"},
	)

	routingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filinglens_tool_routing_latency_seconds",
			Help:    "Time to route a query to a tool",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 5, 10},
		},
	)

	toolRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filinglens_tool_runs_total",
			Help: "Total tool executions by tool and status",
		},
		[]string{"tool", "status"},
	)

	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filinglens_tool_duration_seconds",
			Help:    "Tool execution time in seconds",
			Buckets: []float64{0.01, 0.1, 1, 5, 15, 60, 180, 600},
		},
		[]string{"tool"},
	)

	registryLoadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filinglens_tool_registry_load_errors_total",
			Help: "Total tool registry load failures",
		},
	)
)

// RoutingEntry describes one routable tool: its name, the query
// keywords that select it, and guidance surfaced to the intent
// classifier when keyword routing is inconclusive.
type RoutingEntry struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	UseWhen   string   `yaml:"use_when"`
	AvoidWhen string   `yaml:"avoid_when,omitempty"`
}

type registryFile struct {
	Tools []RoutingEntry `yaml:"tools"`
}

// Registry maps query keywords to tool names.
type Registry struct {
	entries map[string]RoutingEntry
	// keywords holds lowercased keyword -> tool names, ordered as
	// loaded so matching is deterministic.
	keywords []registryKeyword
}

type registryKeyword struct {
	keyword string
	tool    string
}

// Match is one tool candidate for a query, scored by how many of its
// registry keywords the query contains.
type Match struct {
	Tool            string
	MatchCount      int
	MatchedKeywords []string
}

// LoadRegistry loads the routing registry: the file named by
// FILINGLENS_TOOL_REGISTRY when set, the embedded default otherwise.
func LoadRegistry() (*Registry, error) {
	if path := os.Getenv(registryEnvVar); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			registryLoadErrors.Inc()
			return nil, fmt.Errorf("tool registry %s: %w", path, err)
		}
		if info.Size() > maxRegistryFileSize {
			registryLoadErrors.Inc()
			return nil, fmt.Errorf("tool registry %s exceeds %d bytes", path, maxRegistryFileSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			registryLoadErrors.Inc()
			return nil, fmt.Errorf("tool registry %s: %w", path, err)
		}
		reg, err := ParseRegistry(data)
		if err != nil {
			registryLoadErrors.Inc()
			return nil, fmt.Errorf("tool registry %s: %w", path, err)
		}
		return reg, nil
	}

	reg, err := ParseRegistry(defaultRegistryYAML)
	if err != nil {
		registryLoadErrors.Inc()
		return nil, fmt.Errorf("embedded tool registry: %w", err)
	}
	return reg, nil
}

// ParseRegistry parses and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing registry YAML: %w", err)
	}
	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("registry defines no tools")
	}
	if len(file.Tools) > maxToolsInRegistry {
		return nil, fmt.Errorf("registry defines %d tools, max is %d", len(file.Tools), maxToolsInRegistry)
	}

	reg := &Registry{entries: make(map[string]RoutingEntry, len(file.Tools))}
	for i, entry := range file.Tools {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("tool entry %d has no name", i)
		}
		if _, dup := reg.entries[name]; dup {
			return nil, fmt.Errorf("duplicate tool entry %q", name)
		}
		if len(entry.Keywords) > maxKeywordsPerTool {
			return nil, fmt.Errorf("tool %q has %d keywords, max is %d", name, len(entry.Keywords), maxKeywordsPerTool)
		}
		entry.Name = name
		reg.entries[name] = entry
		for _, kw := range entry.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			reg.keywords = append(reg.keywords, registryKeyword{keyword: kw, tool: name})
		}
	}
	return reg, nil
}

// Entry returns the routing entry for a tool name.
func (r *Registry) Entry(name string) (RoutingEntry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// ToolCount returns the number of registered tool entries.
func (r *Registry) ToolCount() int {
	return len(r.entries)
}

// Match scores every tool against the query and returns candidates
// sorted by descending match count, name ascending on ties. Keywords
// are substring-matched because Japanese queries carry no word
// boundaries to split on.
func (r *Registry) Match(query string) []Match {
	query = strings.ToLower(query)

	counts := make(map[string]int)
	matched := make(map[string][]string)
	for _, rk := range r.keywords {
		if strings.Contains(query, rk.keyword) {
			counts[rk.tool]++
			matched[rk.tool] = append(matched[rk.tool], rk.keyword)
		}
	}

	matches := make([]Match, 0, len(counts))
	for tool, count := range counts {
		matches = append(matches, Match{
			Tool:            tool,
			MatchCount:      count,
			MatchedKeywords: matched[tool],
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MatchCount != matches[j].MatchCount {
			return matches[i].MatchCount > matches[j].MatchCount
		}
		return matches[i].Tool < matches[j].Tool
	})
	return matches
}
