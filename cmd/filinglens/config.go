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
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harborline/filinglens/pkg/logging"
)

// Config holds everything the CLI wires from flags, the optional
// ~/.filinglens.yaml, and FILINGLENS_* environment variables. The
// environment always wins over the file.
type Config struct {
	EDINETAPIKey  string `mapstructure:"edinet_api_key"`
	EDINETBaseURL string `mapstructure:"edinet_base_url"`
	LLMProvider   string `mapstructure:"llm_provider"`
	LLMModel      string `mapstructure:"llm_model"`
	DataDir        string `mapstructure:"data_dir"`
	CacheDir       string `mapstructure:"cache_dir"`
	DownloadDir    string `mapstructure:"download_dir"`
	IRTemplatesDir string `mapstructure:"ir_templates_dir"`
	LogLevel      string `mapstructure:"log_level"`
	LogDir        string `mapstructure:"log_dir"`
	Port          int    `mapstructure:"port"`
}

// loadDotEnv loads a .env file from the working directory or
// ~/.filinglens.env, stopping at the first one found. Variables already
// set in the environment are never overridden; running without any
// .env file is fine.
func loadDotEnv() {
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".filinglens.env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

// loadConfig resolves the effective configuration. cfgFile, when set,
// must exist; otherwise .filinglens.yaml is probed in the home and
// working directories and silently skipped when absent.
func loadConfig(cfgFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FILINGLENS")
	v.AutomaticEnv()

	// Every key needs a default so environment-only values survive
	// Unmarshal.
	v.SetDefault("edinet_api_key", "")
	v.SetDefault("edinet_base_url", "")
	v.SetDefault("llm_provider", "")
	v.SetDefault("llm_model", "")
	v.SetDefault("data_dir", "data")
	v.SetDefault("cache_dir", "")
	v.SetDefault("download_dir", "")
	v.SetDefault("ir_templates_dir", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_dir", "")
	v.SetDefault("port", 8799)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(".filinglens")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(cfg.DataDir, "downloads", "pdf")
	}
	if cfg.IRTemplatesDir == "" {
		cfg.IRTemplatesDir = filepath.Join(cfg.DataDir, "ir_templates")
	}
	return cfg, nil
}

// applyLLMEnv materializes file-sourced LLM settings as the
// environment variables the provider constructors read. Real
// environment variables take precedence over the config file.
func applyLLMEnv(cfg Config) {
	if cfg.LLMProvider != "" && os.Getenv("FILINGLENS_LLM_PROVIDER") == "" {
		_ = os.Setenv("FILINGLENS_LLM_PROVIDER", cfg.LLMProvider)
	}
	if cfg.LLMModel == "" {
		return
	}
	switch strings.ToLower(os.Getenv("FILINGLENS_LLM_PROVIDER")) {
	case "", "openai":
		if os.Getenv("OPENAI_MODEL") == "" {
			_ = os.Setenv("OPENAI_MODEL", cfg.LLMModel)
		}
	case "ollama":
		if os.Getenv("OLLAMA_MODEL") == "" {
			_ = os.Setenv("OLLAMA_MODEL", cfg.LLMModel)
		}
	}
}

// newLogger builds the process logger from the resolved config and the
// root verbosity flags. Callers own Close.
func newLogger(cfg Config) *logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "filinglens",
		JSON:    jsonLogs,
		Quiet:   quiet,
	})
}
