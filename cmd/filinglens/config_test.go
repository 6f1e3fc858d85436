// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points HOME at an empty directory and blanks the
// FILINGLENS_* variables a developer shell might carry, so config
// resolution sees only what the test sets.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"FILINGLENS_EDINET_API_KEY",
		"FILINGLENS_EDINET_BASE_URL",
		"FILINGLENS_LLM_PROVIDER",
		"FILINGLENS_LLM_MODEL",
		"FILINGLENS_DATA_DIR",
		"FILINGLENS_CACHE_DIR",
		"FILINGLENS_DOWNLOAD_DIR",
		"FILINGLENS_LOG_LEVEL",
		"FILINGLENS_LOG_DIR",
		"FILINGLENS_PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 8799, cfg.Port)
	assert.Empty(t, cfg.EDINETAPIKey)
	assert.Equal(t, filepath.Join("data", "cache"), cfg.CacheDir)
	assert.Equal(t, filepath.Join("data", "downloads", "pdf"), cfg.DownloadDir)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FILINGLENS_EDINET_API_KEY", "env-key")
	t.Setenv("FILINGLENS_DATA_DIR", "/srv/filinglens")
	t.Setenv("FILINGLENS_LOG_LEVEL", "debug")
	t.Setenv("FILINGLENS_PORT", "9001")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.EDINETAPIKey)
	assert.Equal(t, "/srv/filinglens", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, filepath.Join("/srv/filinglens", "cache"), cfg.CacheDir)
	assert.Equal(t, filepath.Join("/srv/filinglens", "downloads", "pdf"), cfg.DownloadDir)
}

func TestLoadConfig_File(t *testing.T) {
	isolateEnv(t)
	cfgFile := filepath.Join(t.TempDir(), "filinglens.yaml")
	contents := `edinet_api_key: file-key
data_dir: /var/lib/filinglens
cache_dir: /var/cache/filinglens
llm_provider: ollama
llm_model: qwen3:8b
port: 9100
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(contents), 0o600))

	cfg, err := loadConfig(cfgFile)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.EDINETAPIKey)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "qwen3:8b", cfg.LLMModel)
	assert.Equal(t, 9100, cfg.Port)
	// An explicit cache_dir is honored; the download dir still derives
	// from data_dir.
	assert.Equal(t, "/var/cache/filinglens", cfg.CacheDir)
	assert.Equal(t, filepath.Join("/var/lib/filinglens", "downloads", "pdf"), cfg.DownloadDir)
}

func TestLoadConfig_EnvironmentBeatsFile(t *testing.T) {
	isolateEnv(t)
	cfgFile := filepath.Join(t.TempDir(), "filinglens.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("edinet_api_key: file-key\n"), 0o600))
	t.Setenv("FILINGLENS_EDINET_API_KEY", "env-key")

	cfg, err := loadConfig(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.EDINETAPIKey)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	isolateEnv(t)
	_, err := loadConfig(filepath.Join(t.TempDir(), "no-such.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_HomeFilePickedUp(t *testing.T) {
	isolateEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	contents := "edinet_api_key: home-key\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".filinglens.yaml"), []byte(contents), 0o600))

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "home-key", cfg.EDINETAPIKey)
}

func TestApplyLLMEnv_OpenAI(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OLLAMA_MODEL", "")

	applyLLMEnv(Config{LLMProvider: "openai", LLMModel: "gpt-5-mini"})

	assert.Equal(t, "openai", os.Getenv("FILINGLENS_LLM_PROVIDER"))
	assert.Equal(t, "gpt-5-mini", os.Getenv("OPENAI_MODEL"))
	assert.Empty(t, os.Getenv("OLLAMA_MODEL"))
}

func TestApplyLLMEnv_Ollama(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OLLAMA_MODEL", "")

	applyLLMEnv(Config{LLMProvider: "ollama", LLMModel: "qwen3:8b"})

	assert.Equal(t, "ollama", os.Getenv("FILINGLENS_LLM_PROVIDER"))
	assert.Equal(t, "qwen3:8b", os.Getenv("OLLAMA_MODEL"))
	assert.Empty(t, os.Getenv("OPENAI_MODEL"))
}

func TestApplyLLMEnv_EnvironmentWins(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FILINGLENS_LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_MODEL", "existing")
	t.Setenv("OPENAI_MODEL", "")

	applyLLMEnv(Config{LLMProvider: "openai", LLMModel: "from-file"})

	assert.Equal(t, "ollama", os.Getenv("FILINGLENS_LLM_PROVIDER"))
	assert.Equal(t, "existing", os.Getenv("OLLAMA_MODEL"))
	assert.Empty(t, os.Getenv("OPENAI_MODEL"))
}
