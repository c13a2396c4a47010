package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPathCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	// Default file was written
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.DefaultProvider)
	assert.Equal(t, 6, cfg.Orchestrator.MaxAssignments)
	assert.Equal(t, 90, cfg.Orchestrator.AgentTimeoutSeconds)
}

func TestLoadFromPathSparseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	sparse := []byte("llm:\n  default_provider: openai\n  providers:\n    openai:\n      model: gpt-4o-mini\n")
	require.NoError(t, os.WriteFile(path, sparse, 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	// Defaults filled in for omitted sections
	assert.NotEmpty(t, cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Orchestrator.HistoryTurns)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.LLM.DefaultProvider = "missing"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
	assert.Equal(t, "", expandPath(""))
}
