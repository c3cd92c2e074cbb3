package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)
	cfg, err := loader.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfig_OverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: \"9090\"\n"), 0o644)
	require.NoError(t, err)

	cfg, err := NewLoader(dir).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: \"9090\"\n"), 0o644)
	require.NoError(t, err)

	t.Setenv("SPARQL_AGENT_SERVER_PORT", "7070")
	cfg, err := NewLoader(dir).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfig_RejectsInvalidValidatedConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPARQL_AGENT_RETRY_MAX_EXECUTION_RETRIES", "-1")
	_, err := NewLoader(dir).LoadConfig()
	assert.Error(t, err)
}
