package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/config"
)

func TestLoadConfigDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	cfg, err := config.LoadConfig(config.Params{})
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "64MB", cfg.Scheduler.BufferSize)
}

func TestLoadConfigParamsOverrideFileDefaults(t *testing.T) {
	dir := t.TempDir()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	cfg, err := config.LoadConfig(config.Params{Workers: 8, Host: "0.0.0.0", Port: 9000})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadConfigRejectsSchemaViolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  workers: \"not-a-number\"\n"), 0o600))

	_, err := config.LoadConfig(config.Params{ConfigPath: path})
	require.Error(t, err)
}

func TestValidateSchemaAcceptsWellFormedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  workers: 4\ncache:\n  backend: memory\n"), 0o600))

	assert.NoError(t, config.ValidateSchema(path))
}

func TestValidateSchemaMissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, config.ValidateSchema(filepath.Join(t.TempDir(), "missing.yaml")))
}
