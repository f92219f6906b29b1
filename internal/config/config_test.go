package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MARGINALIA_GITHUB_TOKEN", "ghp_test")
	t.Setenv("MARGINALIA_GITHUB_USERNAME", "ada")
	t.Setenv("MARGINALIA_REPO", "acme/docs")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ghp_test", cfg.GitHubToken)
	assert.Equal(t, "ada", cfg.GitHubUsername)
	assert.Equal(t, "acme/docs", cfg.Repo)
	assert.Equal(t, "README.md", cfg.FilePath)
	assert.Equal(t, "main", cfg.BaseBranch)
	assert.Equal(t, model.SaveStrategyBranch, cfg.SaveStrategy)
	assert.True(t, cfg.AutoPR)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Debounce)
	assert.Equal(t, 3*time.Second, cfg.StatusDisplay)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "marginalia.db", cfg.DBPath)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MARGINALIA_GITHUB_TOKEN", "")
	t.Setenv("MARGINALIA_GITHUB_USERNAME", "")
	t.Setenv("MARGINALIA_REPO", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MARGINALIA_FILE", "docs/spec.md")
	t.Setenv("MARGINALIA_BASE_BRANCH", "develop")
	t.Setenv("MARGINALIA_SAVE_STRATEGY", "direct")
	t.Setenv("MARGINALIA_AUTO_PR", "false")
	t.Setenv("MARGINALIA_POLL_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docs/spec.md", cfg.FilePath)
	assert.Equal(t, "develop", cfg.BaseBranch)
	assert.Equal(t, model.SaveStrategyDirect, cfg.SaveStrategy)
	assert.False(t, cfg.AutoPR)
	assert.Equal(t, time.Minute, cfg.PollInterval)
}

func TestLoad_InvalidStrategy(t *testing.T) {
	setRequired(t)
	t.Setenv("MARGINALIA_SAVE_STRATEGY", "yolo")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("MARGINALIA_AUTOSAVE_DEBOUNCE", "soon")

	_, err := Load()
	assert.Error(t, err)
}
