// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken    string
	GitHubUsername string
	Repo           string // "owner/name"
	FilePath       string
	BaseBranch     string
	SaveStrategy   model.SaveStrategy
	AutoPR         bool
	PollInterval   time.Duration
	Debounce       time.Duration
	StatusDisplay  time.Duration
	ListenAddr     string
	DBPath         string
}

// Load reads configuration from environment variables and returns a validated
// Config. Required: MARGINALIA_GITHUB_TOKEN, MARGINALIA_GITHUB_USERNAME, and
// MARGINALIA_REPO (owner/name). Optional variables with defaults:
// MARGINALIA_FILE (README.md), MARGINALIA_BASE_BRANCH (main),
// MARGINALIA_SAVE_STRATEGY (branch), MARGINALIA_AUTO_PR (true),
// MARGINALIA_POLL_INTERVAL (30s), MARGINALIA_AUTOSAVE_DEBOUNCE (2s),
// MARGINALIA_STATUS_DISPLAY (3s), MARGINALIA_LISTEN_ADDR (127.0.0.1:8080),
// MARGINALIA_DB_PATH (marginalia.db).
func Load() (*Config, error) {
	token := os.Getenv("MARGINALIA_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("MARGINALIA_GITHUB_TOKEN is required")
	}

	username := os.Getenv("MARGINALIA_GITHUB_USERNAME")
	if username == "" {
		return nil, fmt.Errorf("MARGINALIA_GITHUB_USERNAME is required")
	}

	repo := os.Getenv("MARGINALIA_REPO")
	if repo == "" {
		return nil, fmt.Errorf("MARGINALIA_REPO is required (owner/name)")
	}

	filePath := "README.md"
	if v, ok := os.LookupEnv("MARGINALIA_FILE"); ok && v != "" {
		filePath = v
	}

	baseBranch := "main"
	if v, ok := os.LookupEnv("MARGINALIA_BASE_BRANCH"); ok && v != "" {
		baseBranch = v
	}

	strategy := model.SaveStrategyBranch
	if v, ok := os.LookupEnv("MARGINALIA_SAVE_STRATEGY"); ok {
		switch model.SaveStrategy(v) {
		case model.SaveStrategyBranch, model.SaveStrategyDirect:
			strategy = model.SaveStrategy(v)
		default:
			return nil, fmt.Errorf("MARGINALIA_SAVE_STRATEGY has invalid value %q: expected branch or direct", v)
		}
	}

	autoPR := true
	if v, ok := os.LookupEnv("MARGINALIA_AUTO_PR"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MARGINALIA_AUTO_PR has invalid boolean %q: %w", v, err)
		}
		autoPR = parsed
	}

	pollInterval, err := durationEnv("MARGINALIA_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	debounce, err := durationEnv("MARGINALIA_AUTOSAVE_DEBOUNCE", 2*time.Second)
	if err != nil {
		return nil, err
	}

	statusDisplay, err := durationEnv("MARGINALIA_STATUS_DISPLAY", 3*time.Second)
	if err != nil {
		return nil, err
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("MARGINALIA_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "marginalia.db"
	if v, ok := os.LookupEnv("MARGINALIA_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		GitHubToken:    token,
		GitHubUsername: username,
		Repo:           repo,
		FilePath:       filePath,
		BaseBranch:     baseBranch,
		SaveStrategy:   strategy,
		AutoPR:         autoPR,
		PollInterval:   pollInterval,
		Debounce:       debounce,
		StatusDisplay:  statusDisplay,
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	return parsed, nil
}
