// Package config provides configuration for the orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Mode selection via NEGOTIATOR_MODE.
const (
	EnvMode  = "NEGOTIATOR_MODE"
	ModeMock = "MOCK"
)

// Config holds the orchestrator configuration. It is built once at startup
// and injected; nothing in the service reads the environment after Load.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM backend
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Agent step bounds
	GenerateTimeout  time.Duration
	JudgeTimeout     time.Duration
	SummarizeTimeout time.Duration
	AdapterAttempts  int

	// Judging
	JudgePromptVersion string

	// Logging
	LogLevel string

	// Mode selects the agent step adapter variant (MOCK or live).
	Mode string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:negotiator.db?cache=shared&mode=rwc"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		GenerateTimeout:    time.Duration(getEnvInt("GENERATE_TIMEOUT_MS", 30000)) * time.Millisecond,
		JudgeTimeout:       time.Duration(getEnvInt("JUDGE_TIMEOUT_MS", 20000)) * time.Millisecond,
		SummarizeTimeout:   time.Duration(getEnvInt("SUMMARIZE_TIMEOUT_MS", 15000)) * time.Millisecond,
		AdapterAttempts:    getEnvInt("ADAPTER_MAX_ATTEMPTS", 2),
		JudgePromptVersion: getEnv("JUDGE_PROMPT_VERSION", "v0.1"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Mode:               getEnv(EnvMode, ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
