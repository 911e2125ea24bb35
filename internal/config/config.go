// Package config loads the engine's runtime configuration from environment
// variables, optionally layered over a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full set of knobs the runner, telemetry and LLM client need.
type Config struct {
	// Run
	MaxAgents              int
	TimeStepHours          int
	AutoEventsEnabled      bool
	RandomEventFrequency   float64
	ReflectionThreshold    int
	PersonalityDecayFactor float64

	// Content
	CatalogueFile string

	// Telemetry
	LogDir         string
	AlsoToStderr   bool
	EnableDebugLog bool

	// LLM provider
	TextModelURL   string
	TextModelKey   string
	TextModel      string
	EmbeddingURL   string
	EmbeddingKey   string
	EmbeddingModel string
	UseMockLLM     bool
}

// Default returns the configuration's documented defaults, applied
// before any environment override.
func Default() Config {
	return Config{
		MaxAgents:              50,
		TimeStepHours:          1,
		AutoEventsEnabled:      true,
		RandomEventFrequency:   0.05,
		ReflectionThreshold:    5,
		PersonalityDecayFactor: 1.0,
		LogDir:                 "logs",
		EmbeddingModel:         "text-embedding-ada-002",
	}
}

// Load reads a .env file if present (a missing file is not an error: Load
// ignores the not-exist error godotenv.Load returns) then layers environment
// variables over Default().
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
	}

	cfg := Default()

	if v := os.Getenv("MAX_AGENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: MAX_AGENTS: %w", err)
		}
		cfg.MaxAgents = n
	}
	if v := os.Getenv("TIME_STEP_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: TIME_STEP_HOURS: %w", err)
		}
		cfg.TimeStepHours = n
	}
	if v := os.Getenv("AUTO_EVENTS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: AUTO_EVENTS_ENABLED: %w", err)
		}
		cfg.AutoEventsEnabled = b
	}
	if v := os.Getenv("RANDOM_EVENT_FREQUENCY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: RANDOM_EVENT_FREQUENCY: %w", err)
		}
		cfg.RandomEventFrequency = f
	}
	if v := os.Getenv("REFLECTION_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: REFLECTION_THRESHOLD: %w", err)
		}
		cfg.ReflectionThreshold = n
	}
	if v := os.Getenv("PERSONALITY_DECAY_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: PERSONALITY_DECAY_FACTOR: %w", err)
		}
		cfg.PersonalityDecayFactor = f
	}

	cfg.CatalogueFile = os.Getenv("CATALOGUE_FILE")

	cfg.LogDir = envOr("LOG_DIR", cfg.LogDir)
	if v := os.Getenv("LOG_ALSO_STDERR"); v != "" {
		cfg.AlsoToStderr, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("LOG_DEBUG"); v != "" {
		cfg.EnableDebugLog, _ = strconv.ParseBool(v)
	}

	cfg.TextModelURL = os.Getenv("TEXT_MODEL_URL")
	cfg.TextModelKey = os.Getenv("TEXT_MODEL_KEY")
	cfg.TextModel = envOr("TEXT_MODEL_LLM", cfg.TextModel)
	cfg.EmbeddingURL = os.Getenv("EMBEDDING_URL")
	cfg.EmbeddingKey = os.Getenv("EMBEDDING_KEY")
	cfg.EmbeddingModel = envOr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	if v := os.Getenv("USE_MOCK_LLM"); v != "" {
		cfg.UseMockLLM, _ = strconv.ParseBool(v)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
