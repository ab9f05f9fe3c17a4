// Package config provides configuration management for Chronicle.
// It loads settings from environment variables with the CHRONICLE_ prefix
// and provides sensible defaults for all configuration options.
//
// Scoring weights, selection quotas, and cameo thresholds are deliberately
// configuration rather than constants: the shipped defaults are the tuned
// values but every number is adjustable per deployment. An optional YAML file
// (CHRONICLE_CONFIG_FILE) overlays the environment values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Chronicle engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Engine    EngineConfig    `yaml:"engine"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Selection SelectionConfig `yaml:"selection"`
	Cameo     CameoConfig     `yaml:"cameo"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig contains the status HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7272)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // Path to data directory for sqlite (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // Postgres connection string when engine=postgres
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider       string  `yaml:"provider"`        // LLM provider: ollama, openai (default: ollama)
	OllamaURL      string  `yaml:"ollama_url"`      // Ollama API URL (default: http://localhost:11434)
	OllamaModel    string  `yaml:"ollama_model"`    // Ollama model for analysis (default: qwen2.5:7b)
	OpenAIAPIKey   string  `yaml:"openai_api_key"`  // OpenAI API key
	OpenAIModel    string  `yaml:"openai_model"`    // OpenAI model name (default: gpt-4o-mini)
	OpenAIBaseURL  string  `yaml:"openai_base_url"` // Optional OpenAI-compatible base URL
	RequestsPerMin float64 `yaml:"requests_per_min"` // Rate limit for LLM calls (default: 30)
}

// EngineConfig contains extraction worker and merge settings.
type EngineConfig struct {
	Workers           int           `yaml:"workers"`            // Extraction worker count (default: 2)
	QueueSize         int           `yaml:"queue_size"`         // Extraction job queue size (default: 64)
	ExtractionTimeout time.Duration `yaml:"extraction_timeout"` // Per-call timeout; expiry yields an empty batch (default: 90s)
	SummaryWindow     int           `yaml:"summary_window"`     // Prior-chapter summaries included in context (default: 5)
}

// ScoringConfig carries the relevance-score weights; see DefaultScoring for
// the shipped values.
type ScoringConfig struct {
	ProtagonistBase float64 `yaml:"protagonist_base"` // Role base value (default: 50)
	AntagonistBase  float64 `yaml:"antagonist_base"`  // Role base value (default: 45)
	MajorBase       float64 `yaml:"major_base"`       // Role base value (default: 35)
	SupportBase     float64 `yaml:"support_base"`     // Role base value (default: 20)

	CharacterInfluenceWeight float64 `yaml:"character_influence_weight"` // Influence multiplier for characters (default: 0.2)
	WorldInfluenceWeight     float64 `yaml:"world_influence_weight"`     // Influence multiplier for world entities (default: 0.4)

	CharacterDecayRate float64 `yaml:"character_decay_rate"` // Recency decay k for characters (default: 0.15)
	WorldDecayRate     float64 `yaml:"world_decay_rate"`     // Recency decay k for world entities (default: 0.2)
	RecencyWeight      float64 `yaml:"recency_weight"`       // Recency component scale W (default: 30)

	KeywordPoints    float64 `yaml:"keyword_points"`     // Full credit for a name hit in the keyword set (default: 20)
	HookOverlapMax   float64 `yaml:"hook_overlap_max"`   // Cap for partial hook-line overlap credit (default: 5)
	MinSubstringRune int     `yaml:"min_substring_rune"` // Minimum overlap length in runes (default: 3)

	MaxScore float64 `yaml:"max_score"` // Total score cap (default: 100)
}

// SelectionConfig carries the selector's role quotas.
type SelectionConfig struct {
	MaxMajor         int `yaml:"max_major"`         // MAJOR quota per chapter (default: 5)
	MaxSupport       int `yaml:"max_support"`       // SUPPORT quota per chapter (default: 2)
	MaxCharacters    int `yaml:"max_characters"`    // Hard overall character cap (default: 8)
	MaxOrganizations int `yaml:"max_organizations"` // Top organizations by score (default: 3)
	MaxLocations     int `yaml:"max_locations"`     // Top locations by score (default: 2)
	MaxArtifacts     int `yaml:"max_artifacts"`     // Top artifacts by score (default: 2)
}

// CameoConfig carries the thresholds that route a character to the cameo
// table and drop low-signal world entities entirely.
type CameoConfig struct {
	MinInfluence         float64 `yaml:"min_influence"`          // Below this a character is cameo-gated (default: 20)
	MinScreenTime        float64 `yaml:"min_screen_time"`        // Below this a character is cameo-gated (default: 0.1)
	MinReturnProbability float64 `yaml:"min_return_probability"` // Below this a character is cameo-gated (default: 0.3)
	WorldMinInfluence    float64 `yaml:"world_min_influence"`    // Below this a world entity is not persisted at all (default: 20)
}

// SecurityConfig controls API authentication for the status server.
type SecurityConfig struct {
	Mode     string `yaml:"mode"`      // "development" (no auth) or "production" (default: development)
	APIToken string `yaml:"api_token"` // Bearer token required in production mode
}

// DefaultScoring returns the default scoring weights.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		ProtagonistBase:          50,
		AntagonistBase:           45,
		MajorBase:                35,
		SupportBase:              20,
		CharacterInfluenceWeight: 0.2,
		WorldInfluenceWeight:     0.4,
		CharacterDecayRate:       0.15,
		WorldDecayRate:           0.2,
		RecencyWeight:            30,
		KeywordPoints:            20,
		HookOverlapMax:           5,
		MinSubstringRune:         3,
		MaxScore:                 100,
	}
}

// DefaultSelection returns the default selector quotas.
func DefaultSelection() SelectionConfig {
	return SelectionConfig{
		MaxMajor:         5,
		MaxSupport:       2,
		MaxCharacters:    8,
		MaxOrganizations: 3,
		MaxLocations:     2,
		MaxArtifacts:     2,
	}
}

// DefaultCameo returns the default cameo-gate thresholds.
func DefaultCameo() CameoConfig {
	return CameoConfig{
		MinInfluence:         20,
		MinScreenTime:        0.1,
		MinReturnProbability: 0.3,
		WorldMinInfluence:    20,
	}
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. If CHRONICLE_CONFIG_FILE is set (or a path is passed explicitly
// to LoadConfigFile), the YAML file overlays the environment values.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()

	if path := os.Getenv("CHRONICLE_CONFIG_FILE"); path != "" {
		if err := applyConfigFile(cfg, path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadConfigFile loads the base configuration and overlays the given YAML file.
func LoadConfigFile(path string) (*Config, error) {
	cfg := buildBaseConfig()
	if err := applyConfigFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyConfigFile unmarshals the YAML file over the existing config values.
// Fields absent from the file keep their environment/default values.
func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("CHRONICLE_PORT", 7272),
			Host: getEnv("CHRONICLE_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Engine:      getEnv("CHRONICLE_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("CHRONICLE_DATA_PATH", "./data"),
			PostgresDSN: getEnv("CHRONICLE_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			Provider:       getEnv("CHRONICLE_LLM_PROVIDER", "ollama"),
			OllamaURL:      getEnv("CHRONICLE_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("CHRONICLE_OLLAMA_MODEL", "qwen2.5:7b"),
			OpenAIAPIKey:   getEnv("CHRONICLE_OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("CHRONICLE_OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:  getEnv("CHRONICLE_OPENAI_BASE_URL", ""),
			RequestsPerMin: getEnvFloat("CHRONICLE_LLM_REQUESTS_PER_MIN", 30),
		},
		Engine: EngineConfig{
			Workers:           getEnvInt("CHRONICLE_EXTRACTION_WORKERS", 2),
			QueueSize:         getEnvInt("CHRONICLE_EXTRACTION_QUEUE_SIZE", 64),
			ExtractionTimeout: getEnvDuration("CHRONICLE_EXTRACTION_TIMEOUT", 90*time.Second),
			SummaryWindow:     getEnvInt("CHRONICLE_SUMMARY_WINDOW", 5),
		},
		Scoring:   DefaultScoring(),
		Selection: DefaultSelection(),
		Cameo:     DefaultCameo(),
		Security: SecurityConfig{
			Mode:     getEnv("CHRONICLE_SECURITY_MODE", "development"),
			APIToken: getEnv("CHRONICLE_API_TOKEN", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "90s", "2m")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
