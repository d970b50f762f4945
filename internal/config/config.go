package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TaskStoreSQLite = "sqlite"
	TaskStoreNeo4j  = "neo4j"
)

// Config keeps runtime settings for the service.
type Config struct {
	HTTPAddr            string      `yaml:"http_addr"`
	DatabaseURL         string      `yaml:"database_url"`
	TaskStore           string      `yaml:"task_store"`
	JWTSecret           string      `yaml:"jwt_secret"`
	HistoryLimit        int         `yaml:"history_limit"`
	MaxToolRounds       int         `yaml:"max_tool_rounds"`
	MaxMessageLength    int         `yaml:"max_message_length"`
	LLM                 LLMConfig   `yaml:"llm"`
	Neo4j               Neo4jConfig `yaml:"neo4j"`
	TelegramToken       string      `yaml:"telegram_token"`
	ReportIntervalHours int         `yaml:"report_interval_hours"`
	// ReportTime (HH:MM) switches reports to once a day; it wins over the interval.
	ReportTime          string      `yaml:"report_time"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Referer        string `yaml:"referer"`
	Title          string `yaml:"title"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Timeout of a single model call.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReportInterval is zero when reports are disabled.
func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalHours) * time.Hour
}

// TelegramEnabled reports whether the Telegram channel should start.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		DatabaseURL:      "taskchat.db",
		TaskStore:        TaskStoreSQLite,
		HistoryLimit:     20,
		MaxToolRounds:    8,
		MaxMessageLength: 2000,
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "openai/gpt-4o-mini",
			Referer:        "http://localhost:3000",
			Title:          "Todo AI Assistant",
			TimeoutSeconds: 60,
			MaxRetries:     2,
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		ReportIntervalHours: 5,
	}
}

// Load reads the settings like Read and validates them.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read loads an optional YAML file, then applies environment overrides.
func Read(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings needed to serve requests.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	switch c.TaskStore {
	case TaskStoreSQLite, TaskStoreNeo4j:
	default:
		return fmt.Errorf("unknown task store %q", c.TaskStore)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("max tool rounds must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.TaskStore, "TASK_STORE")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.ReportTime, "REPORT_TIME")

	setString(&cfg.LLM.APIKey, "OPENROUTER_API_KEY")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.Referer, "LLM_REFERER")
	setString(&cfg.LLM.Title, "LLM_TITLE")

	setString(&cfg.Neo4j.URI, "NEO4J_URI")
	setString(&cfg.Neo4j.User, "NEO4J_USER")
	setString(&cfg.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&cfg.Neo4j.Database, "NEO4J_DATABASE")

	ints := []struct {
		key string
		dst *int
	}{
		{"HISTORY_LIMIT", &cfg.HistoryLimit},
		{"MAX_TOOL_ROUNDS", &cfg.MaxToolRounds},
		{"MAX_MESSAGE_LENGTH", &cfg.MaxMessageLength},
		{"LLM_TIMEOUT_SECONDS", &cfg.LLM.TimeoutSeconds},
		{"LLM_MAX_RETRIES", &cfg.LLM.MaxRetries},
		{"REPORT_INTERVAL_HOURS", &cfg.ReportIntervalHours},
	}
	for _, item := range ints {
		if err := setInt(item.dst, item.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = v
	return nil
}
