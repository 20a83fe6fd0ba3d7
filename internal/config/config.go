package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all service configuration. It is built once at start and never
// mutated afterwards.
type Config struct {
	Port            string `toml:"port"`
	DefaultLanguage string `toml:"default_language"`
	DatabaseURL     string `toml:"database_url"`

	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Telegram TelegramConfig `toml:"telegram"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	// Keys only come from the environment.
	GeminiAPIKey   string `toml:"-"`
	DeepSeekAPIKey string `toml:"-"`
	OpenAIAPIKey   string `toml:"-"`
}

type SearchConfig struct {
	BaseURL        string `toml:"base_url"`
	MaxResults     int    `toml:"max_results"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type TelegramConfig struct {
	Token           string `toml:"-"`
	TherapistChatID int64  `toml:"therapist_chat_id"`
}

func DefaultConfig() Config {
	return Config{
		Port:            "8000",
		DefaultLanguage: "es",
		LLM: LLMConfig{
			Provider:       "gemini",
			TimeoutSeconds: 60,
		},
		Search: SearchConfig{
			MaxResults:     3,
			TimeoutSeconds: 15,
		},
	}
}

// APIKey returns the key for the selected provider.
func (c LLMConfig) APIKey() string {
	switch strings.ToLower(c.Provider) {
	case "deepseek":
		return c.DeepSeekAPIKey
	case "openai":
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadDotEnv loads .env.local and .env from the working directory without
// overriding variables that are already set.
func LoadDotEnv() {
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Printf("failed to load %s: %v", p, err)
			continue
		}
		log.Printf("loaded env from %s", p)
	}
}

// Load builds the config from defaults, the TOML file named by EMOTIONAI_CONFIG
// (if any) and finally the environment, which wins.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv("EMOTIONAI_CONFIG")); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DefaultLanguage, "DEFAULT_LANGUAGE")
	setString(&cfg.DatabaseURL, "DATABASE_URL")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	cfg.LLM.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.LLM.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.LLM.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	setString(&cfg.Search.BaseURL, "SEARCH_BASE_URL")
	if err := setInt(&cfg.Search.MaxResults, "SEARCH_MAX_RESULTS"); err != nil {
		return err
	}

	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	if raw := strings.TrimSpace(os.Getenv("THERAPIST_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("THERAPIST_CHAT_ID: %w", err)
		}
		cfg.Telegram.TherapistChatID = id
	}
	return nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "deepseek", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Search.MaxResults <= 0 {
		return errors.New("search max_results must be > 0")
	}
	if c.LLM.TimeoutSeconds < 0 || c.Search.TimeoutSeconds < 0 {
		return errors.New("timeouts must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
