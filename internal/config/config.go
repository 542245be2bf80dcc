package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"

	LLMProviderOpenAI = "openai"
	LLMProviderArk    = "ark"
	LLMProviderGemini = "gemini"
	LLMProviderMock   = "mock"

	defaultLLMBaseURL = "https://api.openai.com/v1"
)

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrUnknownLLMProvider = errors.New("unknown llm provider")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres store")
	ErrMissingLLMKey      = errors.New("LLM_API_KEY is required for the configured llm provider")
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"companion.db"`

	LLMProvider       string `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey         string `env:"LLM_API_KEY"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeoutSeconds int    `env:"LLM_TIMEOUT_SECONDS" envDefault:"25"`
	LLMHistoryLimit   int    `env:"LLM_HISTORY_LIMIT" envDefault:"20"`
	ArkRegion         string `env:"ARK_REGION" envDefault:"cn-beijing"`
	ArkAccessKey      string `env:"ARK_ACCESS_KEY"`
	ArkSecretKey      string `env:"ARK_SECRET_KEY"`

	SessionStalenessHours int    `env:"SESSION_STALENESS_HOURS" envDefault:"4"`
	MaxMessageRunes       int    `env:"MAX_MESSAGE_RUNES" envDefault:"4000"`
	CrisisSignalsPath     string `env:"CRISIS_SIGNALS_PATH"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"43200"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	LogDevelopment bool `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que las etiquetas de env no pueden expresar.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return ErrMissingDatabaseURL
		}
	case StoreDriverSQLite, StoreDriverMemory:
	default:
		return ErrUnknownStoreDriver
	}

	switch c.LLMProvider {
	case LLMProviderOpenAI, LLMProviderGemini:
		if strings.TrimSpace(c.LLMAPIKey) == "" {
			return ErrMissingLLMKey
		}
	case LLMProviderArk:
		if strings.TrimSpace(c.LLMAPIKey) == "" && (c.ArkAccessKey == "" || c.ArkSecretKey == "") {
			return ErrMissingLLMKey
		}
	case LLMProviderMock:
	default:
		return ErrUnknownLLMProvider
	}
	return nil
}

// SessionStaleness es la ventana dentro de la cual una sesión abierta se retoma.
func (c *Config) SessionStaleness() time.Duration {
	if c.SessionStalenessHours <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(c.SessionStalenessHours) * time.Hour
}

// LLMTimeout limita cada llamada al generador.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

func (c *Config) JWTAccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

// ArkBaseURL evita mandar a Ark la URL por defecto de OpenAI.
func (c *Config) ArkBaseURL() string {
	if c.LLMBaseURL == defaultLLMBaseURL {
		return ""
	}
	return c.LLMBaseURL
}
