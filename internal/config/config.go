package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	LogLevel          string
	SessionTTL        time.Duration
	RequestTimeout    time.Duration
	CompletionTimeout time.Duration
	ModelsFile        string
	Completion        CompletionConfig
	Prompt            PromptConfig
	RateLimit         RateLimitConfig
	Telegram          TelegramConfig
}

// CompletionConfig параметры OpenAI-совместимого эндпоинта (Groq по умолчанию).
type CompletionConfig struct {
	APIKey      string
	BaseURL     string
	Temperature float32
}

type PromptConfig struct {
	Preset string
	// Text, если задан, заменяет пресет целиком.
	Text string
}

// RateLimitConfig ограничение частоты отправки сообщений на одного клиента.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type TelegramConfig struct {
	BotToken      string
	APIBaseURL    string
	WebhookSecret string
}

// Load читает конфигурацию из окружения. Если рядом лежит .env, он подгружается
// первым; уже заданные переменные окружения не перезаписываются.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.ModelsFile = getEnv("MODELS_FILE", "")

	sessionTTL, err := parseDuration(getEnv("SESSION_TTL", "2h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = sessionTTL

	reqTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	completionTimeout, err := parseDuration(getEnv("COMPLETION_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPLETION_TIMEOUT: %w", err)
	}
	if completionTimeout <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	cfg.CompletionTimeout = completionTimeout

	temperature, err := strconv.ParseFloat(getEnv("OPENAI_TEMPERATURE", "0.7"), 32)
	if err != nil {
		return Config{}, fmt.Errorf("parse OPENAI_TEMPERATURE: %w", err)
	}
	cfg.Completion = CompletionConfig{
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		BaseURL:     getEnv("OPENAI_API_BASE", "https://api.groq.com/openai/v1"),
		Temperature: float32(temperature),
	}

	cfg.Prompt = PromptConfig{
		Preset: getEnv("SYSTEM_PROMPT_PRESET", "helpful"),
		Text:   getEnv("SYSTEM_PROMPT", ""),
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "1"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RATE_LIMIT_BURST: %w", err)
	}
	cfg.RateLimit = RateLimitConfig{RPS: rps, Burst: burst}

	cfg.Telegram = TelegramConfig{
		BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		APIBaseURL:    getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
	}

	return cfg, nil
}

// TelegramEnabled сообщает, нужно ли поднимать webhook Telegram.
func (c Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	return time.ParseDuration(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}
