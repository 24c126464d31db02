package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	JWTSecret           string
	JudgeAPIURL         string
	JudgeAPIKey         string
	JudgePollInterval   time.Duration
	JudgePollAttempts   int
	ProgressCacheTTL    time.Duration
	GraderWebhookSecret string
	AIProvider          string
	OpenAIAPIKey        string
	AnthropicAPIKey     string
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LMS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Lumen LMS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("judge.api_url", "http://localhost:2358")
	v.SetDefault("judge.poll_interval", "1s")
	v.SetDefault("judge.poll_attempts", 30)
	v.SetDefault("progress.cache_ttl", "5m")
	v.SetDefault("ai.provider", "openai")

	pollInterval, err := time.ParseDuration(v.GetString("judge.poll_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid judge poll interval: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("progress.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress cache ttl: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		JudgeAPIURL:         strings.TrimRight(v.GetString("judge.api_url"), "/"),
		JudgeAPIKey:         v.GetString("judge.api_key"),
		JudgePollInterval:   pollInterval,
		JudgePollAttempts:   v.GetInt("judge.poll_attempts"),
		ProgressCacheTTL:    cacheTTL,
		GraderWebhookSecret: v.GetString("grader.webhook_secret"),
		AIProvider:          strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.JudgePollInterval <= 0 {
		cfg.JudgePollInterval = time.Second
	}

	if cfg.JudgePollAttempts <= 0 {
		cfg.JudgePollAttempts = 30
	}

	return cfg, nil
}
