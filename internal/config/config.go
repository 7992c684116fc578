package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env    string `yaml:"env" env:"APP_ENV"`
	Port   string `yaml:"port" env:"API_PORT"`
	DBURL  string `yaml:"db_dsn" env:"DB_DSN"`      // empty runs on the in-memory store
	Origin string `yaml:"cors_origin" env:"CORS_ORIGIN"` // CORS

	SessionSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`

	AI     AIConfig     `yaml:"ai"`
	SMTP   SMTPConfig   `yaml:"smtp"`
	Worker WorkerConfig `yaml:"worker"`
}

type AIConfig struct {
	APIKey        string        `yaml:"api_key" env:"AI_API_KEY"`
	BaseURL       string        `yaml:"base_url" env:"AI_BASE_URL"`
	Model         string        `yaml:"model" env:"AI_MODEL"`
	Timeout       time.Duration `yaml:"timeout" env:"AI_TIMEOUT"`
	FailurePolicy string        `yaml:"failure_policy" env:"AI_FAILURE_POLICY"` // fallback | fail
}

type SMTPConfig struct {
	Host          string `yaml:"host" env:"SMTP_HOST"` // empty logs mail instead of sending
	Port          int    `yaml:"port" env:"SMTP_PORT"`
	Username      string `yaml:"username" env:"SMTP_USERNAME"`
	Password      string `yaml:"password" env:"SMTP_PASSWORD"`
	From          string `yaml:"from" env:"SMTP_FROM"`
	FailurePolicy string `yaml:"failure_policy" env:"NOTIFY_FAILURE_POLICY"` // log | fail
}

type WorkerConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval" env:"WORKER_POLL_INTERVAL"`
	LeaseTTL        time.Duration `yaml:"lease_ttl" env:"WORKER_LEASE_TTL"`
	MaxAttempts     int           `yaml:"max_attempts" env:"WORKER_MAX_ATTEMPTS"`
	StepMaxAttempts int           `yaml:"step_max_attempts" env:"STEP_MAX_ATTEMPTS"`
}

func defaults() Config {
	return Config{
		Env:    "dev",
		Port:   "8080",
		Origin: "http://localhost:5173",
		AI: AIConfig{
			BaseURL:       "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:         "gemini-1.5-flash-8b",
			Timeout:       30 * time.Second,
			FailurePolicy: "fallback",
		},
		SMTP: SMTPConfig{
			Port:          587,
			From:          "AI Ticket Triage <no-reply@localhost>",
			FailurePolicy: "log",
		},
		Worker: WorkerConfig{
			PollInterval:    time.Second,
			LeaseTTL:        2 * time.Minute,
			MaxAttempts:     2,
			StepMaxAttempts: 2,
		},
	}
}

// Load builds the config from defaults, then the optional YAML file at path,
// then environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Env == "dev" && cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-me"
	}
	return cfg, cfg.Validate()
}

func (c Config) Production() bool { return strings.EqualFold(c.Env, "production") }

func (c Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.AI.FailurePolicy {
	case "fallback", "fail":
	default:
		errs = append(errs, fmt.Errorf("unknown AI failure policy %q", c.AI.FailurePolicy))
	}
	switch c.SMTP.FailurePolicy {
	case "log", "fail":
	default:
		errs = append(errs, fmt.Errorf("unknown notify failure policy %q", c.SMTP.FailurePolicy))
	}
	if c.Worker.MaxAttempts < 1 || c.Worker.StepMaxAttempts < 1 {
		errs = append(errs, errors.New("attempt counts must be at least 1"))
	}
	if c.Production() && c.AI.APIKey == "" {
		errs = append(errs, errors.New("AI_API_KEY is required in production"))
	}
	return errors.Join(errs...)
}
