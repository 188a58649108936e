// Package config loads the process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	EmailProviderLog      = "log"
	EmailProviderPostmark = "postmark"
	EmailProviderResend   = "resend"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"file:webping.db"`
	RedisURL      string `env:"REDIS_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	StaticDir     string `env:"STATIC_DIR" envDefault:"web/static"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT" envDefault:"mailto:example@example.com"`
	VAPIDTTL        int    `env:"VAPID_TTL" envDefault:"30"`

	// Email is only sent for real when a provider other than "log" is set.
	EmailProvider        string `env:"EMAIL_PROVIDER" envDefault:"log"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	ResendAPIKey         string `env:"RESEND_API_KEY"`
	EmailFrom            string `env:"EMAIL_FROM"`

	// Sends per topic per minute. Zero disables the limit.
	SendRateLimit int `env:"SEND_RATE_LIMIT" envDefault:"60"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env if present and parses the environment into a Config.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the current environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.EmailProvider {
	case EmailProviderLog:
	case EmailProviderPostmark:
		if c.PostmarkServerToken == "" {
			return fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required for the postmark provider", ErrInvalidConfig)
		}
	case EmailProviderResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("%w: RESEND_API_KEY is required for the resend provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown EMAIL_PROVIDER %q", ErrInvalidConfig, c.EmailProvider)
	}

	if c.EmailProvider != EmailProviderLog && c.EmailFrom == "" {
		return fmt.Errorf("%w: EMAIL_FROM is required for the %s provider", ErrInvalidConfig, c.EmailProvider)
	}
	if c.SendRateLimit < 0 {
		return fmt.Errorf("%w: SEND_RATE_LIMIT must not be negative", ErrInvalidConfig)
	}
	if c.VAPIDTTL < 0 {
		return fmt.Errorf("%w: VAPID_TTL must not be negative", ErrInvalidConfig)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// NewLogger builds the process logger. A nil writer logs to stdout.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With(slog.String("service", "webping"))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: LOG_LEVEL %q", ErrInvalidConfig, s)
	}
	return level, nil
}
