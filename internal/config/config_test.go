package config_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"webping/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the Config reads so tests don't pick up the
// developer's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "SESSION_SECRET", "STATIC_DIR",
		"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_SUBJECT", "VAPID_TTL",
		"EMAIL_PROVIDER", "POSTMARK_SERVER_TOKEN", "POSTMARK_ACCOUNT_TOKEN",
		"RESEND_API_KEY", "EMAIL_FROM", "SEND_RATE_LIMIT", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "file:webping.db", cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "mailto:example@example.com", cfg.VAPIDSubject)
	assert.Equal(t, 30, cfg.VAPIDTTL)
	assert.Equal(t, config.EmailProviderLog, cfg.EmailProvider)
	assert.Equal(t, 60, cfg.SendRateLimit)
	assert.Equal(t, "web/static", cfg.StaticDir)
}

func TestParse_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/webping?sslmode=disable")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("VAPID_TTL", "120")
	t.Setenv("EMAIL_PROVIDER", "resend")
	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("EMAIL_FROM", "alerts@example.com")
	t.Setenv("SEND_RATE_LIMIT", "0")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "pub", cfg.VAPIDPublicKey)
	assert.Equal(t, "priv", cfg.VAPIDPrivateKey)
	assert.Equal(t, 120, cfg.VAPIDTTL)
	assert.Equal(t, config.EmailProviderResend, cfg.EmailProvider)
	assert.Zero(t, cfg.SendRateLimit)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"VAPID_TTL": "soon"}},
		{"unknown provider", map[string]string{"EMAIL_PROVIDER": "smtp"}},
		{"postmark without token", map[string]string{"EMAIL_PROVIDER": "postmark", "EMAIL_FROM": "a@b.c"}},
		{"resend without sender", map[string]string{"EMAIL_PROVIDER": "resend", "RESEND_API_KEY": "re_1"}},
		{"negative rate limit", map[string]string{"SEND_RATE_LIMIT": "-1"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Parse()
			assert.Error(t, err)
		})
	}
}

func TestParse_ErrorKinds(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAPID_TTL", "soon")
	_, err := config.Parse()
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	clearEnv(t)
	t.Setenv("EMAIL_PROVIDER", "smtp")
	_, err = config.Parse()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{LogLevel: "warn", LogFormat: "json"}
	log := cfg.NewLogger(&buf)

	log.Info("hidden")
	log.Warn("shown", "topic", "alerts")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "alerts", rec["topic"])
	assert.Equal(t, "webping", rec["service"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{LogLevel: "debug", LogFormat: "text"}
	cfg.NewLogger(&buf).Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
