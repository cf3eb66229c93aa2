package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, key := range []string{
		"EDGE_ENV", "EDGE_ADDR", "EDGE_API_URL", "EDGE_SUBSCRIPTION_URL",
		"EDGE_CHAT_BACKEND_URL", "EDGE_ASSISTANT_TIMEOUT", "EDGE_JWT_SECRET",
		"EDGE_JWT_EXPIRY", "EDGE_LLM_PROVIDER", "EDGE_LLM_MODEL",
		"EDGE_RATE_LIMIT", "EDGE_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, kv[key])
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"EDGE_ENV": "local"})

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsLocal())
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:3001", cfg.APIURL)
	assert.Equal(t, "http://localhost:3001/subscriptions", cfg.SubscriptionURL)
	assert.Equal(t, "http://localhost:8080/api/v1/chat", cfg.ChatBackendURL)
	assert.Equal(t, 60*time.Second, cfg.AssistantTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, ProviderMock, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.0-flash-001", cfg.LLMModel)
	assert.Equal(t, float64(20), cfg.RateLimit)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, localJWTSecret, cfg.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"EDGE_API_URL":           "https://api.example/",
		"EDGE_ASSISTANT_TIMEOUT": "5s",
		"EDGE_JWT_SECRET":        "s3cret",
		"EDGE_LLM_PROVIDER":      "Gemini",
		"EDGE_RATE_LIMIT":        "2.5",
		"EDGE_ALLOWED_ORIGINS":   "https://a.example, https://b.example,",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsLocal())
	assert.Equal(t, "https://api.example", cfg.APIURL)
	assert.Equal(t, "https://api.example/subscriptions", cfg.SubscriptionURL)
	assert.Equal(t, 5*time.Second, cfg.AssistantTimeout)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret":   {},
		"bad timeout":      {"EDGE_JWT_SECRET": "s", "EDGE_ASSISTANT_TIMEOUT": "soon"},
		"negative expiry":  {"EDGE_JWT_SECRET": "s", "EDGE_JWT_EXPIRY": "-1h"},
		"unknown provider": {"EDGE_JWT_SECRET": "s", "EDGE_LLM_PROVIDER": "openai"},
		"zero rate limit":  {"EDGE_JWT_SECRET": "s", "EDGE_RATE_LIMIT": "0"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			setEnv(t, env)
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
