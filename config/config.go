package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	envPrefix = "EDGE"

	// localJWTSecret signs tokens when EDGE_ENV=local and no secret is set.
	localJWTSecret = "edge-local-development-secret"
)

const (
	ProviderMock   = "mock"
	ProviderGemini = "gemini"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds the settings of the assistant service. Values come from the
// environment, optionally seeded by a .env file in the working directory.
type Config struct {
	Env              string
	Addr             string
	APIURL           string
	SubscriptionURL  string
	ChatBackendURL   string
	AssistantTimeout time.Duration
	JWTSecret        string
	JWTExpiry        time.Duration
	LLMProvider      string
	LLMModel         string
	RateLimit        float64
	AllowedOrigins   []string
}

// Load reads .env (when present) and then the EDGE_* environment variables.
func Load() (*Config, error) {
	// A missing .env is fine; the environment alone is enough.
	_ = gotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("addr", ":8080")
	v.SetDefault("api_url", "http://localhost:3001")
	v.SetDefault("subscription_url", "")
	v.SetDefault("chat_backend_url", "http://localhost:8080/api/v1/chat")
	v.SetDefault("assistant_timeout", "60s")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expiry", "24h")
	v.SetDefault("llm_provider", ProviderMock)
	v.SetDefault("llm_model", "gemini-2.0-flash-001")
	v.SetDefault("rate_limit", 20)
	v.SetDefault("allowed_origins", "*")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:            v.GetString("env"),
		Addr:           v.GetString("addr"),
		APIURL:         strings.TrimRight(v.GetString("api_url"), "/"),
		ChatBackendURL: v.GetString("chat_backend_url"),
		JWTSecret:      v.GetString("jwt_secret"),
		LLMProvider:    strings.ToLower(v.GetString("llm_provider")),
		LLMModel:       v.GetString("llm_model"),
		RateLimit:      v.GetFloat64("rate_limit"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
	}

	if cfg.JWTSecret == "" && cfg.IsLocal() {
		cfg.JWTSecret = localJWTSecret
	}

	cfg.SubscriptionURL = v.GetString("subscription_url")
	if cfg.SubscriptionURL == "" {
		cfg.SubscriptionURL = cfg.APIURL + "/subscriptions"
	}

	var err error
	if cfg.AssistantTimeout, err = duration(v, "assistant_timeout"); err != nil {
		return nil, err
	}
	if cfg.JWTExpiry, err = duration(v, "jwt_expiry"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsLocal reports whether the service runs on a developer machine.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderMock, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown %s_LLM_PROVIDER %q", ErrInvalid, envPrefix, c.LLMProvider)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: %s_JWT_SECRET is required", ErrInvalid, envPrefix)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("%w: %s_RATE_LIMIT must be positive", ErrInvalid, envPrefix)
	}
	if c.AssistantTimeout <= 0 || c.JWTExpiry <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	return nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s_%s: %w", ErrInvalid, envPrefix, strings.ToUpper(key), err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
