package main

import (
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-signup"
	"github.com/spf13/viper"
)

// Config is the server configuration. Values come from an optional .env
// file and SIGNUP_ prefixed environment variables, the latter winning.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	DSN          string        `mapstructure:"dsn"`
	OTelEndpoint string        `mapstructure:"otel_endpoint"`
	Debug        bool          `mapstructure:"debug"`
	ClientTTL    time.Duration `mapstructure:"client_ttl"`
	MaxClients   int           `mapstructure:"max_clients"`
	SweepEvery   time.Duration `mapstructure:"sweep_every"`

	// ProxyHeader is read for the client address only when the peer is
	// one of TrustedProxies. Both accept IPs and CIDR ranges.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	ProxyHeader    string   `mapstructure:"proxy_header"`

	Auth signup.Options `mapstructure:",squash"`
}

// LoadConfig reads .env if present, then the environment
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.SetEnvPrefix("SIGNUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := signup.DefaultOptions()
	v.SetDefault("addr", ":8572")
	v.SetDefault("metrics_addr", ":9572")
	v.SetDefault("dsn", "file:signup.db?cache=shared")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("debug", false)
	v.SetDefault("client_ttl", 24*time.Hour)
	v.SetDefault("max_clients", 10000)
	v.SetDefault("sweep_every", time.Minute)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("proxy_header", "X-Forwarded-For")

	v.SetDefault("signing_key", "")
	v.SetDefault("token_expiration", def.TokenExpiration)
	v.SetDefault("issuer", def.Issuer)
	v.SetDefault("audience", []string{})
	v.SetDefault("context_key", def.ContextKey)
	v.SetDefault("client_key", def.ClientKey)
	v.SetDefault("success_redirect", def.SuccessRedirect)
	v.SetDefault("step_timeout", def.StepTimeout)
	v.SetDefault("workflow_timeout", def.WorkflowTimeout)
	v.SetDefault("password_cost", def.PasswordCost)
	v.SetDefault("submission_rate", def.SubmissionRate)
	v.SetDefault("submission_burst", def.SubmissionBurst)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("config: SIGNUP_ADDR must be set")
	}

	if strings.TrimSpace(cfg.Auth.SigningKey) == "" {
		return nil, errors.New("config: SIGNUP_SIGNING_KEY must be set")
	}

	if cfg.Auth.PasswordCost < 4 || cfg.Auth.PasswordCost > 31 {
		return nil, errors.New("config: SIGNUP_PASSWORD_COST must be between 4 and 31")
	}

	if cfg.MaxClients <= 0 {
		return nil, errors.New("config: SIGNUP_MAX_CLIENTS must be positive")
	}

	return &cfg, nil
}
