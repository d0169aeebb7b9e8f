package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

const (
	DataBackendHasura   = "hasura"
	DataBackendPostgres = "postgres"
)

// Config holds all configuration for the payment relay.
type Config struct {
	ServerPort  int    `mapstructure:"SERVER_PORT"`
	MetricsPort int    `mapstructure:"METRICS_PORT"`
	GRPCPort    int    `mapstructure:"GRPC_PORT"` // 0 disables the gRPC health server
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogFormat   string `mapstructure:"LOG_FORMAT"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeAPIURL        string `mapstructure:"STRIPE_API_URL"` // empty uses the public Stripe API

	HasuraEndpoint    string `mapstructure:"HASURA_ENDPOINT"`
	HasuraAdminSecret string `mapstructure:"HASURA_ADMIN_SECRET"`

	FrontendURL        string `mapstructure:"FRONTEND_URL"`
	ActionSecret       string `mapstructure:"ACTION_SECRET"`
	ActionAuthDisabled bool   `mapstructure:"ACTION_AUTH_DISABLED"`

	PaymentCurrency   string `mapstructure:"PAYMENT_CURRENCY"`
	ConversionRateKey string `mapstructure:"CONVERSION_RATE_KEY"`

	DataBackend string `mapstructure:"DATA_BACKEND"`
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	NATSUrl              string `mapstructure:"NATS_URL"`
	WebhookArchiveBucket string `mapstructure:"WEBHOOK_ARCHIVE_BUCKET"`
	AWSRegion            string `mapstructure:"AWS_REGION"`
}

// keys read from both APP_<KEY> and the bare <KEY> used by existing deployments.
var unprefixedKeys = []string{
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"HASURA_ENDPOINT",
	"HASURA_ADMIN_SECRET",
	"FRONTEND_URL",
	"ACTION_SECRET",
	"AWS_REGION",
}

// Load reads configs/config.defaults.yaml when present, then environment variables.
// serviceName is used in log output only.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 5001)
	v.SetDefault("METRICS_PORT", 9095)
	v.SetDefault("GRPC_PORT", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("STRIPE_API_URL", "")
	v.SetDefault("HASURA_ADMIN_SECRET", "")
	v.SetDefault("ACTION_AUTH_DISABLED", false)
	v.SetDefault("PAYMENT_CURRENCY", "hkd")
	v.SetDefault("CONVERSION_RATE_KEY", "credit_conversion_rate")
	v.SetDefault("DATA_BACKEND", DataBackendHasura)
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("WEBHOOK_ARCHIVE_BUCKET", "")

	for _, key := range unprefixedKeys {
		if err := v.BindEnv(key, "APP_"+key, key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("%s: configuration file 'config.defaults.yaml' not found; using defaults and environment variables.", serviceName)
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require(c.StripeSecretKey, "STRIPE_SECRET_KEY")
	require(c.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")
	require(c.FrontendURL, "FRONTEND_URL")
	require(c.PaymentCurrency, "PAYMENT_CURRENCY")
	require(c.ConversionRateKey, "CONVERSION_RATE_KEY")

	switch c.DataBackend {
	case DataBackendHasura:
		require(c.HasuraEndpoint, "HASURA_ENDPOINT")
	case DataBackendPostgres:
		require(c.PostgresDSN, "POSTGRES_DSN")
	default:
		errs = append(errs, fmt.Errorf("DATA_BACKEND must be %q or %q, got %q", DataBackendHasura, DataBackendPostgres, c.DataBackend))
	}

	if !c.ActionAuthDisabled {
		require(c.ActionSecret, "ACTION_SECRET (or set ACTION_AUTH_DISABLED=true)")
	}
	if c.WebhookArchiveBucket != "" {
		require(c.AWSRegion, "AWS_REGION")
	}
	if c.ServerPort <= 0 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be positive, got %d", c.ServerPort))
	}
	return errors.Join(errs...)
}

// Redacted returns the effective settings with secrets masked, for display.
func (c *Config) Redacted() map[string]any {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	return map[string]any{
		"SERVER_PORT":            c.ServerPort,
		"METRICS_PORT":           c.MetricsPort,
		"GRPC_PORT":              c.GRPCPort,
		"LOG_LEVEL":              c.LogLevel,
		"LOG_FORMAT":             c.LogFormat,
		"STRIPE_SECRET_KEY":      mask(c.StripeSecretKey),
		"STRIPE_WEBHOOK_SECRET":  mask(c.StripeWebhookSecret),
		"STRIPE_API_URL":         c.StripeAPIURL,
		"HASURA_ENDPOINT":        c.HasuraEndpoint,
		"HASURA_ADMIN_SECRET":    mask(c.HasuraAdminSecret),
		"FRONTEND_URL":           c.FrontendURL,
		"ACTION_SECRET":          mask(c.ActionSecret),
		"ACTION_AUTH_DISABLED":   c.ActionAuthDisabled,
		"PAYMENT_CURRENCY":       c.PaymentCurrency,
		"CONVERSION_RATE_KEY":    c.ConversionRateKey,
		"DATA_BACKEND":           c.DataBackend,
		"POSTGRES_DSN":           mask(c.PostgresDSN),
		"NATS_URL":               c.NATSUrl,
		"WEBHOOK_ARCHIVE_BUCKET": c.WebhookArchiveBucket,
		"AWS_REGION":             c.AWSRegion,
	}
}
