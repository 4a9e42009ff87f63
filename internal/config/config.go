package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pet-subscription-sync/internal/domain"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TierConfig struct {
	BasicMax   int64 `yaml:"basic_max"`   // inclusive ceiling, minor units
	PremiumMax int64 `yaml:"premium_max"` // inclusive ceiling, minor units
}

type AddonConfig struct {
	MetadataKey   string `yaml:"metadata_key"`
	MetadataValue string `yaml:"metadata_value"`
	UnitsKey      string `yaml:"units_key"`
}

type BillingConfig struct {
	Provider        string        `yaml:"provider"` // stripe | noop
	SecretKey       string        `yaml:"secret_key"`
	WebhookSecret   string        `yaml:"webhook_secret"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	Tiers           TierConfig    `yaml:"tiers"`
	Addon           AddonConfig   `yaml:"addon"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type ReconcileConfig struct {
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Limit    int           `yaml:"limit"`
}

type AlertConfig struct {
	MailjetPublicKey  string `yaml:"mailjet_public_key"`
	MailjetPrivateKey string `yaml:"mailjet_private_key"`
	Sender            string `yaml:"sender"`
	Recipient         string `yaml:"recipient"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Billing   BillingConfig   `yaml:"billing"`
	Auth      AuthConfig      `yaml:"auth"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Alert     AlertConfig     `yaml:"alert"`

	Runtime RuntimeConfig `yaml:"-"`
}

// envOverrides maps environment variables onto secret-bearing fields. They
// win over the YAML file so secrets never have to be committed.
func envOverrides(cfg *Config) map[string]*string {
	return map[string]*string{
		"DATABASE_URL":          &cfg.Database.URL,
		"REDIS_URL":             &cfg.Redis.URL,
		"REDIS_PASSWORD":        &cfg.Redis.Password,
		"STRIPE_SECRET_KEY":     &cfg.Billing.SecretKey,
		"STRIPE_WEBHOOK_SECRET": &cfg.Billing.WebhookSecret,
		"AUTH_JWT_SECRET":       &cfg.Auth.JWTSecret,
		"MAILJET_PUBLIC_KEY":    &cfg.Alert.MailjetPublicKey,
		"MAILJET_PRIVATE_KEY":   &cfg.Alert.MailjetPrivateKey,
	}
}

// LoadConfig reads the YAML file at path, applies .env and environment
// overrides, fills defaults and validates required settings.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !(errors.Is(err, os.ErrNotExist) && dev) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional; real environment variables take precedence over it.
	dotenv, _ := godotenv.Read()
	for key, dst := range envOverrides(&cfg) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		} else if v := strings.TrimSpace(dotenv[key]); v != "" {
			*dst = v
		}
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Billing.Provider == "" {
		cfg.Billing.Provider = "stripe"
	}
	if cfg.Billing.ProviderTimeout <= 0 {
		cfg.Billing.ProviderTimeout = 5 * time.Second
	}
	if cfg.Billing.Tiers.BasicMax <= 0 {
		cfg.Billing.Tiers.BasicMax = 999
	}
	if cfg.Billing.Tiers.PremiumMax <= 0 {
		cfg.Billing.Tiers.PremiumMax = 1999
	}
	if cfg.Billing.Addon.MetadataKey == "" {
		cfg.Billing.Addon.MetadataKey = "addon_type"
	}
	if cfg.Billing.Addon.MetadataValue == "" {
		cfg.Billing.Addon.MetadataValue = "additional_pet"
	}
	if cfg.Billing.Addon.UnitsKey == "" {
		cfg.Billing.Addon.UnitsKey = "units_per_item"
	}
	if cfg.Reconcile.RateLimit <= 0 {
		cfg.Reconcile.RateLimit = 10
	}
	if cfg.Reconcile.RateWindow <= 0 {
		cfg.Reconcile.RateWindow = time.Minute
	}
	if cfg.Monitor.Interval <= 0 {
		cfg.Monitor.Interval = 15 * time.Minute
	}
	if cfg.Monitor.Limit <= 0 {
		cfg.Monitor.Limit = 500
	}
}

// Validate reports the first missing required setting. The noop provider is
// only accepted in dev mode.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("%w: database.url", domain.ErrMissingConfig)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret", domain.ErrMissingConfig)
	}
	if c.Billing.Tiers.PremiumMax < c.Billing.Tiers.BasicMax {
		return fmt.Errorf("%w: billing.tiers.premium_max must be >= basic_max", domain.ErrInvalidArgument)
	}
	switch strings.ToLower(c.Billing.Provider) {
	case "stripe":
		if c.Billing.SecretKey == "" {
			return fmt.Errorf("%w: billing.secret_key", domain.ErrMissingConfig)
		}
		if c.Billing.WebhookSecret == "" {
			return fmt.Errorf("%w: billing.webhook_secret", domain.ErrMissingConfig)
		}
	case "noop":
		if !c.Runtime.Dev {
			return fmt.Errorf("%w: billing.provider=noop requires dev mode", domain.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown billing.provider %q", domain.ErrInvalidArgument, c.Billing.Provider)
	}
	return nil
}
