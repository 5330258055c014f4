package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the fulfillment service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Redis       RedisConfig       `yaml:"redis"`
	SendGrid    SendGridConfig    `yaml:"sendgrid"`
	Decathlon   DecathlonConfig   `yaml:"decathlon"`
	Fnac        FnacConfig        `yaml:"fnac"`
	Fulfillment FulfillmentConfig `yaml:"fulfillment"`
	Leads       LeadsConfig       `yaml:"leads"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// StorageConfig selects the tabular backend for key pools, ingestion
// ledgers and the lead sheet. "local" keeps CSV/JSON files under
// LocalPath; "s3" keeps the same objects in an S3 bucket.
type StorageConfig struct {
	Type       string `yaml:"type"`
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses the default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig enables Redis-backed pool locking when several replicas
// share one pool store. Disabled means in-process locking only.
type RedisConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the lock TTL as a duration.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// SendGridConfig holds SendGrid Mail Send API configuration.
type SendGridConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c SendGridConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DecathlonConfig holds the Decathlon marketplace API configuration.
type DecathlonConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	ShopID         string `yaml:"shop_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LookbackDays   int    `yaml:"lookback_days"`
}

// Timeout returns the configured timeout as a duration.
func (c DecathlonConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FnacConfig holds the Fnac marketplace API configuration. Client
// credentials are exchanged for short-lived tokens at TokenURL.
type FnacConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	TokenURL       string `yaml:"token_url"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	ShopID         string `yaml:"shop_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LookbackDays   int    `yaml:"lookback_days"`
}

// Timeout returns the configured timeout as a duration.
func (c FnacConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RouteConfig maps one product code (or wildcard pattern) to a key pool
// and a notification template. Exactly one of Sku/Pattern is set.
type RouteConfig struct {
	Sku      string `yaml:"sku"`
	Pattern  string `yaml:"pattern"`
	Pool     string `yaml:"pool"`
	Template string `yaml:"template"`
}

// FulfillmentConfig holds the static routing and business-rule tables.
// Loaded once at startup and treated as immutable afterward.
type FulfillmentConfig struct {
	DefaultLanguage string        `yaml:"default_language"`
	TemplateDir     string        `yaml:"template_dir"`
	Routes          []RouteConfig `yaml:"routes"`
	// Orders containing any bundle SKU skip the companion subscription
	// SKUs in the same order (the bundle already includes them).
	BundleSkus          []string `yaml:"bundle_skus"`
	SuppressedWithBundle []string `yaml:"suppressed_with_bundle"`
}

// LeadsConfig holds the investor lead-capture settings. AllowedOrigin is
// the single browser origin permitted by CORS.
type LeadsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Sheet         string `yaml:"sheet"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 30
	}
	if cfg.SendGrid.BaseURL == "" {
		cfg.SendGrid.BaseURL = "https://api.sendgrid.com/v3"
	}
	if cfg.SendGrid.TimeoutSeconds == 0 {
		cfg.SendGrid.TimeoutSeconds = 30
	}
	if cfg.SendGrid.FromEmail == "" {
		cfg.SendGrid.FromEmail = "help@footbar.com"
	}
	if cfg.Decathlon.TimeoutSeconds == 0 {
		cfg.Decathlon.TimeoutSeconds = 30
	}
	if cfg.Decathlon.LookbackDays == 0 {
		cfg.Decathlon.LookbackDays = 7
	}
	if cfg.Fnac.TimeoutSeconds == 0 {
		cfg.Fnac.TimeoutSeconds = 30
	}
	if cfg.Fnac.LookbackDays == 0 {
		cfg.Fnac.LookbackDays = 7
	}
	if cfg.Fulfillment.DefaultLanguage == "" {
		cfg.Fulfillment.DefaultLanguage = "fr"
	}
	if cfg.Fulfillment.TemplateDir == "" {
		cfg.Fulfillment.TemplateDir = "templates"
	}
	if cfg.Leads.Sheet == "" {
		cfg.Leads.Sheet = "leads"
	}

	for i, r := range cfg.Fulfillment.Routes {
		if r.Sku == "" && r.Pattern == "" {
			return nil, fmt.Errorf("route %d: sku or pattern required", i)
		}
		if r.Pool == "" {
			return nil, fmt.Errorf("route %d: pool required", i)
		}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.SendGrid.APIKey = v
	}
	if v := os.Getenv("SENDGRID_FROM_EMAIL"); v != "" {
		cfg.SendGrid.FromEmail = v
	}
	if v := os.Getenv("DECATHLON_API_KEY"); v != "" {
		cfg.Decathlon.APIKey = v
	}
	if v := os.Getenv("DECATHLON_BASE_URL"); v != "" {
		cfg.Decathlon.BaseURL = v
	}
	if v := os.Getenv("FNAC_CLIENT_ID"); v != "" {
		cfg.Fnac.ClientID = v
	}
	if v := os.Getenv("FNAC_CLIENT_SECRET"); v != "" {
		cfg.Fnac.ClientSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
		cfg.Storage.Type = "s3"
	}

	return cfg, nil
}
