package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	AWS         AWSConfig         `yaml:"aws"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Events      EventsConfig      `yaml:"events"`
	Unsubscribe UnsubscribeConfig `yaml:"unsubscribe"`
	Cleanup     CleanupConfig     `yaml:"cleanup"`
	Sweeper     SweeperConfig     `yaml:"sweeper"`
	Redis       RedisConfig       `yaml:"redis"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
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

// AWSConfig holds shared AWS client configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Profile   string `yaml:"profile"` // Empty string uses the default credential chain (IAM role on ECS)
}

// GetProfile returns the AWS profile, with environment variable override
func (c AWSConfig) GetProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "" // Running on ECS or Lambda, use IAM role
	}
	return c.Profile
}

// LedgerConfig holds the DynamoDB tenant ledger configuration
type LedgerConfig struct {
	TableName string `yaml:"table_name"`
}

// EventsConfig holds messaging bus configuration
type EventsConfig struct {
	BusName string `yaml:"bus_name"`
	Source  string `yaml:"source"`
}

// UnsubscribeConfig holds unsubscribe link and token settings
type UnsubscribeConfig struct {
	// TokenKeyHex is the hex-encoded 32-byte AES key for unsubscribe tokens
	TokenKeyHex string `yaml:"token_key_hex"`
}

// CleanupConfig holds persistent-bounce cleanup settings
type CleanupConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxRetries  int `yaml:"max_retries"`
}

// SweeperConfig holds reconciliation sweep settings
type SweeperConfig struct {
	StalenessDays int    `yaml:"staleness_days"`
	ReportBucket  string `yaml:"report_bucket"`
}

// RedisConfig holds redis cache configuration
type RedisConfig struct {
	URL             string `yaml:"url"`
	TenantTTLSecond int    `yaml:"tenant_ttl_seconds"`
	Enabled         bool   `yaml:"enabled"`
}

// TenantTTL returns the tenant cache TTL as a duration
func (c RedisConfig) TenantTTL() time.Duration {
	return time.Duration(c.TenantTTLSecond) * time.Second
}

// Load reads and parses the configuration file. A missing file is not an
// error; defaults plus environment variables carry containerized deploys.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.Ledger.TableName == "" {
		cfg.Ledger.TableName = "newsletter-data"
	}
	if cfg.Events.Source == "" {
		cfg.Events.Source = "newsletter-service"
	}
	if cfg.Cleanup.Concurrency == 0 {
		cfg.Cleanup.Concurrency = 5
	}
	if cfg.Cleanup.MaxRetries == 0 {
		cfg.Cleanup.MaxRetries = 3
	}
	if cfg.Sweeper.StalenessDays == 0 {
		cfg.Sweeper.StalenessDays = 30
	}
	if cfg.Redis.TenantTTLSecond == 0 {
		cfg.Redis.TenantTTLSecond = 300
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWS.Region = region
	}
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		cfg.AWS.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.AWS.SecretKey = secretKey
	}
	if table := os.Getenv("LEDGER_TABLE_NAME"); table != "" {
		cfg.Ledger.TableName = table
	}
	if bus := os.Getenv("EVENT_BUS_NAME"); bus != "" {
		cfg.Events.BusName = bus
	}
	if key := os.Getenv("UNSUBSCRIBE_TOKEN_KEY"); key != "" {
		cfg.Unsubscribe.TokenKeyHex = key
	}
	if bucket := os.Getenv("SWEEP_REPORT_BUCKET"); bucket != "" {
		cfg.Sweeper.ReportBucket = bucket
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
		cfg.Redis.Enabled = true
	}
	if days := os.Getenv("SWEEP_STALENESS_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			cfg.Sweeper.StalenessDays = n
		}
	}

	return cfg, nil
}
