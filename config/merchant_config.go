package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MerchantConfig holds all Merchant Service configuration.
type MerchantConfig struct {
	Server   ServerConfig     `mapstructure:"server"`
	Database DatabaseConfig   `mapstructure:"database"`
	Redis    RedisConfig      `mapstructure:"redis"`
	Log      LogConfig        `mapstructure:"log"`
	Merchant MerchantIdentity `mapstructure:"merchant"`
	StepUp   StepUpConfig     `mapstructure:"stepup"`
}

// MerchantIdentity identifies this merchant in the discovery profile, §6.
type MerchantIdentity struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// StepUpConfig holds the §4.2 risk-adjudication policy knobs.
type StepUpConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ThresholdSmall  float64       `mapstructure:"threshold_small"`
	ThresholdLarge  float64       `mapstructure:"threshold_large"`
	AmountThreshold float64       `mapstructure:"amount_threshold"`
	DemoMode        bool          `mapstructure:"demo_mode"`
	ChallengeTTL    time.Duration `mapstructure:"challenge_ttl"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	SigningEndpoint string        `mapstructure:"signing_endpoint"` // optional DID/VC signer, external collaborator
}

// LoadMerchant reads Merchant Service configuration from file and
// environment variables. Environment variables override file values.
// Prefix: UCPM_ (UCP Merchant). Nested keys use underscore:
// UCPM_DATABASE_HOST, UCPM_STEPUP_ENABLED, etc.
func LoadMerchant(path string) (*MerchantConfig, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8180)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ucp_merchant")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("merchant.id", "merchant-demo")
	v.SetDefault("merchant.name", "UCP Demo Merchant")
	v.SetDefault("merchant.url", "http://localhost:8180")
	v.SetDefault("stepup.enabled", true)
	v.SetDefault("stepup.threshold_small", 0.10)
	v.SetDefault("stepup.threshold_large", 0.30)
	v.SetDefault("stepup.amount_threshold", 100.00)
	v.SetDefault("stepup.demo_mode", true)
	v.SetDefault("stepup.challenge_ttl", "5m")
	v.SetDefault("stepup.max_attempts", 3)
	v.SetDefault("stepup.signing_endpoint", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("merchant")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("UCPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading merchant config file: %w", err)
		}
	}

	var cfg MerchantConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling merchant config: %w", err)
	}

	return &cfg, nil
}
