package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ShopperConfig holds all Shopper Service configuration.
type ShopperConfig struct {
	Server       ServerConfig      `mapstructure:"server"`
	Database     DatabaseConfig    `mapstructure:"database"`
	Log          LogConfig         `mapstructure:"log"`
	Merchant     MerchantEndpoint  `mapstructure:"merchant"`
	Encryption   EncryptionConfig  `mapstructure:"encryption"`
	Tokenization TokenizationConfig `mapstructure:"tokenization"`
}

// MerchantEndpoint is where the Shopper's UCP client and discovery
// consumer reach the Merchant Service.
type MerchantEndpoint struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EncryptionConfig holds the symmetric key used to encrypt PANs at rest,
// loaded once at startup and held in memory per §5.
type EncryptionConfig struct {
	KeyHex string `mapstructure:"key_hex"` // hex-encoded key material, at least 16 bytes; the AES-256 key is derived from it via HKDF
}

// TokenizationConfig configures the optional Network Tokenization Adapter.
type TokenizationConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Sandbox        bool   `mapstructure:"sandbox"`
	BaseURL        string `mapstructure:"base_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
}

// LoadShopper reads Shopper Service configuration from file and
// environment variables. Prefix: UCPS_ (UCP Shopper).
func LoadShopper(path string) (*ShopperConfig, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8280)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ucp_shopper")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("merchant.base_url", "http://localhost:8180")
	v.SetDefault("merchant.timeout", "30s")
	v.SetDefault("encryption.key_hex", "")
	v.SetDefault("tokenization.enabled", false)
	v.SetDefault("tokenization.sandbox", true)
	v.SetDefault("tokenization.base_url", "")
	v.SetDefault("tokenization.consumer_key", "")
	v.SetDefault("tokenization.private_key_path", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shopper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("UCPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading shopper config file: %w", err)
		}
	}

	var cfg ShopperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling shopper config: %w", err)
	}

	return &cfg, nil
}
