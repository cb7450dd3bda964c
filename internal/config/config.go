package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds infrastructure-level configuration.
// Owner-scoped settings (policies, guardians) live in the database.
type Config struct {
	// Database
	PostgresDSN string

	// Shard sealing
	SealerProvider     string // local, aws-kms or vault
	SealerLocalKeyHex  string
	SealerAWSKeyID     string
	SealerAWSRegion    string
	SealerVaultAddress string
	SealerVaultToken   string
	SealerVaultKey     string

	// Chain RPC
	EVMRPCURL string

	// Fee estimation
	PriceCacheTTL time.Duration

	// Server
	Port             int
	RateLimitRPS     int
	RateLimitBurst   int
	RateLimitEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		SealerProvider:     getEnv("SEALER_PROVIDER", "local"),
		SealerLocalKeyHex:  getEnv("SEALER_LOCAL_KEY", ""),
		SealerAWSKeyID:     getEnv("SEALER_AWS_KMS_KEY_ID", ""),
		SealerAWSRegion:    getEnv("SEALER_AWS_REGION", ""),
		SealerVaultAddress: getEnv("SEALER_VAULT_ADDR", ""),
		SealerVaultToken:   getEnv("SEALER_VAULT_TOKEN", ""),
		SealerVaultKey:     getEnv("SEALER_VAULT_TRANSIT_KEY", ""),
		EVMRPCURL:          getEnv("EVM_RPC_URL", ""),
		PriceCacheTTL:      getEnvDuration("PRICE_CACHE_TTL", 5*time.Minute),
		Port:               getEnvInt("PORT", 8080),
		RateLimitRPS:       getEnvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	switch c.SealerProvider {
	case "local":
		if c.SealerLocalKeyHex == "" {
			return fmt.Errorf("SEALER_LOCAL_KEY is required when SEALER_PROVIDER is 'local'")
		}
	case "aws-kms":
		if c.SealerAWSKeyID == "" || c.SealerAWSRegion == "" {
			return fmt.Errorf("SEALER_AWS_KMS_KEY_ID and SEALER_AWS_REGION are required when SEALER_PROVIDER is 'aws-kms'")
		}
	case "vault":
		if c.SealerVaultAddress == "" || c.SealerVaultToken == "" || c.SealerVaultKey == "" {
			return fmt.Errorf("SEALER_VAULT_ADDR, SEALER_VAULT_TOKEN and SEALER_VAULT_TRANSIT_KEY are required when SEALER_PROVIDER is 'vault'")
		}
	default:
		return fmt.Errorf("SEALER_PROVIDER must be 'local', 'aws-kms' or 'vault', got: %s", c.SealerProvider)
	}

	if c.PriceCacheTTL <= 0 {
		return fmt.Errorf("PRICE_CACHE_TTL must be positive")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
