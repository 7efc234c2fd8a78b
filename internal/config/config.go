// Package config defines the top-level configuration for the marketd
// settlement daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETD_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chains   []ChainConfig  `toml:"chains"`
	Market   MarketConfig   `toml:"market"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Identity IdentityConfig `toml:"identity"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the settlement wallet credentials. The wallet only
// submits resolution transactions; it never holds user funds.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig describes one deployment of the market contract.
type ChainConfig struct {
	Name            string   `toml:"name"`
	ChainID         int64    `toml:"chain_id"`
	RpcURL          string   `toml:"rpc_url"`
	ContractAddress string   `toml:"contract_address"`
	AssetSymbol     string   `toml:"asset_symbol"`
	AssetDecimals   int32    `toml:"asset_decimals"`
	PollInterval    duration `toml:"poll_interval"`
}

// MarketConfig holds the settlement rule parameters. Prize and creator
// shares are percentages and must sum to 100.
type MarketConfig struct {
	PrizePoolSharePercent int64    `toml:"prize_pool_share_percent"`
	CreatorSharePercent   int64    `toml:"creator_share_percent"`
	TimeBonusMax          string   `toml:"time_bonus_max"`
	LivenessWindow        duration `toml:"liveness_window"`
	FallbackAPYPercent    string   `toml:"fallback_apy_percent"`
	MinBet                string   `toml:"min_bet"`
	AllowCreatorBet       bool     `toml:"allow_creator_bet"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the
// settlement archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled       bool     `toml:"enabled"`
	Port          int      `toml:"port"`
	CORSOrigins   []string `toml:"cors_origins"`
	RatePerMinute int      `toml:"rate_per_minute"`

	// APIKey protects the mutating endpoints. Empty disables auth.
	APIKey string `toml:"api_key"`
}

// IdentityConfig controls display-name resolution for portfolio views.
type IdentityConfig struct {
	// ENSRpcURL points at a chain with an ENS deployment (usually mainnet).
	// Empty disables ENS lookups; addresses render truncated.
	ENSRpcURL string `toml:"ens_rpc_url"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chains: []ChainConfig{
			{
				Name:          "base-sepolia",
				ChainID:       84532,
				RpcURL:        "https://sepolia.base.org",
				AssetSymbol:   "USDC",
				AssetDecimals: 6,
				PollInterval:  duration{15 * time.Second},
			},
		},
		Market: MarketConfig{
			PrizePoolSharePercent: 60,
			CreatorSharePercent:   40,
			TimeBonusMax:          "0.5",
			LivenessWindow:        duration{30 * time.Second},
			FallbackAPYPercent:    "3.5",
			MinBet:                "0.000001",
			AllowCreatorBet:       false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketd-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:       true,
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			RatePerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"pool_resolved", "resolution_requested", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"mirror": true,
	"settle": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: mirror, settle, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: settlement modes submit transactions and need a key.
	needsWallet := c.Mode == "settle" || c.Mode == "full"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Chains
	if len(c.Chains) == 0 {
		errs = append(errs, "chains: at least one chain must be configured")
	}
	seen := map[string]bool{}
	for i, ch := range c.Chains {
		if ch.Name == "" {
			errs = append(errs, fmt.Sprintf("chains[%d]: name must not be empty", i))
		}
		if seen[ch.Name] {
			errs = append(errs, fmt.Sprintf("chains[%d]: duplicate chain name %q", i, ch.Name))
		}
		seen[ch.Name] = true
		if ch.RpcURL == "" {
			errs = append(errs, fmt.Sprintf("chains[%d]: rpc_url must not be empty", i))
		}
		if ch.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("chains[%d]: chain_id must be positive", i))
		}
		if ch.ContractAddress == "" {
			errs = append(errs, fmt.Sprintf("chains[%d]: contract_address must not be empty", i))
		}
		if ch.AssetDecimals < 0 || ch.AssetDecimals > 18 {
			errs = append(errs, fmt.Sprintf("chains[%d]: asset_decimals must be 0-18, got %d", i, ch.AssetDecimals))
		}
		if ch.PollInterval.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("chains[%d]: poll_interval must be > 0", i))
		}
	}

	// Market
	if c.Market.PrizePoolSharePercent+c.Market.CreatorSharePercent != 100 {
		errs = append(errs, fmt.Sprintf("market: prize_pool_share_percent + creator_share_percent must equal 100, got %d+%d",
			c.Market.PrizePoolSharePercent, c.Market.CreatorSharePercent))
	}
	if c.Market.PrizePoolSharePercent < 0 || c.Market.CreatorSharePercent < 0 {
		errs = append(errs, "market: shares must not be negative")
	}
	if c.Market.LivenessWindow.Duration <= 0 {
		errs = append(errs, "market: liveness_window must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RatePerMinute < 1 {
			errs = append(errs, "server: rate_per_minute must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
