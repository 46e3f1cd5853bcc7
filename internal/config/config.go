// Package config defines the bot configuration, its defaults and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/crypto"
	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and are then
// overridden by JITOARB_* environment variables.
type Config struct {
	Wallet         WalletConfig    `toml:"wallet"`
	Solana         SolanaConfig    `toml:"solana"`
	Jupiter        JupiterConfig   `toml:"jupiter"`
	Jito           JitoConfig      `toml:"jito"`
	Arbitrage      ArbitrageConfig `toml:"arbitrage"`
	Loop           LoopConfig      `toml:"loop"`
	Redis          RedisConfig     `toml:"redis"`
	Kafka          KafkaConfig     `toml:"kafka"`
	S3             S3Config        `toml:"s3"`
	Server         ServerConfig    `toml:"server"`
	Notify         NotifyConfig    `toml:"notify"`
	RequestTimeout duration        `toml:"request_timeout"`
	Mode           string          `toml:"mode"`
	LogLevel       string          `toml:"log_level"`
}

// WalletConfig holds the keypair sources, tried in field order.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	KeypairPath      string `toml:"keypair_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"` // file path or s3://bucket/key
	KeyPassword      string `toml:"key_password"`
}

// HasKey reports whether any key source is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.KeypairPath != "" || w.EncryptedKeyPath != ""
}

type SolanaConfig struct {
	RPCEndpoint string `toml:"rpc_endpoint"`
}

type JupiterConfig struct {
	PriceURL string `toml:"price_url"`
	SwapURL  string `toml:"swap_url"`
	APIKey   string `toml:"api_key"`
	// RateLimit caps Jupiter requests per second across every bot sharing the
	// Redis instance. Zero disables it.
	RateLimit int `toml:"rate_limit"`
}

type JitoConfig struct {
	BlockEngineURL     string   `toml:"block_engine_url"`
	AuthUUID           string   `toml:"auth_uuid"`
	TipLamports        uint64   `toml:"tip_lamports"`
	TipSelector        string   `toml:"tip_selector"`
	TipAccounts        []string `toml:"tip_accounts"`
	TipRefreshInterval duration `toml:"tip_refresh_interval"`
	StatusMaxAttempts  int      `toml:"status_max_attempts"`
	StatusBackoff      duration `toml:"status_backoff"`
	StatusMaxBackoff   duration `toml:"status_max_backoff"`
}

// AssetConfig names one SPL mint.
type AssetConfig struct {
	Symbol   string `toml:"symbol"`
	Mint     string `toml:"mint"`
	Decimals int    `toml:"decimals"`
}

// Domain converts to the domain type.
func (a AssetConfig) Domain() domain.Asset {
	return domain.Asset{Symbol: a.Symbol, Mint: a.Mint, Decimals: int32(a.Decimals)}
}

type ArbitrageConfig struct {
	Assets     []AssetConfig `toml:"assets"`
	QuoteAsset AssetConfig   `toml:"quote_asset"`
	// MinProfitThreshold is a spread fraction; 0.0025 is 0.25%.
	MinProfitThreshold float64 `toml:"min_profit_threshold"`
	// TradeAmount is in quote asset units, e.g. 50 USDC.
	TradeAmount    float64 `toml:"trade_amount"`
	MaxTradeSize   float64 `toml:"max_trade_size"`
	MaxSlippageBps int     `toml:"max_slippage_bps"`
}

// Threshold returns MinProfitThreshold as a decimal.
func (a ArbitrageConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(a.MinProfitThreshold)
}

// Amount returns TradeAmount as a decimal.
func (a ArbitrageConfig) Amount() decimal.Decimal {
	return decimal.NewFromFloat(a.TradeAmount)
}

// DomainAssets converts the watched assets.
func (a ArbitrageConfig) DomainAssets() []domain.Asset {
	out := make([]domain.Asset, len(a.Assets))
	for i, as := range a.Assets {
		out[i] = as.Domain()
	}
	return out
}

type LoopConfig struct {
	Interval               duration `toml:"interval"`
	ErrorBackoffMultiplier int      `toml:"error_backoff_multiplier"`
	ExecutionTimeout       duration `toml:"execution_timeout"`
	DedupTTL               duration `toml:"dedup_ttl"`
	LockTTL                duration `toml:"lock_ttl"`
}

// RedisConfig configures the optional Redis instance backing the lock,
// quote store, event bus and rate limiter.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	URL          string   `toml:"url"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	KeyPrefix    string   `toml:"key_prefix"`
	QuoteTTL     duration `toml:"quote_ttl"`
	EventChannel string   `toml:"event_channel"`
}

type KafkaConfig struct {
	Enabled  bool     `toml:"enabled"`
	Brokers  []string `toml:"brokers"`
	Topic    string   `toml:"topic"`
	Encoding string   `toml:"encoding"`
}

// S3Config configures the object store an s3:// encrypted key is read from.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per minute per client IP. Needs Redis.
	RateLimit int `toml:"rate_limit"`
}

type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration decodes TOML strings such as "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with the documented default values.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCEndpoint: "https://api.mainnet-beta.solana.com",
		},
		Jupiter: JupiterConfig{
			PriceURL: "https://api.jup.ag/price/v2",
			SwapURL:  "https://api.jup.ag/swap/v1",
		},
		Jito: JitoConfig{
			BlockEngineURL:     "https://mainnet.block-engine.jito.wtf",
			TipLamports:        100_000,
			TipSelector:        "random",
			TipRefreshInterval: duration{5 * time.Minute},
			StatusMaxAttempts:  10,
			StatusBackoff:      duration{500 * time.Millisecond},
			StatusMaxBackoff:   duration{5 * time.Second},
		},
		Arbitrage: ArbitrageConfig{
			Assets: []AssetConfig{
				{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
				{Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
			},
			QuoteAsset:         AssetConfig{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
			MinProfitThreshold: 0.0025,
			TradeAmount:        50,
			MaxTradeSize:       1000,
			MaxSlippageBps:     50,
		},
		Loop: LoopConfig{
			Interval:               duration{time.Second},
			ErrorBackoffMultiplier: 5,
			ExecutionTimeout:       duration{60 * time.Second},
			DedupTTL:               duration{2 * time.Minute},
			LockTTL:                duration{90 * time.Second},
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			KeyPrefix:    "jitoarb",
			QuoteTTL:     duration{time.Minute},
			EventChannel: "events",
		},
		Kafka: KafkaConfig{
			Topic:    "jitoarb.events",
			Encoding: "json",
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		RequestTimeout: duration{10 * time.Second},
		Mode:           ModeArbitrage,
		LogLevel:       "info",
	}
}

// Operating modes.
const (
	ModeArbitrage = "arbitrage"
	ModeMonitor   = "monitor"
)

var validModes = map[string]bool{
	ModeArbitrage: true,
	ModeMonitor:   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validTipSelectors = map[string]bool{
	"random":      true,
	"round_robin": true,
}

// Validate reports every problem at once. The error wraps
// domain.ErrFatalConfig.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: arbitrage, monitor)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	if c.RequestTimeout.Duration <= 0 {
		add("request_timeout must be positive")
	}

	// Wallet
	if mode == ModeArbitrage && !c.Wallet.HasKey() {
		add("wallet: a private key, keypair_path or encrypted_key_path is required in arbitrage mode")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" && c.Wallet.PrivateKey == "" && c.Wallet.KeypairPath == "" {
		add("wallet: key_password is required with encrypted_key_path")
	}
	if crypto.IsRemote(c.Wallet.EncryptedKeyPath) && c.S3.Region == "" {
		add("s3: region is required to read %s", c.Wallet.EncryptedKeyPath)
	}

	// Endpoints
	if c.Solana.RPCEndpoint == "" {
		add("solana: rpc_endpoint is required")
	}
	if c.Jupiter.PriceURL == "" || c.Jupiter.SwapURL == "" {
		add("jupiter: price_url and swap_url are required")
	}
	if c.Jupiter.RateLimit < 0 {
		add("jupiter: rate_limit must not be negative")
	}
	if c.Jito.BlockEngineURL == "" {
		add("jito: block_engine_url is required")
	}

	// Jito
	if mode == "arbitrage" && c.Jito.TipLamports == 0 {
		add("jito: tip_lamports must be positive")
	}
	if !validTipSelectors[c.Jito.TipSelector] {
		add("jito: unknown tip_selector %q (valid: random, round_robin)", c.Jito.TipSelector)
	}
	for _, a := range c.Jito.TipAccounts {
		if _, err := solana.PublicKeyFromBase58(a); err != nil {
			add("jito: invalid tip account %q", a)
		}
	}
	if c.Jito.StatusMaxAttempts <= 0 {
		add("jito: status_max_attempts must be positive")
	}

	// Arbitrage
	if len(c.Arbitrage.Assets) == 0 {
		add("arbitrage: at least one asset is required")
	}
	seen := make(map[string]bool)
	for _, a := range c.Arbitrage.Assets {
		validateAsset(a, "arbitrage.assets", add)
		if seen[a.Mint] {
			add("arbitrage.assets: duplicate mint %s", a.Mint)
		}
		seen[a.Mint] = true
		if a.Mint == c.Arbitrage.QuoteAsset.Mint {
			add("arbitrage.assets: %s is also the quote asset", a.Mint)
		}
	}
	validateAsset(c.Arbitrage.QuoteAsset, "arbitrage.quote_asset", add)
	if c.Arbitrage.MinProfitThreshold < 0 {
		add("arbitrage: min_profit_threshold must not be negative")
	}
	if c.Arbitrage.TradeAmount <= 0 {
		add("arbitrage: trade_amount must be positive")
	} else if _, err := c.Arbitrage.QuoteAsset.Domain().ToBaseUnits(c.Arbitrage.Amount()); err != nil {
		add("arbitrage: trade_amount: %v", err)
	}
	if c.Arbitrage.MaxTradeSize > 0 && c.Arbitrage.TradeAmount > c.Arbitrage.MaxTradeSize {
		add("arbitrage: trade_amount %.6g exceeds max_trade_size %.6g", c.Arbitrage.TradeAmount, c.Arbitrage.MaxTradeSize)
	}
	if c.Arbitrage.MaxSlippageBps < 0 || c.Arbitrage.MaxSlippageBps > 10_000 {
		add("arbitrage: max_slippage_bps must be within [0, 10000]")
	}

	// Loop
	if c.Loop.Interval.Duration <= 0 {
		add("loop: interval must be positive")
	}
	if c.Loop.ErrorBackoffMultiplier < 1 {
		add("loop: error_backoff_multiplier must be at least 1")
	}
	if c.Loop.ExecutionTimeout.Duration <= 0 {
		add("loop: execution_timeout must be positive")
	}

	// Optional integrations
	if c.Redis.Enabled && c.Redis.URL == "" && c.Redis.Addr == "" {
		add("redis: url or addr is required when enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			add("kafka: brokers are required when enabled")
		}
		if c.Kafka.Topic == "" {
			add("kafka: topic is required when enabled")
		}
		if c.Kafka.Encoding != "json" && c.Kafka.Encoding != "protobuf" {
			add("kafka: unknown encoding %q (valid: json, protobuf)", c.Kafka.Encoding)
		}
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		add("server: addr is required when enabled")
	}
	if c.Server.RateLimit > 0 && !c.Redis.Enabled {
		add("server: rate_limit needs redis.enabled")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %d problem(s): %s", domain.ErrFatalConfig, len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func validateAsset(a AssetConfig, field string, add func(string, ...any)) {
	if _, err := solana.PublicKeyFromBase58(a.Mint); err != nil {
		add("%s: invalid mint %q", field, a.Mint)
	}
	if a.Decimals < 0 || a.Decimals > 18 {
		add("%s: decimals %d out of range for %s", field, a.Decimals, a.Mint)
	}
}
