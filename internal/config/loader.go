package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults, loads .env if present, and applies environment overrides. The
// result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides applies the short variable names the bot has always read,
// then the JITOARB_* names, so the latter win when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Compatibility aliases ──
	setStr(&cfg.Solana.RPCEndpoint, "RPC_ENDPOINT")
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")
	setFloat64(&cfg.Arbitrage.MinProfitThreshold, "MIN_PROFIT_THRESHOLD")
	setFloat64(&cfg.Arbitrage.MaxTradeSize, "MAX_TRADE_SIZE")
	setUint64(&cfg.Jito.TipLamports, "JITO_TIP_LAMPORTS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "JITOARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeypairPath, "JITOARB_WALLET_KEYPAIR_PATH")
	setStr(&cfg.Wallet.EncryptedKeyPath, "JITOARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "JITOARB_WALLET_KEY_PASSWORD")

	// ── Solana / Jupiter / Jito ──
	setStr(&cfg.Solana.RPCEndpoint, "JITOARB_SOLANA_RPC_ENDPOINT")
	setStr(&cfg.Jupiter.PriceURL, "JITOARB_JUPITER_PRICE_URL")
	setStr(&cfg.Jupiter.SwapURL, "JITOARB_JUPITER_SWAP_URL")
	setStr(&cfg.Jupiter.APIKey, "JITOARB_JUPITER_API_KEY")
	setInt(&cfg.Jupiter.RateLimit, "JITOARB_JUPITER_RATE_LIMIT")
	setStr(&cfg.Jito.BlockEngineURL, "JITOARB_JITO_BLOCK_ENGINE_URL")
	setStr(&cfg.Jito.AuthUUID, "JITOARB_JITO_AUTH_UUID")
	setUint64(&cfg.Jito.TipLamports, "JITOARB_JITO_TIP_LAMPORTS")
	setStr(&cfg.Jito.TipSelector, "JITOARB_JITO_TIP_SELECTOR")
	setStringSlice(&cfg.Jito.TipAccounts, "JITOARB_JITO_TIP_ACCOUNTS")
	setDuration(&cfg.Jito.TipRefreshInterval, "JITOARB_JITO_TIP_REFRESH_INTERVAL")
	setInt(&cfg.Jito.StatusMaxAttempts, "JITOARB_JITO_STATUS_MAX_ATTEMPTS")
	setDuration(&cfg.Jito.StatusBackoff, "JITOARB_JITO_STATUS_BACKOFF")
	setDuration(&cfg.Jito.StatusMaxBackoff, "JITOARB_JITO_STATUS_MAX_BACKOFF")

	// ── Arbitrage ──
	setAssets(&cfg.Arbitrage.Assets, "JITOARB_ARBITRAGE_ASSETS")
	setAsset(&cfg.Arbitrage.QuoteAsset, "JITOARB_ARBITRAGE_QUOTE_ASSET")
	setFloat64(&cfg.Arbitrage.MinProfitThreshold, "JITOARB_ARBITRAGE_MIN_PROFIT_THRESHOLD")
	setFloat64(&cfg.Arbitrage.TradeAmount, "JITOARB_ARBITRAGE_TRADE_AMOUNT")
	setFloat64(&cfg.Arbitrage.MaxTradeSize, "JITOARB_ARBITRAGE_MAX_TRADE_SIZE")
	setInt(&cfg.Arbitrage.MaxSlippageBps, "JITOARB_ARBITRAGE_MAX_SLIPPAGE_BPS")

	// ── Loop ──
	setDuration(&cfg.Loop.Interval, "JITOARB_LOOP_INTERVAL")
	setInt(&cfg.Loop.ErrorBackoffMultiplier, "JITOARB_LOOP_ERROR_BACKOFF_MULTIPLIER")
	setDuration(&cfg.Loop.ExecutionTimeout, "JITOARB_LOOP_EXECUTION_TIMEOUT")
	setDuration(&cfg.Loop.DedupTTL, "JITOARB_LOOP_DEDUP_TTL")
	setDuration(&cfg.Loop.LockTTL, "JITOARB_LOOP_LOCK_TTL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "JITOARB_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "JITOARB_REDIS_URL")
	setStr(&cfg.Redis.Addr, "JITOARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "JITOARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "JITOARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "JITOARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "JITOARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "JITOARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "JITOARB_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.QuoteTTL, "JITOARB_REDIS_QUOTE_TTL")
	setStr(&cfg.Redis.EventChannel, "JITOARB_REDIS_EVENT_CHANNEL")

	// ── Kafka ──
	setBool(&cfg.Kafka.Enabled, "JITOARB_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "JITOARB_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "JITOARB_KAFKA_TOPIC")
	setStr(&cfg.Kafka.Encoding, "JITOARB_KAFKA_ENCODING")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "JITOARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "JITOARB_S3_REGION")
	setStr(&cfg.S3.AccessKey, "JITOARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "JITOARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "JITOARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "JITOARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "JITOARB_SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "JITOARB_SERVER_ADDR")
	setStringSlice(&cfg.Server.CORSOrigins, "JITOARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "JITOARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "JITOARB_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "JITOARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "JITOARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "JITOARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "JITOARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setDuration(&cfg.RequestTimeout, "JITOARB_REQUEST_TIMEOUT")
	setStr(&cfg.Mode, "JITOARB_MODE")
	setStr(&cfg.LogLevel, "JITOARB_LOG_LEVEL")
}

// Typed env-var helpers. Each mutates the target only when the variable is
// set, non-empty and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		if cleaned := splitList(v); len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setAsset reads SYMBOL:MINT:DECIMALS.
func setAsset(dst *AssetConfig, key string) {
	if v := os.Getenv(key); v != "" {
		if a, ok := parseAsset(v); ok {
			*dst = a
		}
	}
}

// setAssets reads a comma separated list of SYMBOL:MINT:DECIMALS. The whole
// list is ignored if any entry is malformed.
func setAssets(dst *[]AssetConfig, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []AssetConfig
	for _, part := range splitList(v) {
		a, ok := parseAsset(part)
		if !ok {
			return
		}
		out = append(out, a)
	}
	if len(out) > 0 {
		*dst = out
	}
}

func parseAsset(s string) (AssetConfig, bool) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 3 {
		return AssetConfig{}, false
	}
	dec, err := strconv.Atoi(fields[2])
	if err != nil {
		return AssetConfig{}, false
	}
	return AssetConfig{Symbol: fields[0], Mint: fields[1], Decimals: dec}, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
