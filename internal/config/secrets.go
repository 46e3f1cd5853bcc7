package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg with secrets replaced by "***", for
// logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Jupiter.APIKey)
	redact(&out.Jito.AuthUUID)
	redact(&out.Redis.Password)
	out.Redis.URL = redactURL(cfg.Redis.URL)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// The RPC endpoint often carries a provider key in its query string.
	out.Solana.RPCEndpoint = redactURL(cfg.Solana.RPCEndpoint)

	// Slices are copied so the redacted value shares nothing with cfg.
	out.Arbitrage.Assets = slices.Clone(cfg.Arbitrage.Assets)
	out.Jito.TipAccounts = slices.Clone(cfg.Jito.TipAccounts)
	out.Kafka.Brokers = slices.Clone(cfg.Kafka.Brokers)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURL masks the password and query string of a URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
	}
	if u.RawQuery != "" {
		u.RawQuery = redacted
	}
	return u.String()
}
