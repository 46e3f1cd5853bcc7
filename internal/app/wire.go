package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/jitoarb/internal/blob/s3"
	"github.com/alanyoungcy/jitoarb/internal/bundle"
	"github.com/alanyoungcy/jitoarb/internal/cache/redis"
	"github.com/alanyoungcy/jitoarb/internal/config"
	"github.com/alanyoungcy/jitoarb/internal/crypto"
	"github.com/alanyoungcy/jitoarb/internal/domain"
	"github.com/alanyoungcy/jitoarb/internal/notify"
	"github.com/alanyoungcy/jitoarb/internal/platform/jito"
	"github.com/alanyoungcy/jitoarb/internal/platform/jupiter"
	"github.com/alanyoungcy/jitoarb/internal/platform/solanarpc"
	"github.com/alanyoungcy/jitoarb/internal/queue"
)

// Dependencies bundles everything the modes need. Interface fields are left
// nil when the backing integration is disabled.
type Dependencies struct {
	// Wallet is nil in monitor mode when no key is configured.
	Wallet *crypto.Wallet

	RPC    *solanarpc.Client
	Prices *jupiter.PriceClient
	Swaps  *jupiter.SwapClient
	Jito   *jito.Client
	Tips   *bundle.Pool

	// Redis-backed, optional.
	Redis       *redis.Client
	LockManager domain.LockManager
	QuoteStore  domain.QuoteStore
	SignalBus   domain.SignalBus
	APILimiter  *redis.RateLimiter

	// Event sinks, optional.
	Kafka    *queue.Publisher
	Notifier *notify.Notifier
}

// Wire constructs the dependencies and returns a cleanup function that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}
	timeout := cfg.RequestTimeout.Duration

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Redis = rc
		deps.LockManager = redis.NewLockManager(rc)
		deps.QuoteStore = redis.NewQuoteStore(rc, cfg.Redis.QuoteTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(rc)
		if cfg.Server.RateLimit > 0 {
			deps.APILimiter = redis.NewRateLimiter(rc, cfg.Server.RateLimit, time.Minute)
		}
	}

	// --- Wallet ---
	if cfg.Wallet.HasKey() {
		keyCfg := crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			KeypairPath:      cfg.Wallet.KeypairPath,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		}
		if crypto.IsRemote(cfg.Wallet.EncryptedKeyPath) {
			store, err := newKeyStore(ctx, cfg.S3)
			if err != nil {
				return fail(err)
			}
			keyCfg.Remote = store
		}
		w, err := crypto.LoadWallet(ctx, keyCfg)
		if err != nil {
			return fail(fmt.Errorf("wire: wallet: %w: %w", domain.ErrFatalConfig, err))
		}
		deps.Wallet = w
	}

	// --- Chain, oracle and relay clients ---
	deps.RPC = solanarpc.NewClient(cfg.Solana.RPCEndpoint, logger)
	deps.Prices = jupiter.NewPriceClient(jupiter.PriceConfig{
		BaseURL: cfg.Jupiter.PriceURL,
		APIKey:  cfg.Jupiter.APIKey,
		Timeout: timeout,
	}, logger)
	deps.Swaps = jupiter.NewSwapClient(jupiter.SwapConfig{
		BaseURL: cfg.Jupiter.SwapURL,
		APIKey:  cfg.Jupiter.APIKey,
		Timeout: timeout,
	}, logger)
	if deps.Redis != nil && cfg.Jupiter.RateLimit > 0 {
		limiter := redis.NewRateLimiter(deps.Redis, cfg.Jupiter.RateLimit, time.Second)
		deps.Prices.SetLimiter(limiter)
		deps.Swaps.SetLimiter(limiter)
	}
	deps.Jito = jito.NewClient(jito.Config{
		BlockEngineURL: cfg.Jito.BlockEngineURL,
		AuthUUID:       cfg.Jito.AuthUUID,
		Timeout:        timeout,
	}, logger)
	closers = append(closers, func() { _ = deps.Jito.Close() })

	pool, err := newTipPool(cfg.Jito.TipAccounts)
	if err != nil {
		return fail(err)
	}
	deps.Tips = pool

	// --- Kafka ---
	if cfg.Kafka.Enabled {
		pub, err := queue.NewPublisher(queue.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			Encoding: queue.Encoding(cfg.Kafka.Encoding),
		})
		if err != nil {
			return fail(fmt.Errorf("wire: kafka: %w", err))
		}
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("kafka close", slog.String("error", err.Error()))
			}
		})
		deps.Kafka = pub
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func newKeyStore(ctx context.Context, cfg config.S3Config) (*s3blob.KeyStore, error) {
	client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.Endpoint,
		Region:         cfg.Region,
		AccessKey:      cfg.AccessKey,
		SecretKey:      cfg.SecretKey,
		UseSSL:         cfg.UseSSL,
		ForcePathStyle: cfg.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: s3: %w", err)
	}
	return s3blob.NewKeyStore(client), nil
}

// newTipPool seeds the pool from configured accounts, or the built-in list.
func newTipPool(accounts []string) (*bundle.Pool, error) {
	if len(accounts) == 0 {
		return bundle.NewDefaultPool(), nil
	}
	keys, err := bundle.ParseAccounts(accounts)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	pool, err := bundle.NewPool(keys)
	if err != nil {
		return nil, fmt.Errorf("wire: tip pool: %w", err)
	}
	return pool, nil
}
