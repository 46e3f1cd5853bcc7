package bundle

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
)

// TipAccountSource lists the relay's current tip accounts.
type TipAccountSource interface {
	TipAccounts(ctx context.Context) ([]solana.PublicKey, error)
}

// Refresher periodically replaces the pool snapshot with the relay's tip
// accounts. A failed refresh keeps the previous snapshot.
type Refresher struct {
	pool     *Pool
	source   TipAccountSource
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(pool *Pool, source TipAccountSource, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		pool:     pool,
		source:   source,
		interval: interval,
		logger:   logger.With(slog.String("component", "tip_refresher")),
	}
}

// Refresh fetches tip accounts once and publishes them.
func (r *Refresher) Refresh(ctx context.Context) error {
	accts, err := r.source.TipAccounts(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "tip account refresh failed, keeping current pool",
			slog.Uint64("version", r.pool.Snapshot().Version),
			slog.String("error", err.Error()),
		)
		return err
	}
	snap, err := r.pool.Replace(accts)
	if err != nil {
		r.logger.WarnContext(ctx, "relay returned no tip accounts, keeping current pool",
			slog.Uint64("version", snap.Version),
		)
		return err
	}
	r.logger.InfoContext(ctx, "tip accounts refreshed",
		slog.Uint64("version", snap.Version),
		slog.Int("accounts", snap.Len()),
	)
	return nil
}

// Run refreshes immediately and then on every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	_ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}
