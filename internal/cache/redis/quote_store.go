package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// QuoteStore implements domain.QuoteStore with one Redis hash per asset at
// "{prefix}:quote:{assetID}" holding buy, sell, confidence and ts (Unix
// nanoseconds). Entries expire after ttl so a stopped bot does not leave
// stale quotes behind.
type QuoteStore struct {
	c   *Client
	ttl time.Duration
}

// NewQuoteStore creates a QuoteStore. A non-positive ttl defaults to one
// minute.
func NewQuoteStore(c *Client, ttl time.Duration) *QuoteStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &QuoteStore{c: c, ttl: ttl}
}

// SetQuotes writes every quote in one pipeline.
func (qs *QuoteStore) SetQuotes(ctx context.Context, quotes domain.QuoteSet) error {
	if quotes.Len() == 0 {
		return nil
	}
	pipe := qs.c.rdb.Pipeline()
	for _, q := range quotes.All() {
		key := qs.c.key("quote", q.AssetID)
		pipe.HSet(ctx, key, quoteFields(q))
		pipe.Expire(ctx, key, qs.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes: %w", err)
	}
	return nil
}

// GetQuotes returns the stored quotes for assetIDs in request order. Missing
// or unparseable entries are omitted.
func (qs *QuoteStore) GetQuotes(ctx context.Context, assetIDs []string) ([]domain.Quote, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	pipe := qs.c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(assetIDs))
	for i, id := range assetIDs {
		cmds[i] = pipe.HGetAll(ctx, qs.c.key("quote", id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes: %w", err)
	}

	out := make([]domain.Quote, 0, len(assetIDs))
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		q, err := parseQuoteFields(assetIDs[i], vals)
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func quoteFields(q domain.Quote) map[string]any {
	return map[string]any{
		"buy":        q.BuyPrice.String(),
		"sell":       q.SellPrice.String(),
		"confidence": string(q.Confidence),
		"ts":         strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}
}

func parseQuoteFields(assetID string, vals map[string]string) (domain.Quote, error) {
	buy, err := decimal.NewFromString(vals["buy"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: quote %s buy: %w", assetID, err)
	}
	sell, err := decimal.NewFromString(vals["sell"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: quote %s sell: %w", assetID, err)
	}
	conf, ok := domain.ParseConfidence(vals["confidence"])
	if !ok {
		return domain.Quote{}, fmt.Errorf("redis: quote %s confidence %q: %w", assetID, vals["confidence"], domain.ErrNotFound)
	}
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: quote %s ts: %w", assetID, err)
	}
	return domain.Quote{
		AssetID:    assetID,
		BuyPrice:   buy,
		SellPrice:  sell,
		Confidence: conf,
		ObservedAt: time.Unix(0, ts).UTC(),
	}, nil
}

var _ domain.QuoteStore = (*QuoteStore)(nil)
