// Package arbitrage evaluates quoted spreads and selects at most one
// opportunity per poll cycle.
package arbitrage

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// AnalyzerConfig configures the spread gate.
type AnalyzerConfig struct {
	// MinProfitThreshold is the spread fraction an asset must strictly exceed.
	MinProfitThreshold decimal.Decimal
	// RequiredConfidence defaults to high.
	RequiredConfidence domain.Confidence
}

// AssetSpread is the computed spread for one quote, qualifying or not.
type AssetSpread struct {
	AssetID    string
	Spread     decimal.Decimal
	Confidence domain.Confidence
	Qualifies  bool
}

// Analyzer applies the threshold and confidence gate. It holds no state
// between calls, so identical quotes always produce the same decision.
type Analyzer struct {
	cfg    AnalyzerConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. now stamps Opportunity.DetectedAt; pass nil
// for time.Now.
func NewAnalyzer(cfg AnalyzerConfig, now func() time.Time, logger *slog.Logger) *Analyzer {
	if cfg.RequiredConfidence == "" {
		cfg.RequiredConfidence = domain.ConfidenceHigh
	}
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		cfg:    cfg,
		now:    now,
		logger: logger.With(slog.String("component", "spread_analyzer")),
	}
}

// Threshold returns the configured minimum spread fraction.
func (a *Analyzer) Threshold() decimal.Decimal { return a.cfg.MinProfitThreshold }

// Spreads computes the spread of every quote in set order. Quotes with a
// non-positive buy price are skipped.
func (a *Analyzer) Spreads(quotes domain.QuoteSet) []AssetSpread {
	all := quotes.All()
	out := make([]AssetSpread, 0, len(all))
	for _, q := range all {
		spread, ok := spreadOf(q)
		if !ok {
			continue
		}
		out = append(out, AssetSpread{
			AssetID:    q.AssetID,
			Spread:     spread,
			Confidence: q.Confidence,
			Qualifies:  spread.GreaterThan(a.cfg.MinProfitThreshold) && q.Confidence == a.cfg.RequiredConfidence,
		})
	}
	return out
}

// Evaluate returns the qualifying asset with the greatest spread. On an exact
// tie the first asset in set order wins. The bool is false when nothing
// qualifies.
func (a *Analyzer) Evaluate(quotes domain.QuoteSet) (domain.Opportunity, bool) {
	var (
		best  domain.Quote
		bestS decimal.Decimal
		found bool
	)
	for _, s := range a.Spreads(quotes) {
		a.logger.Debug("quoted spread",
			slog.String("asset_id", s.AssetID),
			slog.String("spread_pct", s.Spread.Mul(decimal.NewFromInt(100)).StringFixed(4)),
			slog.String("confidence", string(s.Confidence)),
			slog.Bool("qualifies", s.Qualifies),
		)
		if !s.Qualifies {
			continue
		}
		if !found || s.Spread.GreaterThan(bestS) {
			best, _ = quotes.Get(s.AssetID)
			bestS = s.Spread
			found = true
		}
	}
	if !found {
		return domain.Opportunity{}, false
	}
	return domain.Opportunity{
		AssetID:    best.AssetID,
		BuyPrice:   best.BuyPrice,
		SellPrice:  best.SellPrice,
		Spread:     bestS,
		Confidence: best.Confidence,
		DetectedAt: a.now(),
	}, true
}

func spreadOf(q domain.Quote) (decimal.Decimal, bool) {
	if q.BuyPrice.Sign() <= 0 {
		return decimal.Zero, false
	}
	return q.SellPrice.Sub(q.BuyPrice).Div(q.BuyPrice), true
}
