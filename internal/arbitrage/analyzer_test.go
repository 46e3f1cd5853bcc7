package arbitrage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestAnalyzer(threshold string) *Analyzer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnalyzer(AnalyzerConfig{
		MinProfitThreshold: decimal.RequireFromString(threshold),
	}, func() time.Time { return fixedNow }, logger)
}

func quote(id, buy, sell string, c domain.Confidence) domain.Quote {
	return domain.Quote{
		AssetID:    id,
		BuyPrice:   decimal.RequireFromString(buy),
		SellPrice:  decimal.RequireFromString(sell),
		Confidence: c,
		ObservedAt: fixedNow,
	}
}

func TestEvaluate_SpreadAboveThreshold(t *testing.T) {
	a := newTestAnalyzer("0.0025")
	opp, ok := a.Evaluate(domain.NewQuoteSet(quote("SOL", "100", "100.3", domain.ConfidenceHigh)))
	if !ok {
		t.Fatal("expected an opportunity")
	}
	if opp.AssetID != "SOL" {
		t.Fatalf("asset = %s, want SOL", opp.AssetID)
	}
	if want := decimal.RequireFromString("0.003"); !opp.Spread.Equal(want) {
		t.Fatalf("spread = %s, want %s", opp.Spread, want)
	}
	if !opp.DetectedAt.Equal(fixedNow) {
		t.Fatalf("detected_at = %v, want %v", opp.DetectedAt, fixedNow)
	}
	if want := decimal.RequireFromString("0.3"); !opp.SpreadPct().Equal(want) {
		t.Fatalf("spread pct = %s, want %s", opp.SpreadPct(), want)
	}
}

func TestEvaluate_ConfidenceGate(t *testing.T) {
	a := newTestAnalyzer("0.0025")
	for _, c := range []domain.Confidence{domain.ConfidenceLow, domain.ConfidenceMedium, ""} {
		set := domain.NewQuoteSet(quote("SOL", "100", "150", c))
		if _, ok := a.Evaluate(set); ok {
			t.Fatalf("confidence %q: expected no opportunity", c)
		}
	}
}

func TestEvaluate_ThresholdIsStrict(t *testing.T) {
	a := newTestAnalyzer("0.003")
	if _, ok := a.Evaluate(domain.NewQuoteSet(quote("SOL", "100", "100.3", domain.ConfidenceHigh))); ok {
		t.Fatal("spread equal to threshold must not qualify")
	}
}

func TestEvaluate_SkipsNonPositiveBuy(t *testing.T) {
	a := newTestAnalyzer("0.0025")
	if _, ok := a.Evaluate(domain.NewQuoteSet(quote("SOL", "0", "1", domain.ConfidenceHigh))); ok {
		t.Fatal("zero buy price must not qualify")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	a := newTestAnalyzer("0.001")
	set := domain.NewQuoteSet(
		quote("A", "1", "1.01", domain.ConfidenceHigh),
		quote("B", "2", "2.03", domain.ConfidenceHigh),
		quote("C", "5", "5.01", domain.ConfidenceMedium),
	)
	first, ok := a.Evaluate(set)
	if !ok {
		t.Fatal("expected an opportunity")
	}
	for i := 0; i < 50; i++ {
		got, ok := a.Evaluate(set)
		if !ok || got.AssetID != first.AssetID || !got.Spread.Equal(first.Spread) {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestEvaluate_GreatestSpreadAndTieBreak(t *testing.T) {
	a := newTestAnalyzer("0.001")

	tests := []struct {
		name   string
		quotes []domain.Quote
		want   string
	}{
		{
			name: "strictly greatest wins",
			quotes: []domain.Quote{
				quote("A", "1", "1.01", domain.ConfidenceHigh),
				quote("B", "1", "1.02", domain.ConfidenceHigh),
				quote("C", "1", "1.015", domain.ConfidenceHigh),
			},
			want: "B",
		},
		{
			name: "tie resolves to first",
			quotes: []domain.Quote{
				quote("X", "10", "10.2", domain.ConfidenceHigh),
				quote("Y", "1", "1.02", domain.ConfidenceHigh),
			},
			want: "X",
		},
		{
			name: "tie resolves to first, reversed input",
			quotes: []domain.Quote{
				quote("Y", "1", "1.02", domain.ConfidenceHigh),
				quote("X", "10", "10.2", domain.ConfidenceHigh),
			},
			want: "Y",
		},
		{
			name: "larger spread with low confidence ignored",
			quotes: []domain.Quote{
				quote("A", "1", "1.5", domain.ConfidenceLow),
				quote("B", "1", "1.01", domain.ConfidenceHigh),
			},
			want: "B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := a.Evaluate(domain.NewQuoteSet(tt.quotes...))
			if !ok {
				t.Fatal("expected an opportunity")
			}
			if opp.AssetID != tt.want {
				t.Fatalf("asset = %s, want %s", opp.AssetID, tt.want)
			}
		})
	}
}

func TestEvaluate_MixedScenario(t *testing.T) {
	a := newTestAnalyzer("0.0025")
	set := domain.NewQuoteSet(
		quote("SOL", "100", "100.1", domain.ConfidenceMedium),
		quote("JUP", "1", "1.004", domain.ConfidenceHigh),
	)
	opp, ok := a.Evaluate(set)
	if !ok {
		t.Fatal("expected JUP opportunity")
	}
	if opp.AssetID != "JUP" {
		t.Fatalf("asset = %s, want JUP", opp.AssetID)
	}
	if want := decimal.RequireFromString("0.004"); !opp.Spread.Equal(want) {
		t.Fatalf("spread = %s, want %s", opp.Spread, want)
	}

	spreads := a.Spreads(set)
	if len(spreads) != 2 || spreads[0].Qualifies || !spreads[1].Qualifies {
		t.Fatalf("unexpected spreads: %+v", spreads)
	}
}

func TestEvaluate_Empty(t *testing.T) {
	a := newTestAnalyzer("0.0025")
	if _, ok := a.Evaluate(domain.NewQuoteSet()); ok {
		t.Fatal("empty set must yield nothing")
	}
}
