package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Confidence is the oracle-reported reliability of a quote.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps an oracle confidence string to a Confidence. The
// second return value is false for anything unrecognised.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceLow:
		return ConfidenceLow, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceHigh:
		return ConfidenceHigh, true
	default:
		return "", false
	}
}

// Quote is one asset's quoted buy/sell prices from a single poll.
type Quote struct {
	AssetID    string          `json:"asset_id"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price"`
	Confidence Confidence      `json:"confidence"`
	ObservedAt time.Time       `json:"observed_at"`
}

// QuoteSet holds at most one quote per asset and remembers insertion order,
// so iterating it is deterministic.
type QuoteSet struct {
	order []string
	byID  map[string]Quote
}

// NewQuoteSet builds a set from quotes in the given order. A later quote for
// an asset already present is ignored.
func NewQuoteSet(quotes ...Quote) QuoteSet {
	s := QuoteSet{byID: make(map[string]Quote, len(quotes))}
	for _, q := range quotes {
		s.add(q)
	}
	return s
}

func (s *QuoteSet) add(q Quote) {
	if s.byID == nil {
		s.byID = make(map[string]Quote)
	}
	if _, ok := s.byID[q.AssetID]; ok {
		return
	}
	s.order = append(s.order, q.AssetID)
	s.byID[q.AssetID] = q
}

// Len returns the number of quotes in the set.
func (s QuoteSet) Len() int { return len(s.order) }

// Get returns the quote for assetID.
func (s QuoteSet) Get(assetID string) (Quote, bool) {
	q, ok := s.byID[assetID]
	return q, ok
}

// All returns the quotes in insertion order.
func (s QuoteSet) All() []Quote {
	out := make([]Quote, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// AssetIDs returns the asset identifiers in insertion order.
func (s QuoteSet) AssetIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
