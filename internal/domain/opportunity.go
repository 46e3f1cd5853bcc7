package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Opportunity is an asset whose quoted spread passed the profit and
// confidence gate during one loop iteration.
type Opportunity struct {
	AssetID    string          `json:"asset_id"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price"`
	Spread     decimal.Decimal `json:"spread"` // fraction, (sell-buy)/buy
	Confidence Confidence      `json:"confidence"`
	DetectedAt time.Time       `json:"detected_at"`
}

// SpreadPct returns the spread expressed in percent.
func (o Opportunity) SpreadPct() decimal.Decimal {
	return o.Spread.Mul(hundred)
}

// Asset is a watched SPL mint.
type Asset struct {
	Symbol   string
	Mint     string
	Decimals int32
}

// ToBaseUnits converts a human amount of the asset into integer base units,
// truncating any fractional remainder. Amounts that truncate to zero or do
// not fit in a uint64 are rejected.
func (a Asset) ToBaseUnits(amount decimal.Decimal) (uint64, error) {
	units := amount.Shift(a.Decimals).Truncate(0).BigInt()
	if units.Sign() <= 0 {
		return 0, fmt.Errorf("domain: %s %s is less than one base unit", amount, a.Symbol)
	}
	if !units.IsUint64() {
		return 0, fmt.Errorf("domain: %s %s overflows uint64 base units", amount, a.Symbol)
	}
	return units.Uint64(), nil
}
