package domain

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Hop is one venue step of a swap route.
type Hop struct {
	Venue      string
	PoolID     string
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	Percent    int
}

// Route is an executable swap path. Instructions is empty until the route
// has been materialised by the routing venue.
type Route struct {
	InputMint            solana.PublicKey
	OutputMint           solana.PublicKey
	InputAmount          uint64
	ExpectedOutputAmount uint64
	MinOutputAmount      uint64
	Hops                 []Hop
	MaxSlippageBps       uint16
	PriceImpactPct       decimal.Decimal
	Instructions         []solana.Instruction
}

// RouteCandidate is a quoted route prior to selection. Raw keeps the venue's
// quote payload so the chosen candidate can be turned into instructions.
type RouteCandidate struct {
	Route       Route
	SlippageBps uint16
	Source      string
	Raw         json.RawMessage
}

// RouteRequest asks for a swap of InputAmount base units of InputMint into
// OutputMint on behalf of User.
type RouteRequest struct {
	InputMint      solana.PublicKey
	OutputMint     solana.PublicKey
	InputAmount    uint64
	MaxSlippageBps uint16
	User           solana.PublicKey
}
