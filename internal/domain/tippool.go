package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// TipPool is an immutable snapshot of relay tip accounts. A refresh produces
// a new snapshot with a higher Version instead of mutating this one.
type TipPool struct {
	Version   uint64
	Accounts  []solana.PublicKey
	UpdatedAt time.Time
}

// Len returns the number of accounts in the pool.
func (p TipPool) Len() int { return len(p.Accounts) }
