package domain

import (
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Bundle is an ordered, fully signed set of transactions for the relay.
// Instructions lists trade instructions first and the tip transfer last.
type Bundle struct {
	Instructions    []solana.Instruction
	TipAccount      solana.PublicKey
	TipLamports     uint64
	RecentBlockhash solana.Hash
	FeePayer        solana.PublicKey
	Signatures      []solana.Signature
	Transactions    []*solana.Transaction
	TipPoolVersion  uint64
}

// ID returns the first transaction signature, which uniquely identifies the
// signed payload.
func (b Bundle) ID() string {
	if len(b.Signatures) == 0 {
		return ""
	}
	return b.Signatures[0].String()
}

// Validate reports whether every transaction carries all required signatures
// and each one verifies. A partially signed bundle never passes.
func (b Bundle) Validate() error {
	if len(b.Transactions) == 0 {
		return fmt.Errorf("%w: no transactions", ErrInvalidBundle)
	}
	for i, tx := range b.Transactions {
		if tx == nil {
			return fmt.Errorf("%w: transaction %d is nil", ErrInvalidBundle, i)
		}
		required := int(tx.Message.Header.NumRequiredSignatures)
		if len(tx.Signatures) != required {
			return fmt.Errorf("%w: transaction %d has %d of %d signatures",
				ErrInvalidBundle, i, len(tx.Signatures), required)
		}
		for _, sig := range tx.Signatures {
			if sig == (solana.Signature{}) {
				return fmt.Errorf("%w: transaction %d has an empty signature", ErrInvalidBundle, i)
			}
		}
		if err := tx.VerifySignatures(); err != nil {
			return fmt.Errorf("%w: transaction %d: %v", ErrInvalidBundle, i, err)
		}
	}
	return nil
}

// EncodeBase64 serialises every transaction to base64 wire format.
func (b Bundle) EncodeBase64() ([]string, error) {
	out := make([]string, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode transaction %d: %w", i, err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(raw))
	}
	return out, nil
}
