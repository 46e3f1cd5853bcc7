// Package route picks the swap path for an opportunity and materialises it
// into signable instructions.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// CandidateSource quotes candidate routes. A nil error with zero candidates
// means no route exists.
type CandidateSource interface {
	Candidates(ctx context.Context, req domain.RouteRequest) ([]domain.RouteCandidate, error)
}

// InstructionSource turns a chosen candidate into raw instructions.
type InstructionSource interface {
	SwapInstructions(ctx context.Context, cand domain.RouteCandidate, user solana.PublicKey) ([]solana.Instruction, error)
}

// Resolver selects the best candidate within the slippage bound.
type Resolver struct {
	candidates   CandidateSource
	instructions InstructionSource
	logger       *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(candidates CandidateSource, instructions InstructionSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		candidates:   candidates,
		instructions: instructions,
		logger:       logger.With(slog.String("component", "route_resolver")),
	}
}

// Resolve returns the candidate with the highest expected output among those
// whose slippage does not exceed req.MaxSlippageBps, with its instructions
// populated. It returns an error wrapping domain.ErrNoRouteFound when nothing
// qualifies.
func (r *Resolver) Resolve(ctx context.Context, req domain.RouteRequest) (domain.Route, error) {
	if req.InputAmount == 0 {
		return domain.Route{}, fmt.Errorf("route: resolve: %w: zero input amount", domain.ErrNoRouteFound)
	}

	cands, err := r.candidates.Candidates(ctx, req)
	if err != nil {
		return domain.Route{}, fmt.Errorf("route: candidates: %w", err)
	}

	best, ok := Select(cands, req.MaxSlippageBps)
	if !ok {
		return domain.Route{}, fmt.Errorf("route: resolve %s -> %s: %w (%d candidates)",
			req.InputMint, req.OutputMint, domain.ErrNoRouteFound, len(cands))
	}

	ixs, err := r.instructions.SwapInstructions(ctx, best, req.User)
	if err != nil {
		return domain.Route{}, fmt.Errorf("route: materialise %s: %w", best.Source, err)
	}
	if len(ixs) == 0 {
		return domain.Route{}, errors.New("route: materialise: venue returned no instructions")
	}

	rt := best.Route
	rt.Instructions = ixs
	if rt.MaxSlippageBps == 0 {
		rt.MaxSlippageBps = best.SlippageBps
	}

	r.logger.DebugContext(ctx, "route resolved",
		slog.String("source", best.Source),
		slog.Uint64("in_amount", rt.InputAmount),
		slog.Uint64("expected_out", rt.ExpectedOutputAmount),
		slog.Uint64("min_out", rt.MinOutputAmount),
		slog.Int("hops", len(rt.Hops)),
		slog.Int("instructions", len(ixs)),
	)
	return rt, nil
}

// Select returns the candidate with the greatest expected output whose
// slippage is within maxSlippageBps. Ties go to the earlier candidate.
func Select(cands []domain.RouteCandidate, maxSlippageBps uint16) (domain.RouteCandidate, bool) {
	var (
		best  domain.RouteCandidate
		found bool
	)
	for _, c := range cands {
		if c.SlippageBps > maxSlippageBps {
			continue
		}
		if !found || c.Route.ExpectedOutputAmount > best.Route.ExpectedOutputAmount {
			best = c
			found = true
		}
	}
	return best, found
}
