// Package executor runs the detect-and-execute cycle: poll quotes, look for
// a qualifying spread, and on a hit resolve, build, submit and track one
// bundle before idling again.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/bundle"
	"github.com/alanyoungcy/jitoarb/internal/clock"
	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// State is the loop's current phase.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateAnalyzing State = "analyzing"
	StateExecuting State = "executing"
)

// QuoteSource fetches a quote batch.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, assetIDs []string) (domain.QuoteSet, error)
}

// SpreadEvaluator picks the qualifying opportunity from a batch.
type SpreadEvaluator interface {
	Evaluate(quotes domain.QuoteSet) (domain.Opportunity, bool)
}

// RouteResolver produces an executable route.
type RouteResolver interface {
	Resolve(ctx context.Context, req domain.RouteRequest) (domain.Route, error)
}

// BlockhashSource returns a recent blockhash for signing.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// BundleBuilder signs a route plus tip into a bundle.
type BundleBuilder interface {
	Build(route domain.Route, p bundle.Params) (domain.Bundle, error)
}

// BundleSubmitter sends a bundle and tracks it.
type BundleSubmitter interface {
	Submit(ctx context.Context, b domain.Bundle) (domain.SubmissionResult, error)
	Await(ctx context.Context, bundleID string) (domain.SubmissionResult, error)
}

// TipPoolSource hands out the current tip-account snapshot.
type TipPoolSource interface {
	Snapshot() domain.TipPool
}

// EventSink receives loop events. Implementations must not block for long.
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event)
}

// Config holds the loop's trading and pacing parameters.
type Config struct {
	Assets                 []domain.Asset
	QuoteAsset             domain.Asset
	TradeAmount            decimal.Decimal
	MaxSlippageBps         uint16
	TipLamports            uint64
	Interval               time.Duration
	ErrorBackoffMultiplier int
	ExecutionTimeout       time.Duration
	// ExecutionEnabled is false in monitor mode: opportunities are reported
	// but nothing is submitted.
	ExecutionEnabled bool
	LockKey          string
	LockTTL          time.Duration
	DedupTTL         time.Duration
}

// Deps are the collaborators of a Loop. Lock, Quotes store and Events are
// optional.
type Deps struct {
	Quotes     QuoteSource
	Analyzer   SpreadEvaluator
	Resolver   RouteResolver
	Blockhash  BlockhashSource
	Builder    BundleBuilder
	Submitter  BundleSubmitter
	TipPool    TipPoolSource
	Wallet     solana.PublicKey
	Lock       domain.LockManager
	QuoteStore domain.QuoteStore
	Events     EventSink
	Clock      clock.Clock
}

// Loop is the single-flight execution state machine.
type Loop struct {
	cfg       Config
	deps      Deps
	scheduler Scheduler
	dedup     *Dedup
	assetIDs  []string
	inAmount  uint64
	assets    map[string]domain.Asset
	logger    *slog.Logger

	state    atomic.Value // State
	inflight atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	stats    stats
}

// NewLoop validates cfg and creates a Loop.
func NewLoop(cfg Config, deps Deps, logger *slog.Logger) (*Loop, error) {
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("executor: no assets configured")
	}
	if deps.Quotes == nil || deps.Analyzer == nil {
		return nil, fmt.Errorf("executor: quote source and analyzer are required")
	}
	if cfg.ExecutionEnabled {
		if deps.Resolver == nil || deps.Blockhash == nil || deps.Builder == nil || deps.Submitter == nil || deps.TipPool == nil {
			return nil, fmt.Errorf("executor: execution enabled without resolver, blockhash, builder, submitter and tip pool")
		}
		if deps.Wallet.IsZero() {
			return nil, fmt.Errorf("executor: execution enabled without a wallet")
		}
	}
	inAmount, err := cfg.QuoteAsset.ToBaseUnits(cfg.TradeAmount)
	if cfg.ExecutionEnabled && err != nil {
		return nil, fmt.Errorf("executor: trade amount: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewReal()
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 60 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.ExecutionTimeout
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "jitoarb:exec:" + deps.Wallet.String()
	}

	l := &Loop{
		cfg:       cfg,
		deps:      deps,
		scheduler: NewScheduler(cfg.Interval, cfg.ErrorBackoffMultiplier, deps.Clock),
		dedup:     NewDedup(cfg.DedupTTL, deps.Clock.Now),
		assets:    make(map[string]domain.Asset, len(cfg.Assets)),
		logger:    logger.With(slog.String("component", "execution_loop")),
		stopCh:    make(chan struct{}),
		inAmount:  inAmount,
	}
	for _, a := range cfg.Assets {
		if _, dup := l.assets[a.Mint]; dup {
			continue
		}
		l.assets[a.Mint] = a
		l.assetIDs = append(l.assetIDs, a.Mint)
	}
	l.state.Store(StateIdle)
	return l, nil
}

// Run executes cycles until Stop is called or ctx is cancelled. Both take
// effect at the next idle boundary; an execution already under way finishes
// first. Run returns nil on a requested stop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "execution loop started",
		slog.Int("assets", len(l.assetIDs)),
		slog.Bool("execution_enabled", l.cfg.ExecutionEnabled),
		slog.Duration("interval", l.scheduler.Interval),
	)
	defer l.logger.Info("execution loop stopped")

	for {
		if l.stopping(ctx) {
			return nil
		}
		outcome := l.RunOnce(ctx)
		if l.stopping(ctx) {
			return nil
		}
		if !l.scheduler.Wait(ctx, l.scheduler.Delay(outcome), l.stopCh) {
			return nil
		}
	}
}

// Stop requests the loop to exit at the next idle boundary. It is safe to
// call more than once and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Loop) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// State returns the current phase.
func (l *Loop) State() State {
	return l.state.Load().(State)
}

func (l *Loop) setState(s State) { l.state.Store(s) }

// RunOnce performs one cycle and reports how the loop should pace itself.
// It never panics; a recovered panic is an error outcome.
func (l *Loop) RunOnce(ctx context.Context) (outcome Outcome) {
	cycleID := uuid.NewString()
	log := l.logger.With(slog.String("cycle_id", cycleID))
	l.stats.cycles.Add(1)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("executor: cycle panic: %v", r)
			log.Error("cycle panicked", slog.String("error", err.Error()))
			l.recordError(ctx, cycleID, err)
			outcome = OutcomeError
		}
		l.setState(StateIdle)
		l.stats.setLastCycle(l.deps.Clock.Now())
		l.dedup.Cleanup()
	}()

	l.setState(StateFetching)
	quotes, err := l.deps.Quotes.FetchQuotes(ctx, l.assetIDs)
	if err != nil {
		log.Warn("quote fetch failed", slog.String("error", err.Error()))
		l.stats.fetchFailures.Add(1)
		l.emit(ctx, domain.Event{Type: domain.EventFetchFailed, CycleID: cycleID, Message: err.Error()})
		return OutcomeError
	}
	l.storeQuotes(ctx, log, quotes)

	l.setState(StateAnalyzing)
	opp, ok := l.deps.Analyzer.Evaluate(quotes)
	if !ok {
		return OutcomeNormal
	}
	l.stats.opportunities.Add(1)
	l.stats.setOpportunity(opp)
	log.Info("opportunity detected",
		slog.String("asset_id", opp.AssetID),
		slog.String("buy_price", opp.BuyPrice.String()),
		slog.String("sell_price", opp.SellPrice.String()),
		slog.String("spread_pct", opp.SpreadPct().StringFixed(4)),
	)
	l.emit(ctx, domain.Event{
		Type:    domain.EventOpportunity,
		CycleID: cycleID,
		AssetID: opp.AssetID,
		Spread:  opp.Spread.String(),
	})

	if !l.cfg.ExecutionEnabled {
		return OutcomeNormal
	}
	if !l.inflight.CompareAndSwap(false, true) {
		log.Warn("execution already in flight, skipping opportunity")
		return OutcomeNormal
	}
	defer l.inflight.Store(false)

	l.setState(StateExecuting)
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ExecutionTimeout)
	defer cancel()

	err = l.execute(execCtx, log, cycleID, opp)
	switch {
	case err == nil:
		return OutcomeNormal
	case errors.Is(err, domain.ErrNoRouteFound):
		log.Info("no route for opportunity", slog.String("asset_id", opp.AssetID), slog.String("reason", err.Error()))
		l.emit(ctx, domain.Event{Type: domain.EventNoRoute, CycleID: cycleID, AssetID: opp.AssetID, Message: err.Error()})
		return OutcomeNormal
	case errors.Is(err, domain.ErrLockHeld):
		log.Info("execution lock held elsewhere, skipping opportunity")
		return OutcomeNormal
	default:
		log.Error("execution failed", slog.String("asset_id", opp.AssetID), slog.String("error", err.Error()))
		l.recordError(ctx, cycleID, err)
		return OutcomeError
	}
}

func (l *Loop) execute(ctx context.Context, log *slog.Logger, cycleID string, opp domain.Opportunity) error {
	if l.deps.Lock != nil {
		unlock, err := l.deps.Lock.Acquire(ctx, l.cfg.LockKey, l.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("executor: acquire lock: %w", err)
		}
		defer unlock()
	}

	asset, ok := l.assets[opp.AssetID]
	if !ok {
		return fmt.Errorf("executor: opportunity for unwatched asset %q", opp.AssetID)
	}
	outMint, err := solana.PublicKeyFromBase58(asset.Mint)
	if err != nil {
		return fmt.Errorf("executor: asset %s mint: %w", asset.Symbol, err)
	}
	inMint, err := solana.PublicKeyFromBase58(l.cfg.QuoteAsset.Mint)
	if err != nil {
		return fmt.Errorf("executor: quote asset mint: %w", err)
	}

	rt, err := l.deps.Resolver.Resolve(ctx, domain.RouteRequest{
		InputMint:      inMint,
		OutputMint:     outMint,
		InputAmount:    l.inAmount,
		MaxSlippageBps: l.cfg.MaxSlippageBps,
		User:           l.deps.Wallet,
	})
	if err != nil {
		return err
	}

	hash, err := l.deps.Blockhash.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}

	b, err := l.deps.Builder.Build(rt, bundle.Params{
		TipLamports:     l.cfg.TipLamports,
		Pool:            l.deps.TipPool.Snapshot(),
		RecentBlockhash: hash,
	})
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	if l.dedup.Seen(b.ID()) {
		log.Warn("identical bundle already submitted, skipping", slog.String("signature", b.ID()))
		return nil
	}

	sub, err := l.deps.Submitter.Submit(ctx, b)
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	l.stats.submitted.Add(1)
	l.emit(ctx, domain.Event{
		Type:     domain.EventBundleSubmitted,
		CycleID:  cycleID,
		AssetID:  opp.AssetID,
		BundleID: sub.BundleID,
		Status:   string(sub.Status),
	})

	final, err := l.deps.Submitter.Await(ctx, sub.BundleID)
	if final.BundleID == "" {
		final.BundleID = sub.BundleID
	}
	l.stats.setResult(final)

	ev := domain.Event{CycleID: cycleID, AssetID: opp.AssetID, BundleID: final.BundleID, Status: string(final.Status)}
	switch final.Status {
	case domain.BundleLanded:
		l.stats.landed.Add(1)
		ev.Type = domain.EventBundleLanded
		ev.Message = fmt.Sprintf("slot %d", final.Slot)
		log.Info("bundle landed", slog.String("bundle_id", final.BundleID), slog.Uint64("slot", final.Slot))
	case domain.BundleFailed:
		l.stats.failed.Add(1)
		ev.Type = domain.EventBundleFailed
		ev.Message = final.Err
		log.Warn("bundle failed", slog.String("bundle_id", final.BundleID), slog.String("reason", final.Err))
	default:
		l.stats.unknown.Add(1)
		ev.Type = domain.EventBundleUnknown
		if err != nil {
			ev.Message = err.Error()
		}
	}
	l.emit(ctx, ev)

	if err != nil && !errors.Is(err, domain.ErrUnknownOutcome) {
		return fmt.Errorf("executor: await: %w", err)
	}
	return nil
}

func (l *Loop) storeQuotes(ctx context.Context, log *slog.Logger, quotes domain.QuoteSet) {
	l.stats.setQuotes(quotes)
	if l.deps.QuoteStore == nil || quotes.Len() == 0 {
		return
	}
	if err := l.deps.QuoteStore.SetQuotes(ctx, quotes); err != nil {
		log.Debug("quote store write failed", slog.String("error", err.Error()))
	}
}

func (l *Loop) recordError(ctx context.Context, cycleID string, err error) {
	l.stats.errors.Add(1)
	l.stats.setError(err)
	l.emit(ctx, domain.Event{Type: domain.EventCycleError, CycleID: cycleID, Message: err.Error()})
}

func (l *Loop) emit(ctx context.Context, ev domain.Event) {
	if l.deps.Events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = l.deps.Clock.Now()
	}
	l.deps.Events.Emit(context.WithoutCancel(ctx), ev)
}
