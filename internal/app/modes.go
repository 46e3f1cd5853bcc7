package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/jitoarb/internal/arbitrage"
	"github.com/alanyoungcy/jitoarb/internal/bundle"
	"github.com/alanyoungcy/jitoarb/internal/clock"
	"github.com/alanyoungcy/jitoarb/internal/executor"
	"github.com/alanyoungcy/jitoarb/internal/relay"
	"github.com/alanyoungcy/jitoarb/internal/route"
	"github.com/alanyoungcy/jitoarb/internal/server"
	"github.com/alanyoungcy/jitoarb/internal/server/handler"
	"github.com/alanyoungcy/jitoarb/internal/server/middleware"
	"github.com/alanyoungcy/jitoarb/internal/server/ws"
)

// ArbitrageMode runs the full detect-and-execute loop together with the tip
// account refresher and, when enabled, the API server.
func (a *App) ArbitrageMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting arbitrage mode")
	if deps.Wallet == nil {
		return fmt.Errorf("app: arbitrage mode requires a wallet")
	}
	return a.runLoop(ctx, deps, true)
}

// MonitorMode polls quotes and reports opportunities without submitting
// anything. A wallet is optional.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runLoop(ctx, deps, false)
}

func (a *App) runLoop(ctx context.Context, deps *Dependencies, execute bool) error {
	if deps.Wallet != nil {
		if err := deps.RPC.LogWallet(ctx, deps.Wallet.PublicKey()); err != nil {
			a.logger.WarnContext(ctx, "wallet balance unavailable", slog.String("error", err.Error()))
		}
	}

	fanout := NewFanout(a.logger)
	if deps.Kafka != nil {
		fanout.Add("kafka", deps.Kafka)
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		fanout.Add("notify", notifierPublisher{n: deps.Notifier})
	}

	loop, err := a.buildLoop(deps, fanout, execute)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if execute {
		refresher := bundle.NewRefresher(deps.Tips, deps.Jito, a.cfg.Jito.TipRefreshInterval.Duration, a.logger)
		g.Go(func() error {
			return ignoreCanceled(refresher.Run(gctx))
		})
	}

	if deps.SignalBus != nil {
		fanout.Add("redis", busPublisher{bus: deps.SignalBus, channel: a.cfg.Redis.EventChannel})
	}

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(func() any { return loop.Status() }, a.cfg.Server.CORSOrigins, a.logger)
		if deps.SignalBus != nil {
			g.Go(func() error {
				return ignoreCanceled(hub.Relay(gctx, deps.SignalBus, a.cfg.Redis.EventChannel))
			})
		} else {
			fanout.Add("ws", hub)
		}
		g.Go(func() error {
			return ignoreCanceled(hub.Run(gctx))
		})

		srv := a.buildServer(deps, loop, hub)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		return fanout.Run(gctx)
	})
	g.Go(func() error {
		// Stopping the loop ends the mode.
		defer cancel()
		defer fanout.Close()
		return loop.Run(gctx)
	})

	return g.Wait()
}

// buildLoop assembles the execution loop. With execute false only the quote
// source and analyzer are wired.
func (a *App) buildLoop(deps *Dependencies, events executor.EventSink, execute bool) (*executor.Loop, error) {
	arb := a.cfg.Arbitrage
	analyzer := arbitrage.NewAnalyzer(arbitrage.AnalyzerConfig{
		MinProfitThreshold: arb.Threshold(),
	}, nil, a.logger)

	cfg := executor.Config{
		Assets:                 arb.DomainAssets(),
		QuoteAsset:             arb.QuoteAsset.Domain(),
		TradeAmount:            arb.Amount(),
		MaxSlippageBps:         uint16(arb.MaxSlippageBps),
		TipLamports:            a.cfg.Jito.TipLamports,
		Interval:               a.cfg.Loop.Interval.Duration,
		ErrorBackoffMultiplier: a.cfg.Loop.ErrorBackoffMultiplier,
		ExecutionTimeout:       a.cfg.Loop.ExecutionTimeout.Duration,
		ExecutionEnabled:       execute,
		LockTTL:                a.cfg.Loop.LockTTL.Duration,
		DedupTTL:               a.cfg.Loop.DedupTTL.Duration,
	}
	ed := executor.Deps{
		Quotes:     deps.Prices,
		Analyzer:   analyzer,
		Lock:       deps.LockManager,
		QuoteStore: deps.QuoteStore,
		Events:     events,
		Clock:      clock.NewReal(),
	}
	if deps.Wallet != nil {
		ed.Wallet = deps.Wallet.PublicKey()
	}

	if execute {
		selector, err := bundle.NewSelectorRegistry().Get(a.cfg.Jito.TipSelector)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		ed.Resolver = route.NewResolver(deps.Swaps, deps.Swaps, a.logger)
		ed.Blockhash = deps.RPC
		ed.Builder = bundle.NewBuilder(deps.Wallet, selector, a.logger)
		ed.Submitter = relay.NewSubmitter(deps.Jito, relay.Config{
			MaxAttempts:    a.cfg.Jito.StatusMaxAttempts,
			InitialBackoff: a.cfg.Jito.StatusBackoff.Duration,
			MaxBackoff:     a.cfg.Jito.StatusMaxBackoff.Duration,
		}, clock.NewReal(), a.logger)
		ed.TipPool = deps.Tips
	}

	loop, err := executor.NewLoop(cfg, ed, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: build loop: %w", err)
	}
	return loop, nil
}

func (a *App) buildServer(deps *Dependencies, loop *executor.Loop, hub *ws.Hub) *server.Server {
	checks := map[string]handler.Check{
		"solana_rpc": deps.RPC.Health,
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Ping
	}

	wallet := ""
	if deps.Wallet != nil {
		wallet = deps.Wallet.PublicKey().String()
	}
	assetIDs := make([]string, 0, len(a.cfg.Arbitrage.Assets))
	for _, as := range a.cfg.Arbitrage.Assets {
		assetIDs = append(assetIDs, as.Mint)
	}

	var limiter middleware.Limiter
	if deps.APILimiter != nil {
		limiter = deps.APILimiter
	}

	return server.NewServer(server.Config{
		Addr:        a.cfg.Server.Addr,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health: handler.NewHealthHandler(checks, a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode, wallet, loop, deps.QuoteStore, assetIDs, a.logger),
	}, hub, limiter, a.logger)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
