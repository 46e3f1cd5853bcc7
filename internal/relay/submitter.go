// Package relay submits signed bundles to the block engine and tracks them
// to a terminal status.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/jitoarb/internal/clock"
	"github.com/alanyoungcy/jitoarb/internal/domain"
	"github.com/alanyoungcy/jitoarb/internal/platform/jito"
)

// BundleClient is the block engine surface the submitter needs.
type BundleClient interface {
	SendBundle(ctx context.Context, txs []string) (string, error)
	GetBundleStatuses(ctx context.Context, ids []string) ([]jito.BundleStatus, json.RawMessage, error)
	GetInflightBundleStatuses(ctx context.Context, ids []string) ([]jito.InflightStatus, json.RawMessage, error)
}

// Config bounds status polling.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = 8 * c.InitialBackoff
	}
	return c
}

// Submitter sends bundles and polls their status.
type Submitter struct {
	client BundleClient
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// NewSubmitter creates a Submitter. A nil clock uses the wall clock.
func NewSubmitter(client BundleClient, cfg Config, clk clock.Clock, logger *slog.Logger) *Submitter {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Submitter{
		client: client,
		cfg:    cfg.withDefaults(),
		clock:  clk,
		logger: logger.With(slog.String("component", "relay_submitter")),
	}
}

// Submit validates and sends b. Nothing is sent for a bundle that fails
// validation. Relay failures wrap domain.ErrSubmit.
func (s *Submitter) Submit(ctx context.Context, b domain.Bundle) (domain.SubmissionResult, error) {
	if err := b.Validate(); err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("relay: submit: %w", err)
	}
	txs, err := b.EncodeBase64()
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("relay: submit: %w: %v", domain.ErrSubmit, err)
	}

	id, err := s.client.SendBundle(ctx, txs)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("relay: submit: %w: %w", domain.ErrSubmit, err)
	}

	s.logger.InfoContext(ctx, "bundle submitted",
		slog.String("bundle_id", id),
		slog.String("signature", b.ID()),
		slog.String("tip_account", b.TipAccount.String()),
		slog.Uint64("tip_lamports", b.TipLamports),
	)
	return domain.SubmissionResult{BundleID: id, Status: domain.BundlePending}, nil
}

// PollStatus queries the relay once. It never returns an error: transport
// failures and missing records both map to unknown, and the caller decides
// whether to poll again.
func (s *Submitter) PollStatus(ctx context.Context, bundleID string) domain.SubmissionResult {
	res := domain.SubmissionResult{BundleID: bundleID, Status: domain.BundleUnknown}

	statuses, raw, err := s.client.GetBundleStatuses(ctx, []string{bundleID})
	if err != nil {
		s.logger.DebugContext(ctx, "status poll failed",
			slog.String("bundle_id", bundleID),
			slog.String("error", err.Error()),
		)
		res.Err = err.Error()
		return res
	}
	res.Raw = raw
	for _, st := range statuses {
		if st.BundleID != "" && st.BundleID != bundleID {
			continue
		}
		return fromBundleStatus(res, st)
	}

	inflight, raw, err := s.client.GetInflightBundleStatuses(ctx, []string{bundleID})
	if err != nil {
		s.logger.DebugContext(ctx, "inflight status poll failed",
			slog.String("bundle_id", bundleID),
			slog.String("error", err.Error()),
		)
		return res
	}
	for _, st := range inflight {
		if st.BundleID != "" && st.BundleID != bundleID {
			continue
		}
		res.Raw = raw
		return fromInflightStatus(res, st)
	}
	return res
}

func fromBundleStatus(res domain.SubmissionResult, st jito.BundleStatus) domain.SubmissionResult {
	res.Slot = st.Slot
	res.ConfirmationStatus = st.ConfirmationStatus
	if !st.Succeeded() {
		res.Status = domain.BundleFailed
		res.Err = string(st.Err)
		return res
	}
	switch strings.ToLower(st.ConfirmationStatus) {
	case "confirmed", "finalized":
		res.Status = domain.BundleLanded
	case "processed":
		res.Status = domain.BundlePending
	default:
		res.Status = domain.BundleUnknown
	}
	return res
}

func fromInflightStatus(res domain.SubmissionResult, st jito.InflightStatus) domain.SubmissionResult {
	switch st.Status {
	case "Landed":
		res.Status = domain.BundleLanded
		res.Slot = st.LandedSlot
	case "Failed", "Invalid":
		res.Status = domain.BundleFailed
		res.Err = st.Status
	case "Pending":
		res.Status = domain.BundlePending
	default:
		res.Status = domain.BundleUnknown
	}
	return res
}

// Await polls until the bundle is terminal or MaxAttempts polls have been
// made, sleeping between polls with a doubling backoff. When attempts run
// out it returns an unknown result and an error wrapping
// domain.ErrUnknownOutcome. An unknown outcome is never reported as failed.
func (s *Submitter) Await(ctx context.Context, bundleID string) (domain.SubmissionResult, error) {
	backoff := s.cfg.InitialBackoff
	var last domain.SubmissionResult
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		last = s.PollStatus(ctx, bundleID)
		last.Attempts = attempt
		if last.Terminal() {
			s.logger.InfoContext(ctx, "bundle resolved",
				slog.String("bundle_id", bundleID),
				slog.String("status", string(last.Status)),
				slog.Uint64("slot", last.Slot),
				slog.Int("attempts", attempt),
			)
			return last, nil
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			last.Status = domain.BundleUnknown
			return last, fmt.Errorf("relay: await %s: %w: %w", bundleID, domain.ErrUnknownOutcome, ctx.Err())
		case <-s.clock.After(backoff):
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}

	last.Status = domain.BundleUnknown
	s.logger.WarnContext(ctx, "bundle outcome unknown after max attempts",
		slog.String("bundle_id", bundleID),
		slog.Int("attempts", last.Attempts),
	)
	return last, fmt.Errorf("relay: await %s: %w", bundleID, domain.ErrUnknownOutcome)
}

// IsUnknown reports whether err is an unresolved-outcome error.
func IsUnknown(err error) bool {
	return errors.Is(err, domain.ErrUnknownOutcome)
}
