package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/alanyoungcy/jitoarb/internal/bundle"
	"github.com/alanyoungcy/jitoarb/internal/clock"
	"github.com/alanyoungcy/jitoarb/internal/domain"
	"github.com/alanyoungcy/jitoarb/internal/platform/jito"
)

type fakeClient struct {
	sendID    string
	sendErr   error
	sent      [][]string
	statuses  [][]jito.BundleStatus
	inflight  []jito.InflightStatus
	statusErr error
	polls     int
}

func (f *fakeClient) SendBundle(_ context.Context, txs []string) (string, error) {
	f.sent = append(f.sent, txs)
	return f.sendID, f.sendErr
}

func (f *fakeClient) GetBundleStatuses(context.Context, []string) ([]jito.BundleStatus, json.RawMessage, error) {
	f.polls++
	if f.statusErr != nil {
		return nil, nil, f.statusErr
	}
	if len(f.statuses) == 0 {
		return nil, json.RawMessage(`null`), nil
	}
	i := min(f.polls-1, len(f.statuses)-1)
	return f.statuses[i], json.RawMessage(`{}`), nil
}

func (f *fakeClient) GetInflightBundleStatuses(context.Context, []string) ([]jito.InflightStatus, json.RawMessage, error) {
	return f.inflight, json.RawMessage(`{}`), nil
}

type walletSigner struct{ key solana.PrivateKey }

func (w walletSigner) PublicKey() solana.PublicKey { return w.key.PublicKey() }

func (w walletSigner) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk == w.key.PublicKey() {
			return &w.key
		}
		return nil
	})
	return err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func signedBundle(t *testing.T) domain.Bundle {
	t.Helper()
	signer := walletSigner{key: solana.NewWallet().PrivateKey}
	b := bundle.NewBuilder(signer, bundle.FixedSelector{}, discard())
	route := domain.Route{Instructions: []solana.Instruction{
		system.NewTransferInstruction(1, signer.PublicKey(), solana.NewWallet().PublicKey()).Build(),
	}}
	out, err := b.Build(route, bundle.Params{
		TipLamports:     100_000,
		Pool:            bundle.NewDefaultPool().Snapshot(),
		RecentBlockhash: solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return out
}

func TestSubmitSendsEncodedTransactions(t *testing.T) {
	fc := &fakeClient{sendID: "bundle-1"}
	s := NewSubmitter(fc, Config{}, clock.NewFake(time.Unix(0, 0)), discard())

	res, err := s.Submit(context.Background(), signedBundle(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.BundleID != "bundle-1" || res.Status != domain.BundlePending {
		t.Fatalf("result = %+v", res)
	}
	if len(fc.sent) != 1 || len(fc.sent[0]) != 1 || fc.sent[0][0] == "" {
		t.Fatalf("sent = %v", fc.sent)
	}
}

func TestSubmitRelayErrorWrapsErrSubmit(t *testing.T) {
	fc := &fakeClient{sendErr: errors.New("jito: sendBundle: HTTP 503")}
	s := NewSubmitter(fc, Config{}, nil, discard())
	if _, err := s.Submit(context.Background(), signedBundle(t)); !errors.Is(err, domain.ErrSubmit) {
		t.Fatalf("err = %v, want ErrSubmit", err)
	}
}

func TestSubmitBlockEngineRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bundle contains an already processed transaction"}}`))
	}))
	defer srv.Close()

	client := jito.NewClient(jito.Config{BlockEngineURL: srv.URL}, discard())
	s := NewSubmitter(client, Config{}, nil, discard())

	_, err := s.Submit(context.Background(), signedBundle(t))
	if !errors.Is(err, domain.ErrSubmit) {
		t.Fatalf("err = %v, want ErrSubmit", err)
	}
	var rpcErr *jito.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Fatalf("err = %v, want block engine error code", err)
	}
}

func TestSubmitRejectsUnsignedBundle(t *testing.T) {
	fc := &fakeClient{sendID: "x"}
	s := NewSubmitter(fc, Config{}, nil, discard())

	b := signedBundle(t)
	b.Transactions[0].Signatures = nil
	if _, err := s.Submit(context.Background(), b); !errors.Is(err, domain.ErrInvalidBundle) {
		t.Fatalf("err = %v, want ErrInvalidBundle", err)
	}
	if len(fc.sent) != 0 {
		t.Fatal("invalid bundle reached the relay")
	}
}

func TestPollStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		statuses []jito.BundleStatus
		inflight []jito.InflightStatus
		err      error
		want     domain.BundleStatus
	}{
		{name: "finalized ok", statuses: []jito.BundleStatus{{BundleID: "b", ConfirmationStatus: "finalized", Err: json.RawMessage(`{"Ok":null}`), Slot: 7}}, want: domain.BundleLanded},
		{name: "confirmed ok", statuses: []jito.BundleStatus{{BundleID: "b", ConfirmationStatus: "confirmed", Err: json.RawMessage(`{"Ok":null}`)}}, want: domain.BundleLanded},
		{name: "processed", statuses: []jito.BundleStatus{{BundleID: "b", ConfirmationStatus: "processed", Err: json.RawMessage(`{"Ok":null}`)}}, want: domain.BundlePending},
		{name: "err payload", statuses: []jito.BundleStatus{{BundleID: "b", ConfirmationStatus: "confirmed", Err: json.RawMessage(`{"Err":"x"}`)}}, want: domain.BundleFailed},
		{name: "absent", want: domain.BundleUnknown},
		{name: "other bundle only", statuses: []jito.BundleStatus{{BundleID: "z", ConfirmationStatus: "finalized"}}, want: domain.BundleUnknown},
		{name: "transport error", err: errors.New("timeout"), want: domain.BundleUnknown},
		{name: "inflight landed", inflight: []jito.InflightStatus{{BundleID: "b", Status: "Landed", LandedSlot: 3}}, want: domain.BundleLanded},
		{name: "inflight invalid", inflight: []jito.InflightStatus{{BundleID: "b", Status: "Invalid"}}, want: domain.BundleFailed},
		{name: "inflight pending", inflight: []jito.InflightStatus{{BundleID: "b", Status: "Pending"}}, want: domain.BundlePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{inflight: tt.inflight, statusErr: tt.err}
			if tt.statuses != nil {
				fc.statuses = [][]jito.BundleStatus{tt.statuses}
			}
			s := NewSubmitter(fc, Config{}, nil, discard())
			got := s.PollStatus(context.Background(), "b")
			if got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}
			if got.BundleID != "b" {
				t.Fatalf("bundle id = %q", got.BundleID)
			}
		})
	}
}

func TestAwaitUnknownAfterMaxAttempts(t *testing.T) {
	fc := &fakeClient{}
	clk := clock.NewFake(time.Unix(0, 0))
	s := NewSubmitter(fc, Config{MaxAttempts: 4, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}, clk, discard())

	res, err := s.Await(context.Background(), "b")
	if !errors.Is(err, domain.ErrUnknownOutcome) {
		t.Fatalf("err = %v, want ErrUnknownOutcome", err)
	}
	if res.Status != domain.BundleUnknown {
		t.Fatalf("status = %s, want unknown (never failed)", res.Status)
	}
	if fc.polls != 4 || res.Attempts != 4 {
		t.Fatalf("polls = %d attempts = %d, want 4", fc.polls, res.Attempts)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	got := clk.Delays()
	if len(got) != len(want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delays = %v, want %v", got, want)
		}
	}
}

func TestAwaitStopsOnTerminal(t *testing.T) {
	fc := &fakeClient{statuses: [][]jito.BundleStatus{
		{{BundleID: "b", ConfirmationStatus: "processed", Err: json.RawMessage(`{"Ok":null}`)}},
		{{BundleID: "b", ConfirmationStatus: "confirmed", Err: json.RawMessage(`{"Ok":null}`), Slot: 11}},
	}}
	clk := clock.NewFake(time.Unix(0, 0))
	s := NewSubmitter(fc, Config{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: time.Minute}, clk, discard())

	res, err := s.Await(context.Background(), "b")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Status != domain.BundleLanded || res.Slot != 11 || res.Attempts != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(clk.Delays()) != 1 {
		t.Fatalf("slept %d times, want 1", len(clk.Delays()))
	}
}

func TestAwaitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSubmitter(&fakeClient{}, Config{MaxAttempts: 3, InitialBackoff: time.Hour}, clock.NewReal(), discard())
	res, err := s.Await(ctx, "b")
	if !IsUnknown(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res.Status != domain.BundleUnknown {
		t.Fatalf("status = %s", res.Status)
	}
}
