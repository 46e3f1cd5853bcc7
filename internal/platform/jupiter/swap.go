package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// SwapConfig configures the swap client.
type SwapConfig struct {
	// BaseURL is the swap API root, e.g. "https://api.jup.ag/swap/v1".
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SwapClient quotes routes and turns a chosen quote into raw instructions.
// Every request asks for legacy-transaction compatible routes so the
// instructions can be signed together with a tip transfer.
type SwapClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    Limiter
	logger     *slog.Logger
}

// NewSwapClient creates a SwapClient.
func NewSwapClient(cfg SwapConfig, logger *slog.Logger) *SwapClient {
	return &SwapClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg.Timeout),
		logger:     logger.With(slog.String("component", "jupiter_swap")),
	}
}

// SetLimiter throttles every request through l.
func (c *SwapClient) SetLimiter(l Limiter) { c.limiter = l }

func (c *SwapClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, limiterKey)
}

// quoteVariants are the two route shapes requested per resolution.
var quoteVariants = []struct {
	name   string
	direct bool
}{
	{name: "jupiter-direct", direct: true},
	{name: "jupiter", direct: false},
}

// Candidates quotes every route variant for req. A failed variant is logged
// and skipped; an error is returned only when every variant failed. Zero
// candidates with a nil error means the venue found no route.
func (c *SwapClient) Candidates(ctx context.Context, req domain.RouteRequest) ([]domain.RouteCandidate, error) {
	var (
		out  []domain.RouteCandidate
		errs []error
	)
	for _, v := range quoteVariants {
		cand, found, err := c.quote(ctx, req, v.direct)
		if err != nil {
			c.logger.WarnContext(ctx, "quote failed",
				slog.String("variant", v.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		if !found {
			continue
		}
		cand.Source = v.name
		out = append(out, cand)
	}
	if len(errs) == len(quoteVariants) {
		return nil, fmt.Errorf("jupiter/swap: quote: %w", errors.Join(errs...))
	}
	return out, nil
}

type quoteResponse struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       json.RawMessage `json:"priceImpactPct"`
	RoutePlan            []struct {
		SwapInfo struct {
			AmmKey     string `json:"ammKey"`
			Label      string `json:"label"`
			InputMint  string `json:"inputMint"`
			OutputMint string `json:"outputMint"`
			InAmount   string `json:"inAmount"`
			OutAmount  string `json:"outAmount"`
		} `json:"swapInfo"`
		Percent int `json:"percent"`
	} `json:"routePlan"`
}

// noRouteCodes are the error codes the venue returns when no route exists.
var noRouteCodes = []string{"COULD_NOT_FIND_ANY_ROUTE", "NO_ROUTES_FOUND", "TOKEN_NOT_TRADABLE"}

func (c *SwapClient) quote(ctx context.Context, req domain.RouteRequest, direct bool) (domain.RouteCandidate, bool, error) {
	if err := c.wait(ctx); err != nil {
		return domain.RouteCandidate{}, false, err
	}

	params := url.Values{}
	params.Set("inputMint", req.InputMint.String())
	params.Set("outputMint", req.OutputMint.String())
	params.Set("amount", strconv.FormatUint(req.InputAmount, 10))
	params.Set("slippageBps", strconv.Itoa(int(req.MaxSlippageBps)))
	params.Set("onlyDirectRoutes", strconv.FormatBool(direct))
	params.Set("asLegacyTransaction", "true")

	body, err := doRequest(ctx, c.httpClient, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), c.apiKey, nil)
	if err != nil {
		if he, ok := isHTTPStatus(err, http.StatusBadRequest); ok && containsAny(he.Body, noRouteCodes) {
			return domain.RouteCandidate{}, false, nil
		}
		return domain.RouteCandidate{}, false, err
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return domain.RouteCandidate{}, false, fmt.Errorf("decode quote: %w", err)
	}
	if len(q.RoutePlan) == 0 {
		return domain.RouteCandidate{}, false, nil
	}
	cand, err := toCandidate(q)
	if err != nil {
		return domain.RouteCandidate{}, false, err
	}
	cand.Raw = json.RawMessage(body)
	return cand, true, nil
}

func toCandidate(q quoteResponse) (domain.RouteCandidate, error) {
	in, err := solana.PublicKeyFromBase58(q.InputMint)
	if err != nil {
		return domain.RouteCandidate{}, fmt.Errorf("quote input mint: %w", err)
	}
	out, err := solana.PublicKeyFromBase58(q.OutputMint)
	if err != nil {
		return domain.RouteCandidate{}, fmt.Errorf("quote output mint: %w", err)
	}
	inAmount, err := parseAmount(q.InAmount)
	if err != nil {
		return domain.RouteCandidate{}, fmt.Errorf("quote inAmount: %w", err)
	}
	outAmount, err := parseAmount(q.OutAmount)
	if err != nil {
		return domain.RouteCandidate{}, fmt.Errorf("quote outAmount: %w", err)
	}
	minOut, err := parseAmount(q.OtherAmountThreshold)
	if err != nil {
		return domain.RouteCandidate{}, fmt.Errorf("quote otherAmountThreshold: %w", err)
	}
	if q.SlippageBps < 0 || q.SlippageBps > 10_000 {
		return domain.RouteCandidate{}, fmt.Errorf("quote slippageBps %d out of range", q.SlippageBps)
	}
	impact, _ := parseDecimal(q.PriceImpactPct)

	hops := make([]domain.Hop, 0, len(q.RoutePlan))
	for _, step := range q.RoutePlan {
		hIn, _ := parseAmount(step.SwapInfo.InAmount)
		hOut, _ := parseAmount(step.SwapInfo.OutAmount)
		hops = append(hops, domain.Hop{
			Venue:      step.SwapInfo.Label,
			PoolID:     step.SwapInfo.AmmKey,
			InputMint:  step.SwapInfo.InputMint,
			OutputMint: step.SwapInfo.OutputMint,
			InAmount:   hIn,
			OutAmount:  hOut,
			Percent:    step.Percent,
		})
	}

	slippage := uint16(q.SlippageBps)
	return domain.RouteCandidate{
		Route: domain.Route{
			InputMint:            in,
			OutputMint:           out,
			InputAmount:          inAmount,
			ExpectedOutputAmount: outAmount,
			MinOutputAmount:      minOut,
			Hops:                 hops,
			MaxSlippageBps:       slippage,
			PriceImpactPct:       impact,
		},
		SlippageBps: slippage,
	}, nil
}

type swapInstructionsRequest struct {
	QuoteResponse       json.RawMessage `json:"quoteResponse"`
	UserPublicKey       string          `json:"userPublicKey"`
	WrapAndUnwrapSol    bool            `json:"wrapAndUnwrapSol"`
	AsLegacyTransaction bool            `json:"asLegacyTransaction"`
}

type wireAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

type wireInstruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []wireAccount `json:"accounts"`
	Data      string        `json:"data"`
}

type swapInstructionsResponse struct {
	ComputeBudgetInstructions   []wireInstruction `json:"computeBudgetInstructions"`
	SetupInstructions           []wireInstruction `json:"setupInstructions"`
	SwapInstruction             *wireInstruction  `json:"swapInstruction"`
	CleanupInstruction          *wireInstruction  `json:"cleanupInstruction"`
	AddressLookupTableAddresses []string          `json:"addressLookupTableAddresses"`
	Error                       string            `json:"error"`
}

// SwapInstructions materialises cand for user. The result is ordered
// compute-budget, setup, swap, cleanup.
func (c *SwapClient) SwapInstructions(ctx context.Context, cand domain.RouteCandidate, user solana.PublicKey) ([]solana.Instruction, error) {
	if len(cand.Raw) == 0 {
		return nil, fmt.Errorf("jupiter/swap: swap-instructions: candidate has no quote payload")
	}
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("jupiter/swap: swap-instructions: %w", err)
	}
	reqBody := swapInstructionsRequest{
		QuoteResponse:       cand.Raw,
		UserPublicKey:       user.String(),
		WrapAndUnwrapSol:    true,
		AsLegacyTransaction: true,
	}
	body, err := doRequest(ctx, c.httpClient, http.MethodPost, c.baseURL+"/swap-instructions", c.apiKey, reqBody)
	if err != nil {
		return nil, fmt.Errorf("jupiter/swap: swap-instructions: %w", err)
	}

	var resp swapInstructionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("jupiter/swap: decode swap-instructions: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("jupiter/swap: swap-instructions: %s", resp.Error)
	}
	if resp.SwapInstruction == nil {
		return nil, fmt.Errorf("jupiter/swap: swap-instructions: response has no swap instruction")
	}
	if len(resp.AddressLookupTableAddresses) > 0 {
		return nil, fmt.Errorf("jupiter/swap: swap-instructions: route needs %d lookup tables, legacy transaction cannot carry them",
			len(resp.AddressLookupTableAddresses))
	}

	wire := make([]wireInstruction, 0, len(resp.ComputeBudgetInstructions)+len(resp.SetupInstructions)+2)
	wire = append(wire, resp.ComputeBudgetInstructions...)
	wire = append(wire, resp.SetupInstructions...)
	wire = append(wire, *resp.SwapInstruction)
	if resp.CleanupInstruction != nil {
		wire = append(wire, *resp.CleanupInstruction)
	}

	out := make([]solana.Instruction, 0, len(wire))
	for i, w := range wire {
		ix, err := w.decode()
		if err != nil {
			return nil, fmt.Errorf("jupiter/swap: instruction %d: %w", i, err)
		}
		out = append(out, ix)
	}
	return out, nil
}

func (w wireInstruction) decode() (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(w.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	metas := make(solana.AccountMetaSlice, 0, len(w.Accounts))
	for _, a := range w.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.Pubkey, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}
	return solana.NewInstruction(programID, metas, data), nil
}

func parseAmount(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
