package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// PriceConfig configures the price oracle client.
type PriceConfig struct {
	// BaseURL is the price endpoint, e.g. "https://api.jup.ag/price/v2".
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PriceClient fetches quoted buy/sell prices with confidence levels. It does
// not cache; every call hits the network.
type PriceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    Limiter
	now        func() time.Time
	logger     *slog.Logger
}

// NewPriceClient creates a PriceClient.
func NewPriceClient(cfg PriceConfig, logger *slog.Logger) *PriceClient {
	return &PriceClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg.Timeout),
		now:        time.Now,
		logger:     logger.With(slog.String("component", "price_oracle")),
	}
}

type priceResponse struct {
	Data *map[string]json.RawMessage `json:"data"`
}

type priceEntry struct {
	ExtraInfo *struct {
		QuotedPrice *struct {
			BuyPrice  json.RawMessage `json:"buyPrice"`
			SellPrice json.RawMessage `json:"sellPrice"`
		} `json:"quotedPrice"`
		ConfidenceLevel string `json:"confidenceLevel"`
	} `json:"extraInfo"`
}

// SetLimiter throttles every request through l.
func (c *PriceClient) SetLimiter(l Limiter) { c.limiter = l }

// FetchQuotes returns the quotes for assetIDs in request order. Entries with
// missing or malformed fields are left out. Any transport, HTTP or decoding
// failure returns an empty set and an error wrapping
// domain.ErrOracleUnavailable.
func (c *PriceClient) FetchQuotes(ctx context.Context, assetIDs []string) (domain.QuoteSet, error) {
	if len(assetIDs) == 0 {
		return domain.NewQuoteSet(), nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return domain.NewQuoteSet(), fmt.Errorf("jupiter/price: %w: %v", domain.ErrOracleUnavailable, err)
		}
	}

	params := url.Values{}
	params.Set("ids", strings.Join(assetIDs, ","))
	params.Set("showExtraInfo", "true")
	endpoint := c.baseURL + "?" + params.Encode()

	body, err := doRequest(ctx, c.httpClient, http.MethodGet, endpoint, c.apiKey, nil)
	if err != nil {
		return domain.NewQuoteSet(), fmt.Errorf("jupiter/price: %w: %v", domain.ErrOracleUnavailable, err)
	}

	var resp priceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.NewQuoteSet(), fmt.Errorf("jupiter/price: %w: decode: %v", domain.ErrOracleUnavailable, err)
	}
	if resp.Data == nil {
		return domain.NewQuoteSet(), fmt.Errorf("jupiter/price: %w: response has no data field", domain.ErrOracleUnavailable)
	}

	observed := c.now()
	quotes := make([]domain.Quote, 0, len(assetIDs))
	for _, id := range assetIDs {
		raw, ok := (*resp.Data)[id]
		if !ok {
			c.logger.DebugContext(ctx, "no price entry", slog.String("asset_id", id))
			continue
		}
		q, ok := decodeQuote(id, raw, observed)
		if !ok {
			c.logger.DebugContext(ctx, "incomplete price entry treated as absent", slog.String("asset_id", id))
			continue
		}
		quotes = append(quotes, q)
	}
	return domain.NewQuoteSet(quotes...), nil
}

func decodeQuote(id string, raw json.RawMessage, observed time.Time) (domain.Quote, bool) {
	var entry *priceEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
		return domain.Quote{}, false
	}
	if entry.ExtraInfo == nil || entry.ExtraInfo.QuotedPrice == nil {
		return domain.Quote{}, false
	}
	buy, ok := parseDecimal(entry.ExtraInfo.QuotedPrice.BuyPrice)
	if !ok || buy.Sign() <= 0 {
		return domain.Quote{}, false
	}
	sell, ok := parseDecimal(entry.ExtraInfo.QuotedPrice.SellPrice)
	if !ok || sell.Sign() <= 0 {
		return domain.Quote{}, false
	}
	conf, ok := domain.ParseConfidence(entry.ExtraInfo.ConfidenceLevel)
	if !ok {
		return domain.Quote{}, false
	}
	return domain.Quote{
		AssetID:    id,
		BuyPrice:   buy,
		SellPrice:  sell,
		Confidence: conf,
		ObservedAt: observed,
	}, true
}
