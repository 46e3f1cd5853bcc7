// Package jupiter is the REST client for the Jupiter price and swap APIs. It
// serves as the price oracle and the routing venue.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// Limiter throttles outbound requests per key. It is optional.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// limiterKey is shared by every Jupiter endpoint since they draw from one
// API quota.
const limiterKey = "jupiter"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// httpError is a non-2xx response.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doRequest sends a request and returns the raw body of a 2xx response.
func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := strings.TrimSpace(string(body))
	if len(bodyStr) > 512 {
		bodyStr = bodyStr[:512]
	}
	if statusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	}
	return &httpError{StatusCode: statusCode, Body: bodyStr}
}

func isHTTPStatus(err error, code int) (*httpError, bool) {
	var he *httpError
	if errors.As(err, &he) && he.StatusCode == code {
		return he, true
	}
	return nil, false
}

// parseDecimal accepts a JSON string or number. Null, empty and malformed
// values report false.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return decimal.Zero, false
		}
		s = strings.TrimSpace(str)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
