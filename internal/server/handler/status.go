package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/jitoarb/internal/domain"
	"github.com/alanyoungcy/jitoarb/internal/executor"
)

// StatusSource exposes the loop snapshot.
type StatusSource interface {
	Status() executor.Status
}

// StatusHandler serves GET /api/status and GET /api/quotes.
type StatusHandler struct {
	mode   string
	wallet string
	loop   StatusSource
	quotes domain.QuoteStore
	assets []string
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler. quotes may be nil, in which case
// /api/quotes answers from the loop's in-memory snapshot.
func NewStatusHandler(mode, wallet string, loop StatusSource, quotes domain.QuoteStore, assets []string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:   mode,
		wallet: wallet,
		loop:   loop,
		quotes: quotes,
		assets: assets,
		logger: logHandler(logger, "status"),
	}
}

// GetStatus returns the mode, wallet and loop snapshot.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   h.mode,
		"wallet": h.wallet,
		"loop":   h.loop.Status(),
	})
}

// GetQuotes returns the latest quote per asset. ?assets=a,b narrows the set.
func (h *StatusHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	ids := splitList(r, "assets")
	if len(ids) == 0 {
		ids = h.assets
	}

	if h.quotes == nil {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		out := []domain.Quote{}
		for _, q := range h.loop.Status().Quotes {
			if want[q.AssetID] {
				out = append(out, q)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"quotes": out})
		return
	}

	quotes, err := h.quotes.GetQuotes(r.Context(), ids)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read quotes", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "quote store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}
