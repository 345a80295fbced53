package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/marcusklein/windowtrader/backend/metrics"
	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/signals"
)

// SubmitSignalHandler implements the spec.md §6.1 intake webhook: a
// structured JSON body ({sym, side, at_price?}) when Content-Type is
// application/json, or a free-text body otherwise.
func (h *Handler) SubmitSignalHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", "BAD_REQUEST")
		return
	}

	var sig models.Signal
	var parseErr error
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		sig, parseErr = signals.ParseStructured(body)
	} else {
		sig, parseErr = signals.ParseFreeText(string(body))
	}
	if parseErr != nil {
		metrics.ObserveSignalRejected("invalid_signal")
		writeError(w, http.StatusBadRequest, parseErr.Error(), "INVALID_SIGNAL")
		return
	}

	if err := h.router.Submit(sig); err != nil {
		if marketClosed, ok := err.(*signals.ErrMarketClosed); ok {
			metrics.ObserveSignalRejected("market_closed")
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"ignored": true,
				"reason":  marketClosed.Error(),
			})
			return
		}
		metrics.ObserveSignalRejected("invalid_signal")
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_SIGNAL")
		return
	}

	metrics.ObserveSignalAccepted(string(sig.Side))
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"sym":  sig.Symbol,
		"side": sig.Side,
	})
}
