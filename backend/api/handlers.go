// Package api provides the REST API for windowtrader: a signal-intake
// webhook and a set of read-only snapshot routes over the Paper Broker
// and Symbol Machine registry.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/config"
	"github.com/marcusklein/windowtrader/backend/execution"
	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/markethours"
	"github.com/marcusklein/windowtrader/backend/notifications"
	"github.com/marcusklein/windowtrader/backend/realtime"
	"github.com/marcusklein/windowtrader/backend/signals"
)

// Handler holds the HTTP handlers for the API.
type Handler struct {
	cfg           *config.Config
	registry      *machine.Registry
	router        *signals.Router
	broker        *execution.PaperBroker
	orderManager  *execution.OrderManager
	wsManager     *realtime.WebSocketManager
	notifications *notifications.Manager
	gate          *markethours.Gate
	startTime     time.Time
}

// NewHandler creates a new handler instance.
func NewHandler(
	cfg *config.Config,
	registry *machine.Registry,
	router *signals.Router,
	broker *execution.PaperBroker,
	orderManager *execution.OrderManager,
	wsManager *realtime.WebSocketManager,
	notificationManager *notifications.Manager,
	gate *markethours.Gate,
) *Handler {
	return &Handler{
		cfg:           cfg,
		registry:      registry,
		router:        router,
		broker:        broker,
		orderManager:  orderManager,
		wsManager:     wsManager,
		notifications: notificationManager,
		gate:          gate,
		startTime:     time.Now(),
	}
}

// APIError represents a standard API error response.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError writes a JSON error response. The optional code argument
// allows specifying a machine-readable error code; it defaults to a
// generic code inferred from status.
func writeError(w http.ResponseWriter, status int, message string, code ...string) {
	errCode := "UNKNOWN_ERROR"
	if len(code) > 0 {
		errCode = code[0]
	} else {
		switch status {
		case http.StatusBadRequest:
			errCode = "BAD_REQUEST"
		case http.StatusNotFound:
			errCode = "NOT_FOUND"
		case http.StatusServiceUnavailable:
			errCode = "SERVICE_UNAVAILABLE"
		case http.StatusInternalServerError:
			errCode = "INTERNAL_ERROR"
		}
	}
	writeJSON(w, status, APIError{Error: message, Code: errCode})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("api: failed to write JSON response")
	}
}
