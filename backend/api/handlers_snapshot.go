package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marcusklein/windowtrader/backend/execution"
	"github.com/marcusklein/windowtrader/backend/models"
)

func newOrderFilter(symbol, status string, limit, offset int) execution.OrderFilter {
	return execution.OrderFilter{
		Symbol: symbol,
		Status: models.OrderStatus(status),
		Limit:  limit,
		Offset: offset,
	}
}

// GetPositionsHandler returns every open position.
func (h *Handler) GetPositionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.PositionsSnapshot())
}

// GetBalanceHandler returns the current account balance.
func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.BalanceSnapshot())
}

// GetTradesHandler returns every fill in execution order.
func (h *Handler) GetTradesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.TradesSnapshot())
}

// GetPnlHandler returns the current realized/unrealized P&L summary.
func (h *Handler) GetPnlHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.PnlSnapshot())
}

// GetOrdersHandler lists orders, optionally filtered by symbol/status and
// paginated via limit/offset query params.
func (h *Handler) GetOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	orders, total, err := h.orderManager.GetOrders(newOrderFilter(q.Get("symbol"), q.Get("status"), limit, offset))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
	})
}

// GetOrderHandler returns a single order by ID.
func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.orderManager.GetOrder(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetMachinesHandler returns every Symbol Machine's current snapshot, for
// operator visibility into state/anchors/window id.
func (h *Handler) GetMachinesHandler(w http.ResponseWriter, r *http.Request) {
	machines := h.registry.All()
	out := make([]interface{}, 0, len(machines))
	for _, m := range machines {
		out = append(out, m.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

// GetNotificationsHandler returns recent notifications.
func (h *Handler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit == 0 {
		limit = 50
	}
	notifications, err := h.notifications.GetHistory(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// MarkAllNotificationsReadHandler marks every notification as read.
func (h *Handler) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllAsRead(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkNotificationReadHandler marks a single notification as read.
func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.notifications.MarkAsRead(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
