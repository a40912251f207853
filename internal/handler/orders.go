package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"flashbot-backend/internal/orders"
	"flashbot-backend/pkg/apierror"
	"flashbot-backend/pkg/response"
)

// OrdersHandler answers order-status lookups directly, bypassing the chat
// intent detection.
type OrdersHandler struct {
	reader *orders.Reader
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(reader *orders.Reader) *OrdersHandler {
	return &OrdersHandler{reader: reader}
}

// OrderStatusRequest is the order lookup request body.
type OrderStatusRequest struct {
	OrderNumber string `json:"order_number"`
}

// OrderStatusResponse is the order lookup response body.
type OrderStatusResponse struct {
	Found  bool       `json:"found"`
	Order  orders.Row `json:"order,omitempty"`
	Render string     `json:"render,omitempty"`
}

// Status handles POST /api/orders/status
func (h *OrdersHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.OrderNumber == "" {
		response.Error(w, apierror.BadRequest("order_number is required"))
		return
	}

	row, err := h.reader.Lookup(r.Context(), req.OrderNumber)
	if err != nil {
		log.Printf("[OrdersHandler] Lookup failed: %v", err)
		response.Error(w, apierror.ServiceUnavailable("orders report is unavailable"))
		return
	}
	if row == nil {
		response.OK(w, OrderStatusResponse{Found: false})
		return
	}

	response.OK(w, OrderStatusResponse{
		Found:  true,
		Order:  row,
		Render: orders.RenderVertical(row),
	})
}
