package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/order"
)

type OrderService interface {
	CreateOrder(ctx context.Context, d order.Draft) (*order.Order, error)
	IngestWebhook(ctx context.Context, payload any) (*order.Order, bool, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status order.Status) (*order.Order, error)
}

type OrderLineRequest struct {
	SKU       string          `json:"sku" validate:"required,max=64"`
	Name      string          `json:"name" validate:"required,max=160"`
	Qty       int             `json:"qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderRequest struct {
	CustomerName string             `json:"customer_name" validate:"required,max=120"`
	Items        []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
	Note         *string            `json:"note,omitempty" validate:"omitempty,max=500"`
	ExternalCode *string            `json:"external_code,omitempty" validate:"omitempty,min=1,max=64"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=CREATED CONFIRMED IN_PREPARATION READY FULFILLED CANCELLED"`
}

type WebhookResponse struct {
	Created bool         `json:"created"`
	Order   *order.Order `json:"order"`
}

type OrderHandler struct {
	service  OrderService
	validate *validator.Validate
}

func NewOrderHandler(service OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/manual", h.handleCreateManual)
	router.Post("/orders/webhook", h.handleWebhook)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}/status", h.handleSetStatus)
}

func (h *OrderHandler) handleCreateManual(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	draft := order.Draft{
		ExternalCode: requestPayload.ExternalCode,
		CustomerName: requestPayload.CustomerName,
		Note:         requestPayload.Note,
		Lines:        make([]order.DraftLine, 0, len(requestPayload.Items)),
	}
	for _, it := range requestPayload.Items {
		draft.Lines = append(draft.Lines, order.DraftLine{
			SKU:       it.SKU,
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}

	created, err := h.service.CreateOrder(r.Context(), draft)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// handleWebhook accepts any JSON document. Rejections are final for the
// sender: 400 for a malformed payload, 422 for an invalid line.
func (h *OrderHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload any
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode webhook body")
		respondWithError(w, http.StatusBadRequest, apperr.ErrMalformedPayload.Error()+": body is not valid JSON")
		return
	}

	o, created, err := h.service.IngestWebhook(r.Context(), payload)
	if err != nil {
		respondWithServiceError(w, err, "Failed to store webhook order")
		return
	}

	respondWithJSON(w, http.StatusOK, WebhookResponse{Created: created, Order: o})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var filter order.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid status parameter")
			return
		}
		filter.Status = &status
	}

	var ok bool
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.SetStatus(r.Context(), id, order.Status(requestPayload.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
