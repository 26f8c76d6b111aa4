package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

type InventoryService interface {
	CreateProduct(ctx context.Context, in inventory.ProductInput) (*inventory.ProductStock, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*inventory.Product, error)
	ListProducts(ctx context.Context, filter inventory.ProductFilter) ([]inventory.Product, error)
	PostMovement(ctx context.Context, in inventory.MovementInput) (*inventory.StockMovement, error)
	PostMovementBySKU(ctx context.Context, sku string, in inventory.MovementInput) (*inventory.StockMovement, error)
	ListMovements(ctx context.Context, offset, limit int) ([]inventory.StockMovement, error)
	ListBalances(ctx context.Context, filter inventory.BalanceFilter) ([]inventory.Balance, error)
	Reconcile(ctx context.Context, stockItemID uuid.UUID) (*inventory.Reconciliation, error)
}

type CreateProductRequest struct {
	SKU         string              `json:"sku" validate:"required,max=64"`
	Name        string              `json:"name" validate:"required,max=160"`
	Description *string             `json:"description,omitempty" validate:"omitempty,max=1000"`
	Price       decimal.Decimal     `json:"price"`
	Cost        decimal.NullDecimal `json:"cost"`
	Unit        string              `json:"unit,omitempty" validate:"omitempty,max=8"`
	InitialQty  decimal.Decimal     `json:"initial_qty"`
	MinQuantity decimal.Decimal     `json:"min_quantity"`
}

type MovementRequest struct {
	SKU          string              `json:"sku,omitempty" validate:"required_without=StockItemID,max=64"`
	StockItemID  *string             `json:"stock_item_id,omitempty" validate:"omitempty,uuid"`
	MovementType string              `json:"movement_type" validate:"required"`
	Quantity     decimal.Decimal     `json:"quantity"`
	UnitPrice    decimal.NullDecimal `json:"unit_price"`
	Reason       *string             `json:"reason,omitempty" validate:"omitempty,max=255"`
	Reference    *string             `json:"reference,omitempty" validate:"omitempty,max=255"`
}

type StockHandler struct {
	service  InventoryService
	validate *validator.Validate
}

func NewStockHandler(service InventoryService) *StockHandler {
	return &StockHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *StockHandler) RegisterRoutes(router chi.Router) {
	router.Post("/products", h.handleCreateProduct)
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/stock", h.handleListBalances)
	router.Post("/stock/movements", h.handlePostMovement)
	router.Get("/stock/movements", h.handleListMovements)
	router.Get("/stock/{id}/reconciliation", h.handleReconcile)
}

func (h *StockHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), inventory.ProductInput{
		SKU:             requestPayload.SKU,
		Name:            requestPayload.Name,
		Description:     requestPayload.Description,
		Price:           requestPayload.Price,
		Cost:            requestPayload.Cost,
		Unit:            requestPayload.Unit,
		InitialQuantity: requestPayload.InitialQty,
		MinQuantity:     requestPayload.MinQuantity,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *StockHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter := inventory.ProductFilter{Search: r.URL.Query().Get("search")}

	var ok bool
	if filter.Active, ok = queryBool(w, r, "active"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *StockHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, product)
}

func (h *StockHandler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	filter := inventory.BalanceFilter{Search: r.URL.Query().Get("search")}

	lowStock, ok := queryBool(w, r, "low_stock")
	if !ok {
		return
	}
	filter.LowStockOnly = lowStock != nil && *lowStock

	balances, err := h.service.ListBalances(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list stock")
		return
	}

	respondWithJSON(w, http.StatusOK, balances)
}

func (h *StockHandler) handlePostMovement(w http.ResponseWriter, r *http.Request) {
	var requestPayload MovementRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	kind, err := inventory.ParseMovementKind(requestPayload.MovementType)
	if err != nil {
		respondWithServiceError(w, err, "Failed to post movement")
		return
	}

	in := inventory.MovementInput{
		Kind:      kind,
		Quantity:  requestPayload.Quantity,
		UnitPrice: requestPayload.UnitPrice,
		Reason:    requestPayload.Reason,
		Reference: requestPayload.Reference,
	}

	var movement *inventory.StockMovement
	if requestPayload.StockItemID != nil {
		in.StockItemID = uuid.FromStringOrNil(*requestPayload.StockItemID)
		movement, err = h.service.PostMovement(r.Context(), in)
	} else {
		movement, err = h.service.PostMovementBySKU(r.Context(), requestPayload.SKU, in)
	}
	if err != nil {
		respondWithServiceError(w, err, "Failed to post movement")
		return
	}

	respondWithJSON(w, http.StatusCreated, movement)
}

func (h *StockHandler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	movements, err := h.service.ListMovements(r.Context(), offset, limit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list movements")
		return
	}

	respondWithJSON(w, http.StatusOK, movements)
}

func (h *StockHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to reconcile stock item")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}
