package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) CreateProduct(ctx context.Context, in inventory.ProductInput) (*inventory.ProductStock, error) {
	args := m.Called(ctx, in)
	ps, _ := args.Get(0).(*inventory.ProductStock)
	return ps, args.Error(1)
}

func (m *MockInventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*inventory.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*inventory.Product)
	return p, args.Error(1)
}

func (m *MockInventoryService) ListProducts(ctx context.Context, filter inventory.ProductFilter) ([]inventory.Product, error) {
	args := m.Called(ctx, filter)
	products, _ := args.Get(0).([]inventory.Product)
	return products, args.Error(1)
}

func (m *MockInventoryService) PostMovement(ctx context.Context, in inventory.MovementInput) (*inventory.StockMovement, error) {
	args := m.Called(ctx, in)
	mv, _ := args.Get(0).(*inventory.StockMovement)
	return mv, args.Error(1)
}

func (m *MockInventoryService) PostMovementBySKU(ctx context.Context, sku string, in inventory.MovementInput) (*inventory.StockMovement, error) {
	args := m.Called(ctx, sku, in)
	mv, _ := args.Get(0).(*inventory.StockMovement)
	return mv, args.Error(1)
}

func (m *MockInventoryService) ListMovements(ctx context.Context, offset, limit int) ([]inventory.StockMovement, error) {
	args := m.Called(ctx, offset, limit)
	movements, _ := args.Get(0).([]inventory.StockMovement)
	return movements, args.Error(1)
}

func (m *MockInventoryService) ListBalances(ctx context.Context, filter inventory.BalanceFilter) ([]inventory.Balance, error) {
	args := m.Called(ctx, filter)
	balances, _ := args.Get(0).([]inventory.Balance)
	return balances, args.Error(1)
}

func (m *MockInventoryService) Reconcile(ctx context.Context, stockItemID uuid.UUID) (*inventory.Reconciliation, error) {
	args := m.Called(ctx, stockItemID)
	rec, _ := args.Get(0).(*inventory.Reconciliation)
	return rec, args.Error(1)
}

var testStockItemID = uuid.Must(uuid.FromString("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))

func newStockRouter(svc InventoryService) http.Handler {
	r := chi.NewRouter()
	NewStockHandler(svc).RegisterRoutes(r)
	return r
}

func TestStockHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(m *MockInventoryService)
		expectedStatus int
	}{
		{
			name: "success",
			body: `{"sku":"A","name":"Widget","price":"2.50","initial_qty":10,"min_quantity":2}`,
			setupMock: func(m *MockInventoryService) {
				m.On("CreateProduct", mock.Anything, mock.MatchedBy(func(in inventory.ProductInput) bool {
					return in.SKU == "A" && in.InitialQuantity.Equal(decimal.NewFromInt(10)) &&
						in.Price.Equal(decimal.RequireFromString("2.5")) && !in.Cost.Valid
				})).Return(&inventory.ProductStock{
					Product:   inventory.Product{SKU: "A", Name: "Widget"},
					StockItem: inventory.StockItem{ID: testStockItemID, Quantity: decimal.NewFromInt(10)},
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "duplicate sku",
			body: `{"sku":"A","name":"Widget"}`,
			setupMock: func(m *MockInventoryService) {
				m.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, inventory.ErrDuplicateSKU).Once()
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "missing sku",
			body:           `{"name":"Widget"}`,
			setupMock:      func(m *MockInventoryService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInventoryService)
			tt.setupMock(svc)

			w := serve(newStockRouter(svc), http.MethodPost, "/products", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestStockHandler_PostMovement(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(m *MockInventoryService)
		expectedStatus int
	}{
		{
			name: "by stock item",
			body: `{"stock_item_id":"` + testStockItemID.String() + `","movement_type":"in","quantity":"5","unit_price":"1.20"}`,
			setupMock: func(m *MockInventoryService) {
				m.On("PostMovement", mock.Anything, mock.MatchedBy(func(in inventory.MovementInput) bool {
					return in.StockItemID == testStockItemID && in.Kind == inventory.MovementIn &&
						in.Quantity.Equal(decimal.NewFromInt(5)) && in.UnitPrice.Valid
				})).Return(&inventory.StockMovement{StockItemID: testStockItemID, Kind: inventory.MovementIn}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "by sku",
			body: `{"sku":"A","movement_type":"OUT","quantity":2,"reference":"manual"}`,
			setupMock: func(m *MockInventoryService) {
				m.On("PostMovementBySKU", mock.Anything, "A", mock.MatchedBy(func(in inventory.MovementInput) bool {
					return in.Kind == inventory.MovementOut && in.Reference != nil && *in.Reference == "manual"
				})).Return(&inventory.StockMovement{Kind: inventory.MovementOut}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "unknown sku",
			body: `{"sku":"NOPE","movement_type":"IN","quantity":1}`,
			setupMock: func(m *MockInventoryService) {
				m.On("PostMovementBySKU", mock.Anything, "NOPE", mock.Anything).Return(nil, inventory.ErrProductNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown movement type",
			body:           `{"sku":"A","movement_type":"TRANSFER","quantity":1}`,
			setupMock:      func(m *MockInventoryService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "no target",
			body:           `{"movement_type":"IN","quantity":1}`,
			setupMock:      func(m *MockInventoryService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad stock item id",
			body:           `{"stock_item_id":"xyz","movement_type":"IN","quantity":1}`,
			setupMock:      func(m *MockInventoryService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInventoryService)
			tt.setupMock(svc)

			w := serve(newStockRouter(svc), http.MethodPost, "/stock/movements", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestStockHandler_ListBalances(t *testing.T) {
	svc := new(MockInventoryService)
	svc.On("ListBalances", mock.Anything, inventory.BalanceFilter{Search: "wid", LowStockOnly: true}).
		Return([]inventory.Balance{{SKU: "A", Quantity: decimal.NewFromInt(1), MinQuantity: decimal.NewFromInt(2), BelowMinimum: true}}, nil).Once()

	w := serve(newStockRouter(svc), http.MethodGet, "/stock?search=wid&low_stock=true", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got []inventory.Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.True(t, got[0].BelowMinimum)
	svc.AssertExpectations(t)

	w = serve(newStockRouter(svc), http.MethodGet, "/stock?low_stock=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockHandler_ListMovementsAndProducts(t *testing.T) {
	svc := new(MockInventoryService)
	active := true
	svc.On("ListMovements", mock.Anything, 5, 10).Return([]inventory.StockMovement{}, nil).Once()
	svc.On("ListProducts", mock.Anything, inventory.ProductFilter{Search: "a", Active: &active, Limit: 3}).
		Return([]inventory.Product{{SKU: "A"}}, nil).Once()

	router := newStockRouter(svc)

	w := serve(router, http.MethodGet, "/stock/movements?offset=5&limit=10", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(router, http.MethodGet, "/products?search=a&active=true&limit=3", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	svc.AssertExpectations(t)
}

func TestStockHandler_GetProductAndReconcile(t *testing.T) {
	svc := new(MockInventoryService)
	svc.On("GetProduct", mock.Anything, testStockItemID).Return(nil, inventory.ErrProductNotFound).Once()
	svc.On("Reconcile", mock.Anything, testStockItemID).Return(&inventory.Reconciliation{
		StockItemID:     testStockItemID,
		InitialQuantity: decimal.NewFromInt(10),
		MovementSum:     decimal.NewFromInt(-3),
		MovementCount:   2,
		Expected:        decimal.NewFromInt(7),
		Actual:          decimal.NewFromInt(7),
		Balanced:        true,
	}, nil).Once()

	router := newStockRouter(svc)

	w := serve(router, http.MethodGet, "/products/"+testStockItemID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodGet, "/stock/"+testStockItemID.String()+"/reconciliation", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec inventory.Reconciliation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.True(t, rec.Balanced)
	assert.Equal(t, 2, rec.MovementCount)

	svc.AssertExpectations(t)
}
