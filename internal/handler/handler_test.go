package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"price-history/internal/domain"
	"price-history/internal/repository"
	"price-history/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(store *handlerRecordStoreStub, tables *handlerTableSourceStub) *Handler {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	now := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return New(
		tracer,
		service.NewBasePriceService(tracer, store, tables, "jetwallet", now),
		NewPriceHub(),
	)
}

func newTestRouter(h *Handler) *gin.Engine {
	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func TestHealth(t *testing.T) {
	router := newTestRouter(newTestHandler(&handlerRecordStoreStub{}, &handlerTableSourceStub{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetAllPrices(t *testing.T) {
	store := &handlerRecordStoreStub{records: []*domain.PriceRecord{
		{BrokerID: "jetwallet", Symbol: "BTCUSD", CurrentPrice: decimal.NewFromInt(30000)},
	}}
	router := newTestRouter(newTestHandler(store, &handlerTableSourceStub{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Prices []struct {
			Symbol string `json:"symbol"`
		} `json:"prices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(resp.Prices) != 1 || resp.Prices[0].Symbol != "BTCUSD" {
		t.Fatalf("unexpected payload: %s", w.Body.String())
	}
}

func TestGetPriceUppercasesSymbol(t *testing.T) {
	store := &handlerRecordStoreStub{records: []*domain.PriceRecord{
		{BrokerID: "jetwallet", Symbol: "BTCUSD", CurrentPrice: decimal.NewFromInt(30000)},
	}}
	router := newTestRouter(newTestHandler(store, &handlerTableSourceStub{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/prices/btcusd", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetPriceNotFound(t *testing.T) {
	router := newTestRouter(newTestHandler(&handlerRecordStoreStub{}, &handlerTableSourceStub{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/prices/NOPE", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestEditPrice(t *testing.T) {
	store := &handlerRecordStoreStub{}
	router := newTestRouter(newTestHandler(store, &handlerTableSourceStub{}))

	body := `{"currentPrice":"30000","h24":"29000","d7":"28000","m1":"27000","m3":"26000"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/prices/BTCUSD", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.upserted == nil {
		t.Fatal("expected the edit to be persisted")
	}
	if !store.upserted.H24P.Equal(decimal.RequireFromString("3.45")) {
		t.Fatalf("expected derived 24h change 3.45, got %s", store.upserted.H24P)
	}
}

func TestEditPriceBadPayload(t *testing.T) {
	router := newTestRouter(newTestHandler(&handlerRecordStoreStub{}, &handlerTableSourceStub{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/prices/BTCUSD", strings.NewReader(`{"currentPrice":`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetAllRates(t *testing.T) {
	tables := &handlerTableSourceStub{tables: []*domain.AssetRateTable{
		{BrokerID: "jetwallet", BaseAsset: "USD", Rates: map[string]domain.RateVector{}},
	}}
	router := newTestRouter(newTestHandler(&handlerRecordStoreStub{}, tables))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rates", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "USD") {
		t.Fatalf("unexpected payload: %s", w.Body.String())
	}
}

func TestGetRateNotFound(t *testing.T) {
	router := newTestRouter(newTestHandler(&handlerRecordStoreStub{}, &handlerTableSourceStub{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rates/EUR", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

type handlerRecordStoreStub struct {
	records  []*domain.PriceRecord
	upserted *domain.PriceRecord
}

func (s *handlerRecordStoreStub) Get(ctx context.Context, brokerID string) ([]*domain.PriceRecord, error) {
	return s.records, nil
}

func (s *handlerRecordStoreStub) GetBySymbol(ctx context.Context, brokerID, symbol string) (*domain.PriceRecord, error) {
	if s.upserted != nil && s.upserted.Symbol == symbol {
		return s.upserted.Clone(), nil
	}
	for _, rec := range s.records {
		if rec.Symbol == symbol {
			return rec.Clone(), nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (s *handlerRecordStoreStub) Upsert(ctx context.Context, rec *domain.PriceRecord) error {
	s.upserted = rec.Clone()
	return nil
}

type handlerTableSourceStub struct {
	tables []*domain.AssetRateTable
}

func (s *handlerTableSourceStub) Get(ctx context.Context, brokerID, baseAsset string) (*domain.AssetRateTable, error) {
	for _, tbl := range s.tables {
		if tbl.BaseAsset == baseAsset {
			return tbl, nil
		}
	}
	return nil, repository.ErrTableNotFound
}

func (s *handlerTableSourceStub) List(ctx context.Context) ([]*domain.AssetRateTable, error) {
	return s.tables, nil
}
