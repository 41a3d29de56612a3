package service

import (
	"context"
	"fmt"
	"time"

	"price-history/internal/domain"
	"price-history/internal/pricing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

type BasePriceStore interface {
	Get(ctx context.Context, brokerID string) ([]*domain.PriceRecord, error)
	GetBySymbol(ctx context.Context, brokerID, symbol string) (*domain.PriceRecord, error)
	Upsert(ctx context.Context, rec *domain.PriceRecord) error
}

type RateTableSource interface {
	Get(ctx context.Context, brokerID, baseAsset string) (*domain.AssetRateTable, error)
	List(ctx context.Context) ([]*domain.AssetRateTable, error)
}

// PriceEdit is an administrative override of one record's prices.
type PriceEdit struct {
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	H24          decimal.Decimal `json:"h24"`
	D7           decimal.Decimal `json:"d7"`
	M1           decimal.Decimal `json:"m1"`
	M3           decimal.Decimal `json:"m3"`
}

// BasePriceService is the read/edit surface over persisted price records
// and conversion tables, consumed by the HTTP handlers and the bot.
type BasePriceService struct {
	tracer   trace.Tracer
	store    BasePriceStore
	tables   RateTableSource
	brokerID string
	now      func() time.Time
}

func NewBasePriceService(
	tracer trace.Tracer,
	store BasePriceStore,
	tables RateTableSource,
	brokerID string,
	now func() time.Time,
) *BasePriceService {
	if now == nil {
		now = time.Now
	}
	return &BasePriceService{
		tracer:   tracer,
		store:    store,
		tables:   tables,
		brokerID: brokerID,
		now:      now,
	}
}

func (s *BasePriceService) GetAllPrices(ctx context.Context) ([]*domain.PriceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "base-price.get-all-prices")
	defer span.End()

	return s.store.Get(ctx, s.brokerID)
}

func (s *BasePriceService) GetPriceByInstrument(ctx context.Context, symbol string) (*domain.PriceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "base-price.get-price-by-instrument")
	defer span.End()

	return s.store.GetBySymbol(ctx, s.brokerID, symbol)
}

// EditPriceRecord replaces a record's prices and stamps every window with
// the edit time, then returns the record as persisted.
func (s *BasePriceService) EditPriceRecord(ctx context.Context, symbol string, edit PriceEdit) (*domain.PriceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "base-price.edit-price-record")
	defer span.End()

	now := s.now().UTC()
	rec := &domain.PriceRecord{
		BrokerID:     s.brokerID,
		Symbol:       symbol,
		CurrentPrice: edit.CurrentPrice,
		H24P:         pricing.Change24hPercent(edit.CurrentPrice, edit.H24),
		H24:          domain.ReferencePrice{Price: edit.H24, RecordTime: now},
		D7:           domain.ReferencePrice{Price: edit.D7, RecordTime: now},
		M1:           domain.ReferencePrice{Price: edit.M1, RecordTime: now},
		M3:           domain.ReferencePrice{Price: edit.M3, RecordTime: now},
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist edited record for %s: %w", symbol, err)
	}
	return s.store.GetBySymbol(ctx, s.brokerID, symbol)
}

func (s *BasePriceService) GetAllConversionTables(ctx context.Context) ([]*domain.AssetRateTable, error) {
	ctx, span := s.tracer.Start(ctx, "base-price.get-all-conversion-tables")
	defer span.End()

	return s.tables.List(ctx)
}

func (s *BasePriceService) GetConversionTable(ctx context.Context, baseAsset string) (*domain.AssetRateTable, error) {
	ctx, span := s.tracer.Start(ctx, "base-price.get-conversion-table")
	defer span.End()

	return s.tables.Get(ctx, s.brokerID, baseAsset)
}
