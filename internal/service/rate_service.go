package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"price-history/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// CrossRateAccuracy is the fixed precision of composed conversion rates.
// Chains are walked at 10 decimals so small prices survive multi-step
// composition; display rounding to fiat accuracy happens at the consumer.
const CrossRateAccuracy = 10

type RatePriceSource interface {
	Get(ctx context.Context, brokerID string) ([]*domain.PriceRecord, error)
}

type ConversionMapSource interface {
	GetConversionMap(ctx context.Context, baseAsset, brokerID string) (domain.ConversionMap, error)
}

type RateTableStore interface {
	Upsert(ctx context.Context, table *domain.AssetRateTable) error
	Delete(ctx context.Context, brokerID, baseAsset string) error
}

// RateService composes conversion tables: for every base-eligible asset it
// walks per-quote operation chains over the persisted instrument price
// records and publishes the resulting five-channel rate vectors.
type RateService struct {
	tracer    trace.Tracer
	prices    RatePriceSource
	converter ConversionMapSource
	tables    RateTableStore
	brokerID  string
	now       func() time.Time
}

func NewRateService(
	tracer trace.Tracer,
	prices RatePriceSource,
	converter ConversionMapSource,
	tables RateTableStore,
	brokerID string,
	now func() time.Time,
) *RateService {
	if now == nil {
		now = time.Now
	}
	return &RateService{
		tracer:    tracer,
		prices:    prices,
		converter: converter,
		tables:    tables,
		brokerID:  brokerID,
		now:       now,
	}
}

// ComposeAll rebuilds the conversion table of every base-eligible asset and
// removes the tables of assets that are no longer base-eligible. Failures
// are isolated per (base, quote) pair; only an unreadable price record
// store fails the whole pass.
func (s *RateService) ComposeAll(ctx context.Context, assets []domain.Asset) error {
	ctx, span := s.tracer.Start(ctx, "rate-service.compose-all")
	defer span.End()

	records, err := s.prices.Get(ctx, s.brokerID)
	if err != nil {
		return fmt.Errorf("load price records: %w", err)
	}
	bySymbol := make(map[string]*domain.PriceRecord, len(records))
	for _, rec := range records {
		bySymbol[rec.Symbol] = rec
	}

	for _, base := range assets {
		if !base.CanBeBase {
			continue
		}

		convMap, err := s.converter.GetConversionMap(ctx, base.Symbol, s.brokerID)
		if err != nil {
			log.Printf("conversion map for %s unavailable, keeping previous table: %v", base.Symbol, err)
			continue
		}

		table := &domain.AssetRateTable{
			BrokerID:     s.brokerID,
			BaseAsset:    base.Symbol,
			CalculatedAt: s.now().UTC(),
			Rates:        make(map[string]domain.RateVector, len(assets)),
		}

		for _, quote := range assets {
			rate, err := composePair(base.Symbol, quote.Symbol, convMap, bySymbol)
			if errors.Is(err, domain.ErrZeroPrice) {
				log.Printf("cannot calculate price from %s to %s: a chain instrument has a zero price", base.Symbol, quote.Symbol)
				continue
			}
			if err != nil {
				log.Printf("cannot calculate price from %s to %s: %v", base.Symbol, quote.Symbol, err)
				continue
			}
			table.Rates[quote.Symbol] = rate
		}

		if err := s.tables.Upsert(ctx, table); err != nil {
			log.Printf("persist conversion table for %s: %v", base.Symbol, err)
		}
	}

	s.deleteIneligible(ctx, assets)
	return nil
}

// composePair walks the quote asset's operation chain starting from a unit
// vector. The identity pair never consults the chain. Steps naming unknown
// instruments are skipped so partial data degrades the rate instead of
// failing it; only a zero divisor aborts the pair.
func composePair(
	baseSymbol, quoteSymbol string,
	convMap domain.ConversionMap,
	bySymbol map[string]*domain.PriceRecord,
) (domain.RateVector, error) {
	rate := domain.UnitRateVector()
	if baseSymbol == quoteSymbol {
		return rate, nil
	}

	chain, ok := convMap[quoteSymbol]
	if !ok {
		// No chain defined: the rate stays at the neutral unit value.
		return rate.Round(CrossRateAccuracy), nil
	}

	for _, step := range chain {
		rec, ok := bySymbol[step.InstrumentSymbol]
		if !ok {
			continue
		}
		if step.IsMultiply {
			rate = rate.MulRecord(rec)
			continue
		}
		var err error
		if rate, err = rate.DivRecord(rec); err != nil {
			return domain.RateVector{}, err
		}
	}
	return rate.Round(CrossRateAccuracy), nil
}

// deleteIneligible removes stale tables of assets that lost base
// eligibility. Deletions run concurrently and the pass waits for all of
// them before finishing the cycle.
func (s *RateService) deleteIneligible(ctx context.Context, assets []domain.Asset) {
	var wg sync.WaitGroup
	for _, asset := range assets {
		if asset.CanBeBase {
			continue
		}
		wg.Add(1)
		go func(a domain.Asset) {
			defer wg.Done()
			if err := s.tables.Delete(ctx, s.brokerID, a.Symbol); err != nil {
				log.Printf("delete conversion table for %s: %v", a.Symbol, err)
			}
		}(asset)
	}
	wg.Wait()
}
