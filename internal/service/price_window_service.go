package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"price-history/internal/domain"
	"price-history/internal/pricing"

	"go.opentelemetry.io/otel/trace"
)

type PriceRecordStore interface {
	Get(ctx context.Context, brokerID string) ([]*domain.PriceRecord, error)
	Insert(ctx context.Context, rec *domain.PriceRecord) error
	Upsert(ctx context.Context, rec *domain.PriceRecord) error
}

// WindowIntervals holds the per-window staleness thresholds.
type WindowIntervals struct {
	H24 time.Duration
	D7  time.Duration
	M1  time.Duration
	M3  time.Duration
}

func (w WindowIntervals) For(win domain.Window) time.Duration {
	switch win {
	case domain.WindowH24:
		return w.H24
	case domain.WindowD7:
		return w.D7
	case domain.WindowM1:
		return w.M1
	case domain.WindowM3:
		return w.M3
	}
	return 0
}

// windowTarget returns the historical point a window samples, relative to
// the cycle's wall-clock reading.
func windowTarget(win domain.Window, now time.Time) time.Time {
	switch win {
	case domain.WindowH24:
		return now.Add(-24 * time.Hour)
	case domain.WindowD7:
		return now.AddDate(0, 0, -7)
	case domain.WindowM1:
		return now.AddDate(0, -1, 0)
	case domain.WindowM3:
		return now.AddDate(0, -3, 0)
	}
	return now
}

// PriceWindowService owns the in-memory price record table. Only the
// refresh cycle writes to it; readers get copies through Snapshot and
// Record. Every mutation is pushed to the record store so rate composition
// and the query surface read durable, within-cycle-consistent values.
type PriceWindowService struct {
	tracer    trace.Tracer
	store     PriceRecordStore
	brokerID  string
	intervals WindowIntervals

	mu      sync.RWMutex
	records map[string]*domain.PriceRecord
}

func NewPriceWindowService(
	tracer trace.Tracer,
	store PriceRecordStore,
	brokerID string,
	intervals WindowIntervals,
) *PriceWindowService {
	return &PriceWindowService{
		tracer:    tracer,
		store:     store,
		brokerID:  brokerID,
		intervals: intervals,
		records:   make(map[string]*domain.PriceRecord),
	}
}

// InitRecords reloads the table from storage, creates zeroed records for
// newly seen instruments, and zeroes every window timestamp so the next
// refresh resamples all windows from candle history.
func (s *PriceWindowService) InitRecords(ctx context.Context, instruments []domain.Asset) error {
	ctx, span := s.tracer.Start(ctx, "price-window.init-records")
	defer span.End()

	persisted, err := s.store.Get(ctx, s.brokerID)
	if err != nil {
		return fmt.Errorf("load price records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*domain.PriceRecord, len(instruments))
	for _, rec := range persisted {
		s.records[rec.Symbol] = rec
	}

	for _, instrument := range instruments {
		rec, ok := s.records[instrument.Symbol]
		if !ok {
			rec = domain.NewPriceRecord(s.brokerID, instrument.Symbol)
			if err := s.store.Insert(ctx, rec); err != nil {
				log.Printf("insert price record for %s: %v", instrument.Symbol, err)
			}
			s.records[instrument.Symbol] = rec
		}
		rec.H24.RecordTime = time.Time{}
		rec.D7.RecordTime = time.Time{}
		rec.M1.RecordTime = time.Time{}
		rec.M3.RecordTime = time.Time{}
	}
	return nil
}

// EnsureTracked returns the record of an instrument, creating and
// persisting a zeroed one when the instrument is seen for the first time.
func (s *PriceWindowService) EnsureTracked(ctx context.Context, instrument domain.Asset) *domain.PriceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[instrument.Symbol]
	if !ok {
		rec = domain.NewPriceRecord(s.brokerID, instrument.Symbol)
		if err := s.store.Insert(ctx, rec); err != nil {
			log.Printf("insert price record for %s: %v", instrument.Symbol, err)
		}
		s.records[instrument.Symbol] = rec
	}
	return rec
}

// RefreshCurrent reduces a short recent candle sample to the instrument's
// current price, rounded to the instrument's accuracy, and recomputes the
// 24h percent change. A series with no usable price leaves the record
// untouched.
func (s *PriceWindowService) RefreshCurrent(ctx context.Context, instrument domain.Asset, candles []domain.Candle) error {
	ctx, span := s.tracer.Start(ctx, "price-window.refresh-current")
	defer span.End()

	price, ok := pricing.Reduce(candles)
	if !ok {
		return nil
	}

	rec := s.EnsureTracked(ctx, instrument)

	s.mu.Lock()
	rec.CurrentPrice = domain.RoundHalfUp(price, instrument.Accuracy)
	rec.H24P = pricing.Change24hPercent(rec.CurrentPrice, rec.H24.Price)
	snapshot := rec.Clone()
	s.mu.Unlock()

	if err := s.store.Upsert(ctx, snapshot); err != nil {
		return fmt.Errorf("persist current price for %s: %w", instrument.Symbol, err)
	}
	return nil
}

// RefreshWindows resamples every stale window of the instrument from its
// candle history. All staleness checks and timestamps use the single `now`
// the cycle was started with. Each updated window is persisted; a window
// with no usable candle is left stale and retried next cycle.
func (s *PriceWindowService) RefreshWindows(ctx context.Context, instrument domain.Asset, candles []domain.Candle, now time.Time) {
	ctx, span := s.tracer.Start(ctx, "price-window.refresh-windows")
	defer span.End()

	rec := s.EnsureTracked(ctx, instrument)

	for _, win := range domain.Windows {
		s.mu.Lock()
		ref := rec.WindowRef(win)
		if !ref.Stale(now, s.intervals.For(win)) {
			s.mu.Unlock()
			continue
		}

		price, ok := pricing.ReduceAt(candles, windowTarget(win, now))
		if !ok {
			s.mu.Unlock()
			continue
		}

		ref.Price = domain.RoundHalfUp(price, instrument.Accuracy)
		ref.RecordTime = now
		if win == domain.WindowH24 {
			rec.H24P = pricing.Change24hPercent(rec.CurrentPrice, rec.H24.Price)
		}
		snapshot := rec.Clone()
		s.mu.Unlock()

		if err := s.store.Upsert(ctx, snapshot); err != nil {
			log.Printf("persist %s window for %s: %v", win, instrument.Symbol, err)
			continue
		}
		log.Printf("updated %s price for %s: %s", win, instrument.Symbol, ref.Price)
	}
}

// Snapshot returns copies of all tracked records, ordered by symbol.
func (s *PriceWindowService) Snapshot() []*domain.PriceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.PriceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Record returns a copy of one tracked record.
func (s *PriceWindowService) Record(symbol string) (*domain.PriceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[symbol]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}
