// Package job hosts the background refresh cycle that keeps price
// records and conversion tables current.
package job

import (
	"context"
	"log"
	"sort"
	"time"

	"price-history/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	// lastCandleSample is how many recent minute candles the current
	// price is reduced from. The spares cover placeholder candles at
	// the head of the series.
	lastCandleSample = 10

	hourHistoryDays = 2
	dayHistoryDays  = 100

	catalogRetryDelay = 5 * time.Second
)

type AssetCatalog interface {
	ListAssets(ctx context.Context, brokerID string) ([]domain.Asset, error)
}

type CandleSource interface {
	GetLastCandles(ctx context.Context, instrument string, candleType domain.CandleType, amount int) ([]domain.Candle, error)
	GetCandlesHistory(ctx context.Context, instrument string, candleType domain.CandleType, from, to time.Time) ([]domain.Candle, error)
}

type WindowRefresher interface {
	InitRecords(ctx context.Context, instruments []domain.Asset) error
	RefreshCurrent(ctx context.Context, instrument domain.Asset, candles []domain.Candle) error
	RefreshWindows(ctx context.Context, instrument domain.Asset, candles []domain.Candle, now time.Time)
	Snapshot() []*domain.PriceRecord
}

type RateComposer interface {
	ComposeAll(ctx context.Context, assets []domain.Asset) error
}

// PriceListener receives the full record snapshot after every cycle.
type PriceListener interface {
	PublishPrices(records []*domain.PriceRecord)
}

// PricePoller drives the refresh cycle: update the instrument list,
// refresh every instrument's current price and reference windows, then
// recompose the conversion tables. Cycles never overlap; the next one
// starts a full interval after the previous one finished.
type PricePoller struct {
	tracer     trace.Tracer
	catalog    AssetCatalog
	candles    CandleSource
	windows    WindowRefresher
	rates      RateComposer
	brokerID   string
	interval   time.Duration
	retryDelay time.Duration
	listeners  []PriceListener
	now        func() time.Time

	// catalogCount is the instrument count of the previous cycle.
	// Records are reinitialized only when the catalog size changes,
	// never from the in-memory table size: storage may hold records
	// for instruments that left the catalog.
	catalogCount int
}

func NewPricePoller(
	tracer trace.Tracer,
	catalog AssetCatalog,
	candles CandleSource,
	windows WindowRefresher,
	rates RateComposer,
	brokerID string,
	interval time.Duration,
) *PricePoller {
	return &PricePoller{
		tracer:       tracer,
		catalog:      catalog,
		candles:      candles,
		windows:      windows,
		rates:        rates,
		brokerID:     brokerID,
		interval:     interval,
		retryDelay:   catalogRetryDelay,
		now:          time.Now,
		catalogCount: -1,
	}
}

// AddListener registers a snapshot consumer. Must be called before Start.
func (p *PricePoller) AddListener(l PriceListener) {
	p.listeners = append(p.listeners, l)
}

// Start runs refresh cycles until ctx is cancelled. Blocks.
func (p *PricePoller) Start(ctx context.Context) {
	log.Println("Price poller starting...")

	for {
		p.runCycle(ctx)

		select {
		case <-ctx.Done():
			log.Println("Price poller stopped")
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *PricePoller) runCycle(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "price-poller.run-cycle")
	defer span.End()

	instruments, ok := p.loadInstruments(ctx)
	if !ok {
		return
	}

	if len(instruments) != p.catalogCount {
		if err := p.windows.InitRecords(ctx, instruments); err != nil {
			log.Printf("reinitialize price records: %v", err)
			return
		}
		p.catalogCount = len(instruments)
	}

	now := p.now().UTC()
	for _, instrument := range instruments {
		p.refreshInstrument(ctx, instrument, now)
	}

	if err := p.rates.ComposeAll(ctx, instruments); err != nil {
		log.Printf("compose conversion tables: %v", err)
	}

	snapshot := p.windows.Snapshot()
	for _, l := range p.listeners {
		l.PublishPrices(snapshot)
	}
}

// loadInstruments fetches the asset catalog, retrying once after a short
// delay when the catalog is unreachable or empty. An empty catalog after
// the retry skips the cycle rather than wiping the tracked set.
func (p *PricePoller) loadInstruments(ctx context.Context) ([]domain.Asset, bool) {
	for attempt := 0; ; attempt++ {
		assets, err := p.catalog.ListAssets(ctx, p.brokerID)
		if err != nil {
			log.Printf("list assets: %v", err)
		} else if len(assets) > 0 {
			return assets, true
		} else {
			log.Println("asset catalog returned no instruments")
		}

		if attempt > 0 {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(p.retryDelay):
		}
	}
}

// refreshInstrument updates one instrument's current price and reference
// windows. Failures are logged and do not stop the cycle.
func (p *PricePoller) refreshInstrument(ctx context.Context, instrument domain.Asset, now time.Time) {
	recent, err := p.candles.GetLastCandles(ctx, instrument.Symbol, domain.CandleMinute, lastCandleSample)
	if err != nil {
		log.Printf("fetch last candles for %s: %v", instrument.Symbol, err)
	} else if err := p.windows.RefreshCurrent(ctx, instrument, recent); err != nil {
		log.Printf("refresh current price for %s: %v", instrument.Symbol, err)
	}

	history, err := p.fetchHistory(ctx, instrument.Symbol, now)
	if err != nil {
		log.Printf("fetch candle history for %s: %v", instrument.Symbol, err)
		return
	}
	p.windows.RefreshWindows(ctx, instrument, history, now)
}

// fetchHistory assembles one series covering every reference window:
// hour candles for the recent couple of days, day candles beyond that.
// The merged series is ordered newest-first.
func (p *PricePoller) fetchHistory(ctx context.Context, symbol string, now time.Time) ([]domain.Candle, error) {
	hourFrom := now.AddDate(0, 0, -hourHistoryDays)
	hours, err := p.candles.GetCandlesHistory(ctx, symbol, domain.CandleHour, hourFrom, now)
	if err != nil {
		return nil, err
	}

	days, err := p.candles.GetCandlesHistory(ctx, symbol, domain.CandleDay, now.AddDate(0, 0, -dayHistoryDays), hourFrom)
	if err != nil {
		return nil, err
	}

	merged := append(hours, days...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.After(merged[j].Time)
	})
	return merged, nil
}
