package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBroker is used when no broker id is configured.
const DefaultBroker = "jetwallet"

// ErrZeroPrice is returned when a conversion chain divides by a zero price.
var ErrZeroPrice = errors.New("division by zero price")

// CandleType is the granularity of a candle series.
type CandleType string

const (
	CandleMinute CandleType = "minute"
	CandleHour   CandleType = "hour"
	CandleDay    CandleType = "day"
)

// Candle is one OHLC sample from the candles history service.
type Candle struct {
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
	Time  time.Time       `json:"time"`
}

// Asset is one entry of the asset catalog.
type Asset struct {
	Symbol    string `json:"symbol"`
	BrokerID  string `json:"brokerId"`
	Accuracy  int32  `json:"accuracy"`
	CanBeBase bool   `json:"canBeBase"`
	Enabled   bool   `json:"enabled"`
}

// Window names one historical reference point tracked per instrument.
type Window string

const (
	WindowH24 Window = "h24"
	WindowD7  Window = "d7"
	WindowM1  Window = "m1"
	WindowM3  Window = "m3"
)

// Windows lists all tracked windows in refresh order.
var Windows = []Window{WindowH24, WindowD7, WindowM1, WindowM3}

// ReferencePrice is a window sample. A zero RecordTime marks a window that
// has never been sampled; such a window is always stale.
type ReferencePrice struct {
	Price      decimal.Decimal `json:"price"`
	RecordTime time.Time       `json:"recordTime"`
}

func (p ReferencePrice) Stale(now time.Time, refreshInterval time.Duration) bool {
	if p.RecordTime.IsZero() {
		return true
	}
	return now.Sub(p.RecordTime) >= refreshInterval
}

// PriceRecord holds the rolling price statistics of one instrument.
type PriceRecord struct {
	BrokerID     string          `json:"brokerId"`
	Symbol       string          `json:"symbol"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	H24P         decimal.Decimal `json:"change24hPercent"`
	H24          ReferencePrice  `json:"h24"`
	D7           ReferencePrice  `json:"d7"`
	M1           ReferencePrice  `json:"m1"`
	M3           ReferencePrice  `json:"m3"`
}

// NewPriceRecord returns a zeroed record: all windows at price zero with a
// zero record time, so every window is stale on first sight.
func NewPriceRecord(brokerID, symbol string) *PriceRecord {
	return &PriceRecord{
		BrokerID:     brokerID,
		Symbol:       symbol,
		CurrentPrice: decimal.Zero,
		H24P:         decimal.Zero,
	}
}

// WindowRef returns a pointer to the named window of the record.
func (r *PriceRecord) WindowRef(w Window) *ReferencePrice {
	switch w {
	case WindowH24:
		return &r.H24
	case WindowD7:
		return &r.D7
	case WindowM1:
		return &r.M1
	case WindowM3:
		return &r.M3
	}
	return nil
}

func (r *PriceRecord) Clone() *PriceRecord {
	cp := *r
	return &cp
}

// ConversionStep is one multiply/divide operation of a conversion chain.
type ConversionStep struct {
	InstrumentSymbol string `json:"instrumentSymbol"`
	IsMultiply       bool   `json:"isMultiply"`
}

// ConversionMap maps a quote asset symbol to the ordered chain of steps
// that converts the base asset into it.
type ConversionMap map[string][]ConversionStep

// RateVector carries the five price channels of a conversion rate. The
// channels are only ever updated in lockstep so they cannot drift apart.
type RateVector struct {
	Current decimal.Decimal `json:"currentPrice"`
	H24     decimal.Decimal `json:"h24"`
	D7      decimal.Decimal `json:"d7"`
	M1      decimal.Decimal `json:"m1"`
	M3      decimal.Decimal `json:"m3"`
}

// UnitRateVector is the neutral starting accumulator: all channels at 1.
func UnitRateVector() RateVector {
	one := decimal.NewFromInt(1)
	return RateVector{Current: one, H24: one, D7: one, M1: one, M3: one}
}

// MulRecord multiplies every channel by the matching field of the record.
func (v RateVector) MulRecord(r *PriceRecord) RateVector {
	return RateVector{
		Current: v.Current.Mul(r.CurrentPrice),
		H24:     v.H24.Mul(r.H24.Price),
		D7:      v.D7.Mul(r.D7.Price),
		M1:      v.M1.Mul(r.M1.Price),
		M3:      v.M3.Mul(r.M3.Price),
	}
}

// DivRecord divides every channel by the matching field of the record.
// A zero price in any field fails the whole vector with ErrZeroPrice.
func (v RateVector) DivRecord(r *PriceRecord) (RateVector, error) {
	if r.CurrentPrice.IsZero() || r.H24.Price.IsZero() || r.D7.Price.IsZero() ||
		r.M1.Price.IsZero() || r.M3.Price.IsZero() {
		return RateVector{}, ErrZeroPrice
	}
	return RateVector{
		Current: v.Current.Div(r.CurrentPrice),
		H24:     v.H24.Div(r.H24.Price),
		D7:      v.D7.Div(r.D7.Price),
		M1:      v.M1.Div(r.M1.Price),
		M3:      v.M3.Div(r.M3.Price),
	}, nil
}

// Round rounds every channel half-up to the given number of decimals.
func (v RateVector) Round(places int32) RateVector {
	return RateVector{
		Current: RoundHalfUp(v.Current, places),
		H24:     RoundHalfUp(v.H24, places),
		D7:      RoundHalfUp(v.D7, places),
		M1:      RoundHalfUp(v.M1, places),
		M3:      RoundHalfUp(v.M3, places),
	}
}

// RoundHalfUp rounds to the given number of decimal places with ties going
// toward positive infinity, e.g. 2.345 -> 2.35 and -2.345 -> -2.34.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	shift := d.Shift(places)
	half := decimal.New(5, -1)
	return shift.Add(half).Floor().Shift(-places)
}

// AssetRateTable is the published conversion table of one base asset.
// Rates always contains the base asset itself at exact unity.
type AssetRateTable struct {
	BrokerID     string                `json:"brokerId"`
	BaseAsset    string                `json:"baseAsset"`
	CalculatedAt time.Time             `json:"calculatedAt"`
	Rates        map[string]RateVector `json:"rates"`
}
