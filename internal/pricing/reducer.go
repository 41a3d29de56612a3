// Package pricing reduces candle series to single representative prices.
package pricing

import (
	"sort"
	"time"

	"price-history/internal/domain"

	"github.com/shopspring/decimal"
)

// Reduce picks one representative price from a candle series. Candles are
// ordered newest-first before inspection, so callers may pass any order.
//
// The newest candle's open wins when it is non-zero. A zero open marks a
// placeholder candle that has not traded yet; in that case the close of the
// nearest older candle with a non-zero close is used instead. An empty
// series, or one with no usable price at all, reports not found.
func Reduce(candles []domain.Candle) (decimal.Decimal, bool) {
	if len(candles) == 0 {
		return decimal.Zero, false
	}

	ordered := make([]domain.Candle, len(candles))
	copy(ordered, candles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time.After(ordered[j].Time)
	})

	if ordered[0].Open.IsZero() {
		for _, c := range ordered {
			if !c.Close.IsZero() {
				return c.Close, true
			}
		}
		return decimal.Zero, false
	}
	return ordered[0].Open, true
}

// ReduceAt picks the price of an instrument as of the target time.
// Placeholder candles (zero open or close) are ignored. The close of the
// oldest candle at or after the target is returned; when every usable
// candle predates the target, the newest one stands in. An empty series
// reports not found.
func ReduceAt(candles []domain.Candle, target time.Time) (decimal.Decimal, bool) {
	usable := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if !c.Open.IsZero() && !c.Close.IsZero() {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return decimal.Zero, false
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Time.After(usable[j].Time)
	})

	found := false
	var nearest domain.Candle
	for _, c := range usable {
		if c.Time.Before(target) {
			break
		}
		nearest = c
		found = true
	}
	if found {
		return nearest.Close, true
	}
	return usable[0].Close, true
}

// Change24hPercent derives the 24h percent change of a record. A zero
// current price or zero 24h reference yields zero rather than a meaningless
// or undefined percentage.
func Change24hPercent(current, h24 decimal.Decimal) decimal.Decimal {
	if current.IsZero() || h24.IsZero() {
		return decimal.Zero
	}
	pct := current.Sub(h24).Div(h24).Mul(decimal.NewFromInt(100))
	return domain.RoundHalfUp(pct, 2)
}
