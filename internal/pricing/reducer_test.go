package pricing

import (
	"testing"
	"time"

	"price-history/internal/domain"

	"github.com/shopspring/decimal"
)

func candle(open, close float64, t time.Time) domain.Candle {
	return domain.Candle{
		Open:  decimal.NewFromFloat(open),
		Close: decimal.NewFromFloat(close),
		Time:  t,
	}
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestReduceEmpty(t *testing.T) {
	if _, ok := Reduce(nil); ok {
		t.Fatal("expected not found for empty series")
	}
}

func TestReducePrefersLatestOpen(t *testing.T) {
	candles := []domain.Candle{
		candle(100, 101, base.Add(-2*time.Minute)),
		candle(103, 104, base), // newest
		candle(102, 103, base.Add(-time.Minute)),
	}
	price, ok := Reduce(candles)
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.Equal(decimal.NewFromInt(103)) {
		t.Fatalf("expected open of newest candle (103), got %s", price)
	}
}

func TestReduceZeroOpenFallsBackToClose(t *testing.T) {
	candles := []domain.Candle{
		candle(0, 0, base), // placeholder, newest
		candle(0, 0, base.Add(-time.Minute)),
		candle(100, 101, base.Add(-2*time.Minute)),
	}
	price, ok := Reduce(candles)
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("expected close of nearest older candle (101), got %s", price)
	}
}

func TestReduceNoUsablePrice(t *testing.T) {
	candles := []domain.Candle{
		candle(0, 0, base),
		candle(0, 0, base.Add(-time.Minute)),
	}
	if _, ok := Reduce(candles); ok {
		t.Fatal("expected not found when no candle has a usable price")
	}
}

func TestReduceAtPicksOldestCandleAfterTarget(t *testing.T) {
	target := base.Add(-24 * time.Hour)
	candles := []domain.Candle{
		candle(300, 301, base),
		candle(200, 201, base.Add(-23*time.Hour)), // oldest at/after target
		candle(100, 101, base.Add(-48*time.Hour)),
	}
	price, ok := ReduceAt(candles, target)
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.Equal(decimal.NewFromInt(201)) {
		t.Fatalf("expected 201, got %s", price)
	}
}

func TestReduceAtSkipsPlaceholders(t *testing.T) {
	target := base.Add(-24 * time.Hour)
	candles := []domain.Candle{
		candle(300, 301, base),
		candle(0, 201, base.Add(-23*time.Hour)), // zero open, ignored
		candle(100, 101, base.Add(-48*time.Hour)),
	}
	price, ok := ReduceAt(candles, target)
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.Equal(decimal.NewFromInt(301)) {
		t.Fatalf("expected 301, got %s", price)
	}
}

func TestReduceAtFallsBackToNewestBeforeTarget(t *testing.T) {
	target := base.Add(-24 * time.Hour)
	candles := []domain.Candle{
		candle(100, 101, base.Add(-48 * time.Hour)),
		candle(110, 111, base.Add(-30 * time.Hour)),
	}
	price, ok := ReduceAt(candles, target)
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.Equal(decimal.NewFromInt(111)) {
		t.Fatalf("expected newest pre-target close (111), got %s", price)
	}
}

func TestReduceAtEmpty(t *testing.T) {
	if _, ok := ReduceAt(nil, base); ok {
		t.Fatal("expected not found")
	}
	onlyPlaceholders := []domain.Candle{candle(0, 0, base)}
	if _, ok := ReduceAt(onlyPlaceholders, base); ok {
		t.Fatal("expected not found when only placeholders exist")
	}
}

func TestChange24hPercent(t *testing.T) {
	cases := []struct {
		current string
		h24     string
		want    string
	}{
		{"0", "100", "0"},
		{"100", "0", "0"},
		{"110", "100", "10"},
		{"30000", "29000", "3.45"},
		{"90", "100", "-10"},
	}
	for _, tc := range cases {
		got := Change24hPercent(
			decimal.RequireFromString(tc.current),
			decimal.RequireFromString(tc.h24),
		)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Change24hPercent(%s, %s) = %s, want %s", tc.current, tc.h24, got, tc.want)
		}
	}
}
