package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"price-history/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// CandlesClient reads OHLC series from the candles history service.
type CandlesClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewCandlesClient(baseURL string, timeout time.Duration, tracer trace.Tracer) *CandlesClient {
	return &CandlesClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer,
	}
}

// GetLastCandles returns the most recent candles of an instrument at the
// given granularity, newest first.
func (c *CandlesClient) GetLastCandles(ctx context.Context, instrument string, candleType domain.CandleType, amount int) ([]domain.Candle, error) {
	ctx, span := c.tracer.Start(ctx, "candles-client.get-last-candles")
	defer span.End()

	q := url.Values{}
	q.Set("instrument", instrument)
	q.Set("type", string(candleType))
	q.Set("amount", strconv.Itoa(amount))

	var candles []domain.Candle
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/api/v1/candles/last?"+q.Encode(), &candles); err != nil {
		return nil, fmt.Errorf("last candles for %s: %w", instrument, err)
	}
	return candles, nil
}

// GetCandlesHistory returns the candles of an instrument between from and to.
func (c *CandlesClient) GetCandlesHistory(ctx context.Context, instrument string, candleType domain.CandleType, from, to time.Time) ([]domain.Candle, error) {
	ctx, span := c.tracer.Start(ctx, "candles-client.get-candles-history")
	defer span.End()

	q := url.Values{}
	q.Set("instrument", instrument)
	q.Set("type", string(candleType))
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var candles []domain.Candle
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/api/v1/candles/history?"+q.Encode(), &candles); err != nil {
		return nil, fmt.Errorf("candle history for %s: %w", instrument, err)
	}
	return candles, nil
}
