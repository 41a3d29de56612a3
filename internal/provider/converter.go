package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"price-history/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// ConverterClient reads per-base-asset conversion maps: for every quote
// asset, the ordered multiply/divide chain over instrument prices.
type ConverterClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewConverterClient(baseURL string, timeout time.Duration, tracer trace.Tracer) *ConverterClient {
	return &ConverterClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer,
	}
}

type convertMapResponse struct {
	Maps []struct {
		AssetSymbol string `json:"assetSymbol"`
		Operations  []struct {
			InstrumentPrice string `json:"instrumentPrice"`
			IsMultiply      bool   `json:"isMultiply"`
		} `json:"operations"`
	} `json:"maps"`
}

func (c *ConverterClient) GetConversionMap(ctx context.Context, baseAsset, brokerID string) (domain.ConversionMap, error) {
	ctx, span := c.tracer.Start(ctx, "converter-client.get-conversion-map")
	defer span.End()

	q := url.Values{}
	q.Set("baseAsset", baseAsset)
	q.Set("brokerId", brokerID)

	var resp convertMapResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/api/v1/convert-map?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("conversion map for %s: %w", baseAsset, err)
	}

	out := make(domain.ConversionMap, len(resp.Maps))
	for _, m := range resp.Maps {
		steps := make([]domain.ConversionStep, 0, len(m.Operations))
		for _, op := range m.Operations {
			steps = append(steps, domain.ConversionStep{
				InstrumentSymbol: op.InstrumentPrice,
				IsMultiply:       op.IsMultiply,
			})
		}
		out[m.AssetSymbol] = steps
	}
	return out, nil
}
