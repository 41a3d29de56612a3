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

// AssetsClient reads the asset catalog. Disabled assets are filtered out
// before they reach the core; the catalog may legitimately return an empty
// list while it warms up.
type AssetsClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewAssetsClient(baseURL string, timeout time.Duration, tracer trace.Tracer) *AssetsClient {
	return &AssetsClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer,
	}
}

func (c *AssetsClient) ListAssets(ctx context.Context, brokerID string) ([]domain.Asset, error) {
	ctx, span := c.tracer.Start(ctx, "assets-client.list-assets")
	defer span.End()

	q := url.Values{}
	q.Set("brokerId", brokerID)

	var assets []domain.Asset
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/api/v1/assets?"+q.Encode(), &assets); err != nil {
		return nil, fmt.Errorf("list assets for %s: %w", brokerID, err)
	}

	enabled := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	return enabled, nil
}
