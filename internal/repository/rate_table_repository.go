package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"price-history/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// ErrTableNotFound is returned when no conversion table exists for a base asset.
var ErrTableNotFound = errors.New("conversion table not found")

const rateTableIndexKey = "asset-prices:index"

// RateTableRepository stores conversion tables as JSON values in Redis.
// Tables are regenerated wholesale every cycle, so a plain key-value store
// with an index set for listing is all the structure needed.
type RateTableRepository struct {
	client *redis.Client
	tracer trace.Tracer
}

func NewRateTableRepository(client *redis.Client, tracer trace.Tracer) *RateTableRepository {
	return &RateTableRepository{client: client, tracer: tracer}
}

func rateTableKey(brokerID, baseAsset string) string {
	return fmt.Sprintf("asset-prices:%s:%s", brokerID, baseAsset)
}

func (r *RateTableRepository) Upsert(ctx context.Context, table *domain.AssetRateTable) error {
	ctx, span := r.tracer.Start(ctx, "rate-table-repo.upsert")
	defer span.End()

	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal rate table: %w", err)
	}
	key := rateTableKey(table.BrokerID, table.BaseAsset)
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("store rate table: %w", err)
	}
	return r.client.SAdd(ctx, rateTableIndexKey, key).Err()
}

func (r *RateTableRepository) Delete(ctx context.Context, brokerID, baseAsset string) error {
	ctx, span := r.tracer.Start(ctx, "rate-table-repo.delete")
	defer span.End()

	key := rateTableKey(brokerID, baseAsset)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	return r.client.SRem(ctx, rateTableIndexKey, key).Err()
}

func (r *RateTableRepository) Get(ctx context.Context, brokerID, baseAsset string) (*domain.AssetRateTable, error) {
	ctx, span := r.tracer.Start(ctx, "rate-table-repo.get")
	defer span.End()

	payload, err := r.client.Get(ctx, rateTableKey(brokerID, baseAsset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	table := &domain.AssetRateTable{}
	if err := json.Unmarshal(payload, table); err != nil {
		return nil, fmt.Errorf("unmarshal rate table: %w", err)
	}
	return table, nil
}

// List returns every stored conversion table. Index entries whose value has
// been deleted out of band are skipped.
func (r *RateTableRepository) List(ctx context.Context) ([]*domain.AssetRateTable, error) {
	ctx, span := r.tracer.Start(ctx, "rate-table-repo.list")
	defer span.End()

	keys, err := r.client.SMembers(ctx, rateTableIndexKey).Result()
	if err != nil {
		return nil, err
	}
	tables := make([]*domain.AssetRateTable, 0, len(keys))
	for _, key := range keys {
		payload, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		table := &domain.AssetRateTable{}
		if err := json.Unmarshal(payload, table); err != nil {
			return nil, fmt.Errorf("unmarshal rate table %s: %w", key, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}
