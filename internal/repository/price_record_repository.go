package repository

import (
	"context"
	"errors"
	"fmt"

	"price-history/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

// ErrRecordNotFound is returned when no price record exists for a symbol.
var ErrRecordNotFound = errors.New("price record not found")

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PriceRecordRepository persists per-instrument price records keyed by
// (broker_id, symbol). Prices travel as text so decimal values stay exact.
type PriceRecordRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRecordRepository(pool PgxPool, tracer trace.Tracer) *PriceRecordRepository {
	return &PriceRecordRepository{pool: pool, tracer: tracer}
}

func (r *PriceRecordRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_records (
			broker_id     TEXT        NOT NULL,
			symbol        TEXT        NOT NULL,
			current_price NUMERIC     NOT NULL,
			h24p          NUMERIC     NOT NULL,
			h24_price     NUMERIC     NOT NULL,
			h24_time      TIMESTAMPTZ NOT NULL,
			d7_price      NUMERIC     NOT NULL,
			d7_time       TIMESTAMPTZ NOT NULL,
			m1_price      NUMERIC     NOT NULL,
			m1_time       TIMESTAMPTZ NOT NULL,
			m3_price      NUMERIC     NOT NULL,
			m3_time       TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (broker_id, symbol)
		)`)
	return err
}

const priceRecordColumns = `broker_id, symbol,
	current_price::text, h24p::text,
	h24_price::text, h24_time,
	d7_price::text, d7_time,
	m1_price::text, m1_time,
	m3_price::text, m3_time`

func (r *PriceRecordRepository) Get(ctx context.Context, brokerID string) ([]*domain.PriceRecord, error) {
	_, span := r.tracer.Start(ctx, "price-record-repo.get")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+priceRecordColumns+`
		 FROM price_records
		 WHERE broker_id = $1
		 ORDER BY symbol`,
		brokerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.PriceRecord
	for rows.Next() {
		rec, err := scanPriceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PriceRecordRepository) GetBySymbol(ctx context.Context, brokerID, symbol string) (*domain.PriceRecord, error) {
	_, span := r.tracer.Start(ctx, "price-record-repo.get-by-symbol")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT `+priceRecordColumns+`
		 FROM price_records
		 WHERE broker_id = $1 AND symbol = $2`,
		brokerID, symbol,
	)
	rec, err := scanPriceRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PriceRecordRepository) Insert(ctx context.Context, rec *domain.PriceRecord) error {
	_, span := r.tracer.Start(ctx, "price-record-repo.insert")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_records (`+insertColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (broker_id, symbol) DO NOTHING`,
		recordArgs(rec)...,
	)
	return err
}

func (r *PriceRecordRepository) Upsert(ctx context.Context, rec *domain.PriceRecord) error {
	_, span := r.tracer.Start(ctx, "price-record-repo.upsert")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_records (`+insertColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (broker_id, symbol) DO UPDATE SET
			 current_price = EXCLUDED.current_price,
			 h24p = EXCLUDED.h24p,
			 h24_price = EXCLUDED.h24_price,
			 h24_time = EXCLUDED.h24_time,
			 d7_price = EXCLUDED.d7_price,
			 d7_time = EXCLUDED.d7_time,
			 m1_price = EXCLUDED.m1_price,
			 m1_time = EXCLUDED.m1_time,
			 m3_price = EXCLUDED.m3_price,
			 m3_time = EXCLUDED.m3_time`,
		recordArgs(rec)...,
	)
	return err
}

func (r *PriceRecordRepository) Delete(ctx context.Context, brokerID, symbol string) error {
	_, span := r.tracer.Start(ctx, "price-record-repo.delete")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`DELETE FROM price_records WHERE broker_id = $1 AND symbol = $2`,
		brokerID, symbol,
	)
	return err
}

const insertColumns = `broker_id, symbol, current_price, h24p,
	h24_price, h24_time, d7_price, d7_time, m1_price, m1_time, m3_price, m3_time`

func recordArgs(rec *domain.PriceRecord) []any {
	return []any{
		rec.BrokerID, rec.Symbol,
		rec.CurrentPrice.String(), rec.H24P.String(),
		rec.H24.Price.String(), rec.H24.RecordTime,
		rec.D7.Price.String(), rec.D7.RecordTime,
		rec.M1.Price.String(), rec.M1.RecordTime,
		rec.M3.Price.String(), rec.M3.RecordTime,
	}
}

func scanPriceRecord(row pgx.Row) (*domain.PriceRecord, error) {
	rec := &domain.PriceRecord{}
	var current, h24p, h24, d7, m1, m3 string
	if err := row.Scan(
		&rec.BrokerID, &rec.Symbol,
		&current, &h24p,
		&h24, &rec.H24.RecordTime,
		&d7, &rec.D7.RecordTime,
		&m1, &rec.M1.RecordTime,
		&m3, &rec.M3.RecordTime,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parse current_price: %w", err)
	}
	if rec.H24P, err = decimal.NewFromString(h24p); err != nil {
		return nil, fmt.Errorf("parse h24p: %w", err)
	}
	if rec.H24.Price, err = decimal.NewFromString(h24); err != nil {
		return nil, fmt.Errorf("parse h24_price: %w", err)
	}
	if rec.D7.Price, err = decimal.NewFromString(d7); err != nil {
		return nil, fmt.Errorf("parse d7_price: %w", err)
	}
	if rec.M1.Price, err = decimal.NewFromString(m1); err != nil {
		return nil, fmt.Errorf("parse m1_price: %w", err)
	}
	if rec.M3.Price, err = decimal.NewFromString(m3); err != nil {
		return nil, fmt.Errorf("parse m3_price: %w", err)
	}
	return rec, nil
}
