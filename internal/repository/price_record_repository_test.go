package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"price-history/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

func recordRow(broker, symbol string) []any {
	sampled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []any{
		broker, symbol,
		"30000", "3.45",
		"29000", sampled,
		"28000", sampled,
		"27000", sampled,
		"26000", sampled,
	}
}

func TestGetReturnsRecords(t *testing.T) {
	pool := &stubPool{rowsData: [][]any{recordRow("jetwallet", "BTCUSD")}}
	repo := NewPriceRecordRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	records, err := repo.Get(context.Background(), "jetwallet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Symbol != "BTCUSD" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if !records[0].CurrentPrice.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("unexpected current price: %s", records[0].CurrentPrice)
	}
	if !records[0].H24.Price.Equal(decimal.NewFromInt(29000)) {
		t.Fatalf("unexpected h24 price: %s", records[0].H24.Price)
	}
}

func TestGetBySymbolNotFound(t *testing.T) {
	pool := &stubPool{rowErr: pgx.ErrNoRows}
	repo := NewPriceRecordRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if _, err := repo.GetBySymbol(context.Background(), "jetwallet", "NOPE"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestGetBySymbolReturnsRecord(t *testing.T) {
	pool := &stubPool{rowsData: [][]any{recordRow("jetwallet", "ETHUSD")}}
	repo := NewPriceRecordRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	rec, err := repo.GetBySymbol(context.Background(), "jetwallet", "ETHUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Symbol != "ETHUSD" || !rec.H24P.Equal(decimal.RequireFromString("3.45")) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestUpsertSendsDecimalText(t *testing.T) {
	pool := &stubPool{}
	repo := NewPriceRecordRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	rec := domain.NewPriceRecord("jetwallet", "BTCUSD")
	rec.CurrentPrice = decimal.RequireFromString("30000.5")
	if err := repo.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.lastSQL, "ON CONFLICT (broker_id, symbol) DO UPDATE") {
		t.Fatalf("expected upsert statement, got %s", pool.lastSQL)
	}
	if pool.lastArgs[2] != "30000.5" {
		t.Fatalf("expected current price as text, got %v", pool.lastArgs[2])
	}
}

func TestInsertIgnoresExisting(t *testing.T) {
	pool := &stubPool{}
	repo := NewPriceRecordRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.Insert(context.Background(), domain.NewPriceRecord("jetwallet", "BTCUSD")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.lastSQL, "DO NOTHING") {
		t.Fatalf("expected insert-if-absent statement, got %s", pool.lastSQL)
	}
}

func TestDelete(t *testing.T) {
	pool := &stubPool{}
	repo := NewPriceRecordRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.Delete(context.Background(), "jetwallet", "BTCUSD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.lastSQL, "DELETE FROM price_records") {
		t.Fatalf("expected delete statement, got %s", pool.lastSQL)
	}
}

type stubPool struct {
	rowsData [][]any
	rowErr   error
	lastSQL  string
	lastArgs []any
}

func (s *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.lastSQL = sql
	s.lastArgs = args
	return pgconn.CommandTag{}, nil
}

func (s *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.lastSQL = sql
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &stubRows{data: dataCopy}, nil
}

func (s *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.lastSQL = sql
	if s.rowErr != nil {
		return &stubRow{err: s.rowErr}
	}
	if len(s.rowsData) > 0 {
		return &stubRow{data: s.rowsData[0]}
	}
	return &stubRow{err: pgx.ErrNoRows}
}

type stubRows struct {
	data [][]any
	idx  int
}

func (r *stubRows) Close() {}

func (r *stubRows) Err() error { return nil }

func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return scanInto(r.data[r.idx-1], dest)
}

func (r *stubRows) Values() ([]any, error) { return nil, nil }

func (r *stubRows) RawValues() [][]byte { return nil }

func (r *stubRows) Conn() *pgx.Conn { return nil }

type stubRow struct {
	data []any
	err  error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.data, dest)
}

func scanInto(row []any, dest []any) error {
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *time.Time:
			*ptr = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
