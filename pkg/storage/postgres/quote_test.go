package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradedash/internal/store"
	"tradedash/pkg/marketdata"
	"tradedash/pkg/storage/postgres"

	"github.com/shopspring/decimal"
)

// go test -v --run TestToQuoteRecords
func TestToQuoteRecords(t *testing.T) {
	at := time.Date(2025, 3, 14, 15, 30, 0, 0, time.FixedZone("EST", -5*3600))
	records := postgres.ToQuoteRecords(map[string]marketdata.Quote{
		"TSLA": {Symbol: "TSLA", Price: decimal.RequireFromString("251.05"), Volume: 10},
		"AAPL": {Symbol: "AAPL", Price: decimal.RequireFromString("189.25"), Change: decimal.RequireFromString("1.1")},
	}, at)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Symbol != "AAPL" || records[1].Symbol != "TSLA" {
		t.Errorf("records not sorted by symbol: %s, %s", records[0].Symbol, records[1].Symbol)
	}
	if records[0].FetchedAt.Location() != time.UTC || !records[0].FetchedAt.Equal(at) {
		t.Errorf("unexpected fetched_at %v", records[0].FetchedAt)
	}
	if !records[1].Price.Equal(decimal.RequireFromString("251.05")) || records[1].Volume != 10 {
		t.Errorf("unexpected record %+v", records[1])
	}
}

// go test -v --run TestQuoteCRUD
func TestQuoteCRUD(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	quotes := map[string]marketdata.Quote{
		"ZZTEST": {Symbol: "ZZTEST", Price: decimal.RequireFromString("10.5"), Volume: 100},
	}

	// Create
	n, err := client.InsertQuotes(ctx, postgres.ToQuoteRecords(quotes, now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}

	// Duplicate (symbol, fetched_at) is skipped
	n, err = client.InsertQuotes(ctx, postgres.ToQuoteRecords(quotes, now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("duplicate insert failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected duplicate to be skipped, got %d rows", n)
	}

	quotes["ZZTEST"] = marketdata.Quote{Symbol: "ZZTEST", Price: decimal.RequireFromString("11"), Volume: 200}
	if _, err := client.InsertQuotes(ctx, postgres.ToQuoteRecords(quotes, now)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Read
	got, err := client.GetLatestQuote(ctx, "zztest")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.Price.Equal(decimal.NewFromInt(11)) || got.Volume != 200 {
		t.Errorf("unexpected latest quote: %+v", got)
	}

	// Delete
	if _, err := client.DeleteQuotesBefore(ctx, now.Add(time.Hour)); err != nil {
		t.Errorf("delete failed: %v", err)
	}
	if _, err := client.GetLatestQuote(ctx, "ZZTEST"); err == nil {
		t.Error("expected error after delete, got nil")
	}
}

// go test -v --run TestKVStore
func TestKVStore(t *testing.T) {
	client := testClient(t)
	kv := postgres.NewKVStore(client)
	ctx := context.Background()
	key := "test_kv_" + time.Now().Format("150405.000000")

	if _, err := kv.Load(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, v := range []string{`{"a":1}`, `{"a":2}`} {
		if err := kv.Save(ctx, key, []byte(v)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := kv.Load(ctx, key)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("expected upserted value, got %s", got)
	}

	client.DB.WithContext(ctx).Delete(&postgres.KVRecord{Key: key})
}
