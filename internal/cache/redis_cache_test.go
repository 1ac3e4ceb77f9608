package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HAB39/3laNota/internal/domain"
)

func TestNoopCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	if err := c.Set(context.Background(), "k", []domain.ClientDue{{}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisReportCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("LEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set LEDGER_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisReportCache(addr, os.Getenv("LEDGER_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := fmt.Sprintf("test:due:%d", time.Now().UnixNano())
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected miss before set, got ok=%v err=%v", ok, err)
	}
	want := []domain.ClientDue{{Client: domain.Client{ID: "4", Name: "Omar"}, DueAmount: decimal.RequireFromString("12.5")}}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ID != "4" || !got[0].DueAmount.Equal(want[0].DueAmount) {
		t.Fatalf("unexpected cached value %+v", got)
	}
}
