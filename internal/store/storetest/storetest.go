// Package storetest holds the behaviour every ledger backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/store"
)

// Run exercises a fresh, empty backend returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Run("PutGetReplace", func(t *testing.T) { testPutGetReplace(t, open(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open(t)) })
	t.Run("ListDeleteClear", func(t *testing.T) { testListDeleteClear(t, open(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, open(t)) })
	t.Run("AtomicCounter", func(t *testing.T) { testAtomicCounter(t, open(t)) })
}

func testPutGetReplace(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	ledger := store.NewLedger(backend)

	tx := domain.Transaction{
		ID:       "240105001",
		ClientID: "7",
		Date:     "05-01-2024",
		Items:    []domain.LineItem{{Name: "Rice", Price: decimal.NewFromInt(30)}},
		Total:    decimal.NewFromInt(30),
	}
	if _, err := ledger.Transactions().Put(ctx, tx); err != nil {
		t.Fatalf("put transaction: %v", err)
	}
	got, err := ledger.Transactions().Get(ctx, "240105001")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.ClientID != "7" || len(got.Items) != 1 || !got.Total.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected transaction %+v", got)
	}

	client := domain.Client{ID: "7", Name: "Ali", Mobile: "01012345678", LastPaymentDate: "01-01-2024"}
	if _, err := ledger.Clients().Put(ctx, client); err != nil {
		t.Fatalf("put client: %v", err)
	}
	client.Name = "Ali Hassan"
	if _, err := ledger.Clients().Put(ctx, client); err != nil {
		t.Fatalf("replace client: %v", err)
	}
	clients, err := ledger.Clients().List(ctx)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 1 || clients[0].Name != "Ali Hassan" {
		t.Fatalf("expected replaced client, got %+v", clients)
	}
}

func testGetMissing(t *testing.T, backend store.Backend) {
	_, err := store.NewLedger(backend).Products().Get(context.Background(), "404")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testListDeleteClear(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	products := store.NewLedger(backend).Products()
	for i := 1; i <= 3; i++ {
		if _, err := products.Put(ctx, domain.Product{ID: domain.ID(fmt.Sprint(i)), Name: fmt.Sprintf("P%d", i)}); err != nil {
			t.Fatalf("put product: %v", err)
		}
	}
	if err := products.Delete(ctx, "2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := products.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 products after delete, got %d", len(list))
	}
	if err := products.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	list, err = products.List(ctx)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty collection after clear, got %d", len(list))
	}
}

func testAtomicRollback(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	ledger := store.NewLedger(backend)
	if _, err := ledger.Products().Put(ctx, domain.Product{ID: "1", Name: "Tea"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := ledger.Atomic(ctx, func(tx *store.Tx) error {
		if _, err := tx.Products().Put(ctx, domain.Product{ID: "2", Name: "Sugar"}); err != nil {
			return err
		}
		if err := tx.Products().Delete(ctx, "1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	list, err := ledger.Products().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "1" {
		t.Fatalf("expected rollback to keep only product 1, got %+v", list)
	}
}

func testAtomicCounter(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	ledger := store.NewLedger(backend)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Atomic(ctx, func(tx *store.Tx) error {
				counter, err := tx.DailyCounters().Get(ctx, "240105")
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				counter.ID = "240105"
				counter.Value++
				_, err = tx.DailyCounters().Put(ctx, counter)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("atomic increment: %v", err)
		}
	}

	counter, err := ledger.DailyCounters().Get(ctx, "240105")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter.Value != workers {
		t.Fatalf("expected counter %d, got %d", workers, counter.Value)
	}
}
