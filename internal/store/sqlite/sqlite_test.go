package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/store"
	"github.com/HAB39/3laNota/internal/store/storetest"
)

func openTemp(t *testing.T) *store.Ledger {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return store.NewLedger(s)
}

func TestSQLiteBackend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.NewLedger(s).Clients().Put(ctx, domain.Client{ID: "12", Name: "Mona", Mobile: "01112345678"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := store.NewLedger(s).Clients().Get(ctx, "12")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Name != "Mona" {
		t.Fatalf("expected Mona, got %+v", got)
	}
}

func TestNumericIDsRoundTripAsNumbers(t *testing.T) {
	ctx := context.Background()
	ledger := openTemp(t)
	if _, err := ledger.Products().Put(ctx, domain.Product{ID: "42", Name: "Oil"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := ledger.Products().Get(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "42" {
		t.Fatalf("expected id 42, got %q", doc.ID)
	}
}
