package mongo

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/store"
	"github.com/HAB39/3laNota/internal/store/storetest"
)

func TestDocumentConversionKeepsNestedItems(t *testing.T) {
	in := []byte(`{"id":"240105001","clientId":"7","date":"05-01-2024","items":[{"name":"Rice","price":12.5},{"name":"Tea","price":30}],"total":42.5}`)
	record, err := toBSON("240105001", in)
	if err != nil {
		t.Fatalf("toBSON: %v", err)
	}
	if record[0].Key != "_id" || record[0].Value != "240105001" {
		t.Fatalf("expected _id first, got %+v", record[0])
	}

	out, err := fromBSON(record)
	if err != nil {
		t.Fatalf("fromBSON: %v", err)
	}
	var tx domain.Transaction
	if err := json.Unmarshal(out, &tx); err != nil {
		t.Fatalf("decode round trip: %v (%s)", err, out)
	}
	if len(tx.Items) != 2 || tx.Items[0].Price.String() != "12.5" || tx.Total.String() != "42.5" {
		t.Fatalf("unexpected round trip %+v", tx)
	}
}

func TestMongoBackend(t *testing.T) {
	uri := os.Getenv("LEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("set LEDGER_TEST_MONGO_URI (replica set) to run mongo integration test")
	}

	storetest.Run(t, func(t *testing.T) store.Backend {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := New(ctx, uri, "ledger_test")
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		for _, name := range store.Collections {
			if err := s.Clear(ctx, name); err != nil {
				t.Fatalf("clear %s: %v", name, err)
			}
		}
		t.Cleanup(func() {
			_ = s.db.Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}
