// Package backup exports the ledger to a portable snapshot and merges
// snapshots back in. A restore is a union by id: fields an incoming record
// carries win, fields it leaves out are kept, and day counters never go
// backwards.
package backup

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/HAB39/3laNota/internal/dates"
	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/store"
)

// Export normalizes stored records into snapshot form. Dates are rewritten
// as DD-MM-YYYY, or left empty when they cannot be parsed.
func Export(clients []domain.Client, products []domain.Product, txs []domain.Transaction, counters []domain.DailyCounter) domain.Snapshot {
	snap := domain.Snapshot{
		Clients:       make([]domain.Client, 0, len(clients)),
		Products:      make([]domain.Product, 0, len(products)),
		Transactions:  make([]domain.Transaction, 0, len(txs)),
		DailyCounters: make([]domain.DailyCounter, 0, len(counters)),
	}
	for _, c := range clients {
		c.LastPaymentDate = dates.Canonical(c.LastPaymentDate)
		snap.Clients = append(snap.Clients, c)
	}
	snap.Products = append(snap.Products, products...)
	for _, tx := range txs {
		snap.Transactions = append(snap.Transactions, normalizeTransaction(tx))
	}
	snap.DailyCounters = append(snap.DailyCounters, counters...)

	sortByID(snap.Clients)
	sortByID(snap.Products)
	sortByID(snap.Transactions)
	sortByID(snap.DailyCounters)
	return snap
}

func normalizeTransaction(tx domain.Transaction) domain.Transaction {
	tx.Date = dates.Canonical(tx.Date)
	if tx.Items == nil {
		tx.Items = []domain.LineItem{}
	}
	return tx
}

func sortByID[T store.Record](records []T) {
	slices.SortStableFunc(records, func(a, b T) int {
		return domain.CompareIDs(a.RecordID(), b.RecordID())
	})
}

// Read exports the whole ledger from one consistent view.
func Read(ctx context.Context, ledger *store.Ledger) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := ledger.Atomic(ctx, func(tx *store.Tx) error {
		existing, err := load(ctx, tx)
		if err != nil {
			return err
		}
		snap = Export(existing.Clients, existing.Products, existing.Transactions, existing.DailyCounters)
		return nil
	})
	return snap, err
}

var requiredKeys = []string{"clients", "products", "transactions", "transactionCounters"}

// Fields holds the JSON members one incoming record actually carried.
type Fields map[string]json.RawMessage

// Incoming is a decoded backup file. Next to the typed records it keeps the
// members each record carried, so a merge only overwrites what the file
// says.
type Incoming struct {
	domain.Snapshot

	clients      []Fields
	products     []Fields
	transactions []Fields
	counters     []Fields
}

// Decode parses a snapshot file. A file missing any of the four collections,
// or carrying a sale whose total disagrees with its items, is rejected as a
// whole.
func Decode(r io.Reader) (Incoming, error) {
	var in Incoming

	body, err := io.ReadAll(r)
	if err != nil {
		return in, fmt.Errorf("read backup: %w", err)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return in, domain.Invalid(domain.ErrInvalidSnapshot, "not a JSON object: %v", err)
	}
	for _, key := range requiredKeys {
		raw, ok := top[key]
		if !ok {
			return in, domain.Invalid(domain.ErrInvalidSnapshot, "missing %q", key)
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return in, domain.Invalid(domain.ErrInvalidSnapshot, "%q must be a list", key)
		}
	}

	if err := json.Unmarshal(body, &in.Snapshot); err != nil {
		return Incoming{}, domain.Invalid(domain.ErrInvalidSnapshot, "%v", err)
	}
	for key, dest := range map[string]*[]Fields{
		"clients":             &in.clients,
		"products":            &in.products,
		"transactions":        &in.transactions,
		"transactionCounters": &in.counters,
	} {
		if err := json.Unmarshal(top[key], dest); err != nil {
			return Incoming{}, domain.Invalid(domain.ErrInvalidSnapshot, "%q holds a record that is not an object", key)
		}
	}
	if err := Validate(in.Snapshot); err != nil {
		return Incoming{}, err
	}
	return in, nil
}

// Validate checks every record of a snapshot has an id and every sale total
// matches its items to the cent.
func Validate(snap domain.Snapshot) error {
	for i, c := range snap.Clients {
		if c.ID == "" {
			return domain.Invalid(domain.ErrInvalidSnapshot, "client %d has no id", i)
		}
	}
	for i, p := range snap.Products {
		if p.ID == "" {
			return domain.Invalid(domain.ErrInvalidSnapshot, "product %d has no id", i)
		}
	}
	for i, tx := range snap.Transactions {
		if tx.ID == "" {
			return domain.Invalid(domain.ErrInvalidSnapshot, "transaction %d has no id", i)
		}
		for _, item := range tx.Items {
			if item.Price.IsNegative() {
				return domain.Invalid(domain.ErrInvalidSnapshot, "transaction %s has a negative price", tx.ID)
			}
		}
		if !Equal(tx.Total, tx.ItemsTotal()) {
			return domain.Invalid(domain.ErrInvalidTotal, "transaction %s total %s, items %s", tx.ID, tx.Total, tx.ItemsTotal())
		}
	}
	for i, c := range snap.DailyCounters {
		if c.ID == "" || c.Value < 0 {
			return domain.Invalid(domain.ErrInvalidSnapshot, "counter %d is malformed", i)
		}
	}
	return nil
}

// Merge unions incoming into existing. When ids collide, the members the
// incoming record carried overwrite the existing record's and the rest are
// kept; counters sharing an id keep the larger value.
func Merge(existing domain.Snapshot, incoming Incoming) (domain.Snapshot, domain.ImportResult) {
	var result domain.ImportResult
	merged := domain.Snapshot{}
	merged.Clients, result.Clients = mergeRecords(existing.Clients, incoming.Clients, incoming.clients, overlay[domain.Client])
	merged.Products, result.Products = mergeRecords(existing.Products, incoming.Products, incoming.products, overlay[domain.Product])
	merged.Transactions, result.Transactions = mergeRecords(existing.Transactions, incoming.Transactions, incoming.transactions, overlay[domain.Transaction])
	merged.DailyCounters, result.DailyCounters = mergeRecords(existing.DailyCounters, incoming.DailyCounters, incoming.counters, func(old, in domain.DailyCounter, fields Fields) domain.DailyCounter {
		next := overlay(old, in, fields)
		if old.Value > next.Value {
			next.Value = old.Value
		}
		return next
	})
	return merged, result
}

func mergeRecords[T store.Record](existing []T, incoming []T, fields []Fields, resolve func(old T, in T, fields Fields) T) ([]T, domain.MergeCount) {
	var count domain.MergeCount
	out := make([]T, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	for _, rec := range existing {
		pos[rec.RecordID()] = len(out)
		out = append(out, rec)
	}
	for i, rec := range incoming {
		j, ok := pos[rec.RecordID()]
		if !ok {
			pos[rec.RecordID()] = len(out)
			out = append(out, rec)
			count.Added++
			continue
		}
		var f Fields
		if i < len(fields) {
			f = fields[i]
		}
		out[j] = resolve(out[j], rec, f)
		count.Updated++
	}
	return out, count
}

// overlay writes the members in fields over old's JSON form and decodes the
// result. Without fields the incoming record replaces old outright.
func overlay[T any](old T, in T, fields Fields) T {
	if fields == nil {
		return in
	}
	base, err := json.Marshal(old)
	if err != nil {
		return in
	}
	members := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &members); err != nil {
		return in
	}
	for key, value := range fields {
		members[key] = value
	}
	payload, err := json.Marshal(members)
	if err != nil {
		return in
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return in
	}
	return out
}

// checkMergedTotals rejects a merge that left an incoming sale with a total
// that no longer matches its items, which happens when a file carries only
// one of the two.
func checkMergedTotals(merged []domain.Transaction, incoming []domain.Transaction) error {
	touched := make(map[string]bool, len(incoming))
	for _, tx := range incoming {
		touched[tx.ID] = true
	}
	for _, tx := range merged {
		if touched[tx.ID] && !Equal(tx.Total, tx.ItemsTotal()) {
			return domain.Invalid(domain.ErrInvalidTotal, "merged transaction %s total %s, items %s", tx.ID, tx.Total, tx.ItemsTotal())
		}
	}
	return nil
}

// Restore merges in into the ledger and rewrites every merged record in a
// single atomic unit, so a failure leaves the ledger as it was.
func Restore(ctx context.Context, ledger *store.Ledger, in Incoming) (domain.ImportResult, error) {
	var result domain.ImportResult
	err := ledger.Atomic(ctx, func(tx *store.Tx) error {
		existing, err := load(ctx, tx)
		if err != nil {
			return err
		}
		merged, counts := Merge(existing, in)
		if err := checkMergedTotals(merged.Transactions, in.Transactions); err != nil {
			return err
		}
		if err := writeAll(ctx, tx.Clients(), merged.Clients); err != nil {
			return err
		}
		if err := writeAll(ctx, tx.Products(), merged.Products); err != nil {
			return err
		}
		if err := writeAll(ctx, tx.Transactions(), merged.Transactions); err != nil {
			return err
		}
		if err := writeAll(ctx, tx.DailyCounters(), merged.DailyCounters); err != nil {
			return err
		}
		result = counts
		return nil
	})
	return result, err
}

// Clear empties every collection in one atomic unit.
func Clear(ctx context.Context, ledger *store.Ledger) error {
	return ledger.Atomic(ctx, func(tx *store.Tx) error {
		if err := tx.Clients().Clear(ctx); err != nil {
			return err
		}
		if err := tx.Products().Clear(ctx); err != nil {
			return err
		}
		if err := tx.Transactions().Clear(ctx); err != nil {
			return err
		}
		return tx.DailyCounters().Clear(ctx)
	})
}

func load(ctx context.Context, tx *store.Tx) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var err error
	if snap.Clients, err = tx.Clients().List(ctx); err != nil {
		return snap, err
	}
	if snap.Products, err = tx.Products().List(ctx); err != nil {
		return snap, err
	}
	if snap.Transactions, err = tx.Transactions().List(ctx); err != nil {
		return snap, err
	}
	if snap.DailyCounters, err = tx.DailyCounters().List(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func writeAll[T store.Record](ctx context.Context, coll store.Collection[T], records []T) error {
	for _, rec := range records {
		if _, err := coll.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Digest is the hex BLAKE2b-256 of the snapshot's JSON encoding.
func Digest(snap domain.Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether two total amounts agree to the cent.
func Equal(a decimal.Decimal, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
