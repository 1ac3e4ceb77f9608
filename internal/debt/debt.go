// Package debt computes what each client owes: the sum of every sale dated
// strictly after the client's last payment.
package debt

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HAB39/3laNota/internal/dates"
	"github.com/HAB39/3laNota/internal/domain"
)

const TopDebtorsLimit = 10

// index groups transactions by normalized client id and parses each date
// once.
type index map[string][]dated

type dated struct {
	tx   domain.Transaction
	date time.Time
}

func buildIndex(txs []domain.Transaction) index {
	idx := make(index)
	for _, tx := range txs {
		date, ok := dates.Parse(tx.Date)
		if !ok {
			continue
		}
		key := domain.NormalizeID(string(tx.ClientID))
		if key == "" {
			continue
		}
		idx[key] = append(idx[key], dated{tx: tx, date: date})
	}
	return idx
}

// qualifying returns the client's transactions dated after the last payment,
// or nil when that date cannot be parsed.
func (idx index) qualifying(client domain.Client) []dated {
	paidOn, ok := dates.Parse(client.LastPaymentDate)
	if !ok {
		return nil
	}
	var out []dated
	for _, d := range idx[domain.NormalizeID(string(client.ID))] {
		if dates.After(d.date, paidOn) {
			out = append(out, d)
		}
	}
	return out
}

func (idx index) due(client domain.Client) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range idx.qualifying(client) {
		sum = sum.Add(d.tx.Total)
	}
	return sum
}

// DueAmount is the client's outstanding balance. An unparseable last payment
// date yields zero.
func DueAmount(client domain.Client, txs []domain.Transaction) decimal.Decimal {
	return buildIndex(txs).due(client)
}

// DueAmounts lists clients that owe something, ordered by client id.
func DueAmounts(clients []domain.Client, txs []domain.Transaction) []domain.ClientDue {
	idx := buildIndex(txs)
	out := make([]domain.ClientDue, 0, len(clients))
	for _, client := range clients {
		amount := idx.due(client)
		if !amount.IsPositive() {
			continue
		}
		out = append(out, domain.ClientDue{Client: client, DueAmount: amount})
	}
	slices.SortStableFunc(out, func(a, b domain.ClientDue) int {
		return domain.CompareIDs(string(a.ID), string(b.ID))
	})
	return out
}

// TopDebtors returns at most n clients by descending due amount. Equal
// amounts are ordered by client id.
func TopDebtors(clients []domain.Client, txs []domain.Transaction, n int) []domain.ClientDue {
	if n < 1 {
		n = TopDebtorsLimit
	}
	ranked := DueAmounts(clients, txs)
	slices.SortStableFunc(ranked, func(a, b domain.ClientDue) int {
		if c := b.DueAmount.Cmp(a.DueAmount); c != 0 {
			return c
		}
		return domain.CompareIDs(string(a.ID), string(b.ID))
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Statement expands the client's qualifying transactions into line items,
// oldest first. Its total equals DueAmount whenever transaction totals match
// their items.
func Statement(client domain.Client, txs []domain.Transaction) ([]domain.StatementEntry, decimal.Decimal) {
	rows := buildIndex(txs).qualifying(client)
	slices.SortStableFunc(rows, func(a, b dated) int {
		if c := a.date.Compare(b.date); c != 0 {
			return c
		}
		return domain.CompareIDs(a.tx.ID, b.tx.ID)
	})

	entries := make([]domain.StatementEntry, 0, len(rows))
	total := decimal.Zero
	for _, row := range rows {
		subtotal := row.tx.ItemsTotal()
		items := row.tx.Items
		if items == nil {
			items = []domain.LineItem{}
		}
		entries = append(entries, domain.StatementEntry{
			TransactionID: row.tx.ID,
			Date:          dates.Format(row.date),
			Items:         items,
			Subtotal:      subtotal,
		})
		total = total.Add(subtotal)
	}
	return entries, total
}
