// Package report builds the sales views of the ledger: the dated sales
// report, the accumulation chart series and transaction search.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HAB39/3laNota/internal/dates"
	"github.com/HAB39/3laNota/internal/domain"
)

// UnknownClient labels sales whose client no longer exists.
const UnknownClient = "غير معروف"

type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

const accumulationPeriods = 10

func ParsePeriod(text string) (Period, bool) {
	switch Period(strings.ToLower(strings.TrimSpace(text))) {
	case Day, "":
		return Day, true
	case Week:
		return Week, true
	case Month:
		return Month, true
	default:
		return "", false
	}
}

// Names maps normalized client ids to client names.
type Names map[string]string

func NamesOf(clients []domain.Client) Names {
	names := make(Names, len(clients))
	for _, c := range clients {
		names[domain.NormalizeID(string(c.ID))] = c.Name
	}
	return names
}

func (n Names) Lookup(ref domain.Ref) string {
	if name, ok := n[domain.NormalizeID(string(ref))]; ok {
		return name
	}
	return UnknownClient
}

func (n Names) View(tx domain.Transaction) domain.TransactionView {
	if tx.Items == nil {
		tx.Items = []domain.LineItem{}
	}
	return domain.TransactionView{Transaction: tx, ClientName: n.Lookup(tx.ClientID)}
}

type SalesSummary struct {
	Transactions []domain.TransactionView
	Total        decimal.Decimal
	Count        int
	Average      decimal.Decimal
}

// Sales selects transactions dated within [from, to], newest first.
func Sales(txs []domain.Transaction, names Names, from time.Time, to time.Time) SalesSummary {
	type row struct {
		view domain.TransactionView
		date time.Time
	}
	rows := make([]row, 0, len(txs))
	for _, tx := range txs {
		date, ok := dates.Parse(tx.Date)
		if !ok || dates.After(from, date) || dates.After(date, to) {
			continue
		}
		rows = append(rows, row{view: names.View(tx), date: date})
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		if c := b.date.Compare(a.date); c != 0 {
			return c
		}
		return domain.CompareIDs(b.view.ID, a.view.ID)
	})

	summary := SalesSummary{
		Transactions: make([]domain.TransactionView, 0, len(rows)),
		Total:        decimal.Zero,
		Average:      decimal.Zero,
	}
	for _, r := range rows {
		summary.Transactions = append(summary.Transactions, r.view)
		summary.Total = summary.Total.Add(r.view.Total)
	}
	summary.Count = len(rows)
	if summary.Count > 0 {
		summary.Average = summary.Total.Div(decimal.NewFromInt(int64(summary.Count))).Round(2)
	}
	return summary
}

// Accumulate groups revenue by period over the last ten periods ending at
// today, oldest first. Weeks start on Saturday.
func Accumulate(txs []domain.Transaction, period Period, today time.Time) []domain.AccumulationPoint {
	var start time.Time
	switch period {
	case Week:
		start = today.AddDate(0, 0, -7*(accumulationPeriods-1))
	case Month:
		start = today.AddDate(0, -(accumulationPeriods - 1), 0)
	default:
		period = Day
		start = today.AddDate(0, 0, -(accumulationPeriods - 1))
	}

	type bucket struct {
		at    time.Time
		point domain.AccumulationPoint
	}
	buckets := make(map[string]*bucket)
	for _, tx := range txs {
		date, ok := dates.Parse(tx.Date)
		if !ok || dates.After(start, date) {
			continue
		}
		at, key := periodStart(date, period)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{at: at, point: domain.AccumulationPoint{Key: key, Revenue: decimal.Zero}}
			buckets[key] = b
		}
		b.point.Revenue = b.point.Revenue.Add(tx.Total)
		b.point.Count++
	}

	sorted := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		sorted = append(sorted, b)
	}
	slices.SortFunc(sorted, func(a, b *bucket) int { return a.at.Compare(b.at) })
	if len(sorted) > accumulationPeriods {
		sorted = sorted[len(sorted)-accumulationPeriods:]
	}

	out := make([]domain.AccumulationPoint, 0, len(sorted))
	for _, b := range sorted {
		out = append(out, b.point)
	}
	return out
}

func periodStart(date time.Time, period Period) (time.Time, string) {
	switch period {
	case Week:
		offset := (int(date.Weekday()) + 1) % 7
		start := date.AddDate(0, 0, -offset)
		return start, dates.Format(start)
	case Month:
		start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
	default:
		return date, dates.Format(date)
	}
}

// SearchTransactions matches query against the sale number, client name,
// date and total. Results are ordered by sale number, highest first.
func SearchTransactions(txs []domain.Transaction, names Names, query string) []domain.TransactionView {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.TransactionView, 0, len(txs))
	for _, tx := range txs {
		view := names.View(tx)
		if q == "" ||
			strings.Contains(strings.ToLower(view.ID), q) ||
			strings.Contains(strings.ToLower(view.ClientName), q) ||
			strings.Contains(view.Date, q) ||
			strings.Contains(view.Total.String(), q) {
			out = append(out, view)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.TransactionView) int {
		return domain.CompareIDs(b.ID, a.ID)
	})
	return out
}

// FilterClients keeps clients whose name contains query, ignoring case.
func FilterClients(clients []domain.Client, query string) []domain.Client {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Client, 0, len(clients))
	for _, c := range clients {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}
