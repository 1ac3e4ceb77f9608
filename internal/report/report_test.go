package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HAB39/3laNota/internal/domain"
)

func tx(id string, clientID string, date string, total int64) domain.Transaction {
	amount := decimal.NewFromInt(total)
	return domain.Transaction{
		ID:       id,
		ClientID: domain.Ref(clientID),
		Date:     date,
		Items:    []domain.LineItem{{Name: "item", Price: amount}},
		Total:    amount,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSalesFiltersRangeNewestFirst(t *testing.T) {
	names := NamesOf([]domain.Client{{ID: "1", Name: "Ali"}})
	txs := []domain.Transaction{
		tx("240101001", "1", "01-01-2024", 10),
		tx("240103001", "1", "03-01-2024", 20),
		tx("240103002", "9", "03-01-2024", 30),
		tx("240110001", "1", "10-01-2024", 40),
		tx("bad", "1", "never", 99),
	}

	got := Sales(txs, names, day(2024, 1, 1), day(2024, 1, 5))
	if got.Count != 3 {
		t.Fatalf("expected 3 sales in range, got %d", got.Count)
	}
	if got.Transactions[0].ID != "240103002" || got.Transactions[2].ID != "240101001" {
		t.Fatalf("expected newest first, got %s ... %s", got.Transactions[0].ID, got.Transactions[2].ID)
	}
	if got.Transactions[0].ClientName != UnknownClient || got.Transactions[1].ClientName != "Ali" {
		t.Fatalf("unexpected client names %q %q", got.Transactions[0].ClientName, got.Transactions[1].ClientName)
	}
	if !got.Total.Equal(decimal.NewFromInt(60)) || !got.Average.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected totals %s / %s", got.Total, got.Average)
	}
}

func TestSalesEmptyRange(t *testing.T) {
	got := Sales(nil, Names{}, day(2024, 1, 1), day(2024, 1, 2))
	if got.Count != 0 || !got.Average.IsZero() || got.Transactions == nil {
		t.Fatalf("unexpected empty summary %+v", got)
	}
}

func TestAccumulateByWeekStartsSaturday(t *testing.T) {
	txs := []domain.Transaction{
		tx("1", "1", "06-01-2024", 5),  // Saturday
		tx("2", "1", "12-01-2024", 7),  // Friday, same week
		tx("3", "1", "13-01-2024", 11), // next Saturday
	}
	got := Accumulate(txs, Week, day(2024, 1, 14))
	if len(got) != 2 {
		t.Fatalf("expected 2 weeks, got %+v", got)
	}
	if got[0].Key != "06-01-2024" || got[0].Count != 2 || !got[0].Revenue.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected first week %+v", got[0])
	}
	if got[1].Key != "13-01-2024" {
		t.Fatalf("unexpected second week %+v", got[1])
	}
}

func TestAccumulateKeepsLastTenDays(t *testing.T) {
	var txs []domain.Transaction
	for d := 1; d <= 20; d++ {
		txs = append(txs, tx("x", "1", day(2024, 3, d).Format("02-01-2006"), 1))
	}
	got := Accumulate(txs, Day, day(2024, 3, 20))
	if len(got) != 10 {
		t.Fatalf("expected 10 points, got %d", len(got))
	}
	if got[0].Key != "11-03-2024" || got[9].Key != "20-03-2024" {
		t.Fatalf("unexpected window %s..%s", got[0].Key, got[9].Key)
	}
}

func TestAccumulateByMonth(t *testing.T) {
	txs := []domain.Transaction{
		tx("1", "1", "15-01-2024", 5),
		tx("2", "1", "20-01-2024", 5),
		tx("3", "1", "02-03-2024", 1),
		tx("4", "1", "02-03-2022", 1),
	}
	got := Accumulate(txs, Month, day(2024, 3, 31))
	if len(got) != 2 || got[0].Key != "2024-01" || got[1].Key != "2024-03" {
		t.Fatalf("unexpected months %+v", got)
	}
}

func TestSearchTransactions(t *testing.T) {
	names := NamesOf([]domain.Client{{ID: "1", Name: "Mona Adel"}})
	txs := []domain.Transaction{
		tx("240105001", "1", "05-01-2024", 75),
		tx("240105010", "2", "05-01-2024", 12),
		tx("240106001", "2", "06-01-2024", 33),
	}

	if got := SearchTransactions(txs, names, "mona"); len(got) != 1 || got[0].ID != "240105001" {
		t.Fatalf("expected client name match, got %+v", got)
	}
	got := SearchTransactions(txs, names, "05-01")
	if len(got) != 2 || got[0].ID != "240105010" {
		t.Fatalf("expected date matches sorted by id desc, got %+v", got)
	}
	if got := SearchTransactions(txs, names, "33"); len(got) != 1 || got[0].ID != "240106001" {
		t.Fatalf("expected total match, got %+v", got)
	}
	if got := SearchTransactions(txs, names, ""); len(got) != 3 || got[0].ID != "240106001" {
		t.Fatalf("expected everything for empty query, got %+v", got)
	}
}

func TestFilterClients(t *testing.T) {
	clients := []domain.Client{{ID: "1", Name: "Ahmed"}, {ID: "2", Name: "Mahmoud"}, {ID: "3", Name: "Sara"}}
	if got := FilterClients(clients, "AHM"); len(got) != 1 || got[0].Name != "Ahmed" {
		t.Fatalf("unexpected filter result %+v", got)
	}
	if got := FilterClients(clients, "m"); len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestParsePeriod(t *testing.T) {
	if p, ok := ParsePeriod(""); !ok || p != Day {
		t.Fatalf("expected default day period")
	}
	if _, ok := ParsePeriod("year"); ok {
		t.Fatalf("expected unknown period to be rejected")
	}
}
