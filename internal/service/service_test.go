package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/report"
	"github.com/HAB39/3laNota/internal/store"
	"github.com/HAB39/3laNota/internal/store/memory"
)

// fixedNow is 5 January 2024, mid-morning in UTC.
var fixedNow = time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.Ledger) {
	t.Helper()
	ledger := store.NewLedger(memory.New())
	next := 0
	svc := New(ledger, Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		NewID: func() string {
			next++
			return strconv.Itoa(next)
		},
	})
	return svc, ledger
}

func addClient(t *testing.T, svc *Service, name string, mobile string, paid string) domain.Client {
	t.Helper()
	c, err := svc.AddClient(context.Background(), domain.ClientInput{Name: name, Mobile: mobile, LastPaymentDate: paid})
	if err != nil {
		t.Fatalf("add client %s: %v", name, err)
	}
	return c
}

func saleFor(clientID string, date string, prices ...int64) domain.SaleRequest {
	req := domain.SaleRequest{ClientID: domain.Ref(clientID), Date: date}
	for i, p := range prices {
		req.Items = append(req.Items, domain.LineItem{Name: "item-" + strconv.Itoa(i), Price: decimal.NewFromInt(p)})
	}
	return req
}

func TestAddClientCanonicalizesAndAssignsID(t *testing.T) {
	svc, _ := newTestService(t)
	c := addClient(t, svc, "  Ali ", "01012345678", "2024-01-01")
	if c.ID != "1" || c.Name != "Ali" || c.LastPaymentDate != "01-01-2024" {
		t.Fatalf("unexpected client %+v", c)
	}
}

func TestAddClientRejectsDuplicatesAndBadMobile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addClient(t, svc, "Ali", "01012345678", "01-01-2024")

	cases := []struct {
		name string
		in   domain.ClientInput
		want error
	}{
		{"same name other case", domain.ClientInput{Name: "ALI", Mobile: "01198765432", LastPaymentDate: "01-01-2024"}, domain.ErrDuplicate},
		{"same mobile", domain.ClientInput{Name: "Mona", Mobile: "01012345678", LastPaymentDate: "01-01-2024"}, domain.ErrDuplicate},
		{"bad prefix", domain.ClientInput{Name: "Mona", Mobile: "01312345678", LastPaymentDate: "01-01-2024"}, domain.ErrInvalidInput},
		{"short mobile", domain.ClientInput{Name: "Mona", Mobile: "0101234567", LastPaymentDate: "01-01-2024"}, domain.ErrInvalidInput},
		{"missing date", domain.ClientInput{Name: "Mona", Mobile: "01198765432"}, domain.ErrInvalidInput},
		{"bad date", domain.ClientInput{Name: "Mona", Mobile: "01198765432", LastPaymentDate: "31-02-2024"}, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		_, err := svc.AddClient(ctx, tc.in)
		if !errors.Is(err, tc.want) || !domain.IsValidation(err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestUpdateClientIgnoresItself(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ali := addClient(t, svc, "Ali", "01012345678", "01-01-2024")
	addClient(t, svc, "Mona", "01198765432", "01-01-2024")

	updated, err := svc.UpdateClient(ctx, string(ali.ID), domain.ClientInput{Name: "Ali", Mobile: "01012345678", LastPaymentDate: "04-01-2024"})
	if err != nil {
		t.Fatalf("update own record: %v", err)
	}
	if updated.LastPaymentDate != "04-01-2024" {
		t.Fatalf("expected new payment date, got %q", updated.LastPaymentDate)
	}

	_, err = svc.UpdateClient(ctx, string(ali.ID), domain.ClientInput{Name: "mona", Mobile: "01012345678", LastPaymentDate: "04-01-2024"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate name, got %v", err)
	}
	_, err = svc.UpdateClient(ctx, "99", domain.ClientInput{Name: "Zed", Mobile: "01500000000", LastPaymentDate: "04-01-2024"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductsAreUniqueByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tea, err := svc.AddProduct(ctx, domain.ProductInput{Name: "Tea"})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if _, err := svc.AddProduct(ctx, domain.ProductInput{Name: " Tea "}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := svc.UpdateProduct(ctx, string(tea.ID), domain.ProductInput{Name: "Tea"}); err != nil {
		t.Fatalf("renaming to own name should pass: %v", err)
	}
	if err := svc.DeleteProduct(ctx, string(tea.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteProduct(ctx, string(tea.ID)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestConfirmSaleNumbersAndTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ali := addClient(t, svc, "Ali", "01012345678", "01-01-2024")

	first, err := svc.ConfirmSale(ctx, saleFor(string(ali.ID), "2024-01-05", 20, 30))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if first.ID != "240105001" || first.Date != "05-01-2024" || first.ClientName != "Ali" {
		t.Fatalf("unexpected sale %+v", first)
	}
	if !first.Total.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected total 50, got %s", first.Total)
	}

	second, err := svc.ConfirmSale(ctx, saleFor(string(ali.ID), "05-01-2024", 5))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if second.ID != "240105002" {
		t.Fatalf("expected 240105002, got %s", second.ID)
	}
}

func TestConfirmSaleSkipsNumbersAlreadyTaken(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	if _, err := ledger.Transactions().Put(ctx, domain.Transaction{ID: "240105001", ClientID: "1", Date: "05-01-2024", Total: decimal.Zero}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tx, err := svc.ConfirmSale(ctx, saleFor("1", "05-01-2024", 1))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if tx.ID != "240105002" {
		t.Fatalf("expected the taken number to be skipped, got %s", tx.ID)
	}
	if tx.ClientName != report.UnknownClient {
		t.Fatalf("expected unknown client name, got %q", tx.ClientName)
	}
}

func TestConfirmSaleValidation(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.SaleRequest
		want error
	}{
		{"no client", saleFor("", "05-01-2024", 1), domain.ErrInvalidInput},
		{"future", saleFor("1", "06-01-2024", 1), domain.ErrFutureDate},
		{"not a date", saleFor("1", "yesterday", 1), domain.ErrInvalidInput},
		{"too old", saleFor("1", "31-12-1999", 1), domain.ErrInvalidInput},
		{"no items", saleFor("1", "05-01-2024"), domain.ErrInvalidInput},
		{"negative price", saleFor("1", "05-01-2024", -1), domain.ErrInvalidInput},
		{"blank item", domain.SaleRequest{ClientID: "1", Date: "05-01-2024", Items: []domain.LineItem{{Name: " ", Price: decimal.NewFromInt(1)}}}, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		if _, err := svc.ConfirmSale(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	counters, err := ledger.DailyCounters().List(ctx)
	if err != nil {
		t.Fatalf("list counters: %v", err)
	}
	if len(counters) != 0 {
		t.Fatalf("rejected sales must not consume numbers, got %+v", counters)
	}
}

func TestStatementTotalEqualsDueAmount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ali := addClient(t, svc, "Ali", "01012345678", "02-01-2024")
	mona := addClient(t, svc, "Mona", "01198765432", "01-01-2024")

	for _, req := range []domain.SaleRequest{
		saleFor(string(ali.ID), "01-01-2024", 30),
		saleFor(string(ali.ID), "03-01-2024", 20),
		saleFor(string(ali.ID), "05-01-2024", 15, 15),
		saleFor(string(mona.ID), "04-01-2024", 100),
	} {
		if _, err := svc.ConfirmSale(ctx, req); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	statement, err := svc.ClientStatement(ctx, string(ali.ID), 1, 10)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if statement.Entries.Total != 2 || !statement.Total.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected statement %+v", statement)
	}

	dues, err := svc.DueAmounts(ctx, 1, 10)
	if err != nil {
		t.Fatalf("due amounts: %v", err)
	}
	if dues.Total != 2 || !dues.Items[0].DueAmount.Equal(statement.Total) {
		t.Fatalf("unexpected dues %+v", dues)
	}

	top, err := svc.TopDebtors(ctx)
	if err != nil {
		t.Fatalf("top debtors: %v", err)
	}
	if len(top) != 2 || top[0].Name != "Mona" {
		t.Fatalf("expected Mona first, got %+v", top)
	}
}

func TestDueAmountsRecomputedAfterWrite(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ali := addClient(t, svc, "Ali", "01012345678", "01-01-2024")

	before, err := svc.DueAmounts(ctx, 1, 10)
	if err != nil {
		t.Fatalf("due amounts: %v", err)
	}
	if before.Total != 0 {
		t.Fatalf("expected nobody to owe, got %+v", before)
	}
	if _, err := svc.ConfirmSale(ctx, saleFor(string(ali.ID), "05-01-2024", 9)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	after, err := svc.DueAmounts(ctx, 1, 10)
	if err != nil {
		t.Fatalf("due amounts: %v", err)
	}
	if after.Total != 1 {
		t.Fatalf("expected the new sale to show up, got %+v", after)
	}
}

func TestSalesReportBounds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ali := addClient(t, svc, "Ali", "01012345678", "01-01-2024")
	for _, req := range []domain.SaleRequest{
		saleFor(string(ali.ID), "02-01-2024", 10),
		saleFor(string(ali.ID), "03-01-2024", 20),
		saleFor(string(ali.ID), "05-01-2024", 40),
	} {
		if _, err := svc.ConfirmSale(ctx, req); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	r, err := svc.SalesReport(ctx, "2024-01-02", "03-01-2024", 1, 10)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if r.Count != 2 || !r.TotalSales.Equal(decimal.NewFromInt(30)) || !r.AverageSale.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.Transactions.Items[0].ID != "240103001" {
		t.Fatalf("expected newest first, got %s", r.Transactions.Items[0].ID)
	}

	if _, err := svc.SalesReport(ctx, "04-01-2024", "03-01-2024", 1, 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected from after to to fail, got %v", err)
	}
	if _, err := svc.SalesReport(ctx, "01-01-2024", "06-01-2024", 1, 10); !errors.Is(err, domain.ErrFutureDate) {
		t.Fatalf("expected future bound to fail, got %v", err)
	}
}

func TestSalesAccumulationRejectsUnknownPeriod(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.SalesAccumulation(context.Background(), "year"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	points, err := svc.SalesAccumulation(context.Background(), "")
	if err != nil || len(points) != 0 {
		t.Fatalf("expected empty series, got %v %v", points, err)
	}
}

func TestImportMergesAndClearEmpties(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	addClient(t, svc, "Ali", "01012345678", "01-01-2024")

	body := `{
	  "clients": [{"id": 1, "name": "Ali Hassan", "mobile": "01012345678", "lastPaymentDate": "01-01-2024"},
	              {"id": 2, "name": "Mona", "mobile": "01198765432", "lastPaymentDate": "01-01-2024"}],
	  "products": [],
	  "transactions": [{"id": "240104001", "clientId": 2, "date": "04-01-2024", "items": [{"name": "Rice", "price": 12.5}], "total": 12.5}],
	  "transactionCounters": [{"id": "240104", "value": 1}]
	}`
	result, err := svc.Import(ctx, strings.NewReader(body))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Clients.Added != 1 || result.Clients.Updated != 1 || result.Transactions.Added != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}

	next, err := svc.ConfirmSale(ctx, saleFor("2", "04-01-2024", 1))
	if err != nil {
		t.Fatalf("confirm after import: %v", err)
	}
	if next.ID != "240104002" {
		t.Fatalf("expected numbering to continue from the restored counter, got %s", next.ID)
	}

	if _, err := svc.Import(ctx, strings.NewReader(`{"clients": []}`)); !errors.Is(err, domain.ErrInvalidSnapshot) {
		t.Fatalf("expected invalid snapshot, got %v", err)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	snap, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(snap.Clients)+len(snap.Transactions)+len(snap.DailyCounters) != 0 {
		t.Fatalf("expected empty ledger, got %+v", snap)
	}
	if err := ledger.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
