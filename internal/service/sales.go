package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/HAB39/3laNota/internal/dates"
	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/numbering"
	"github.com/HAB39/3laNota/internal/report"
	"github.com/HAB39/3laNota/internal/store"
)

var earliestSaleDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ConfirmSale numbers and records a sale. The number is issued and the sale
// written in one atomic unit, so a failed write never burns a number.
func (s *Service) ConfirmSale(ctx context.Context, req domain.SaleRequest) (domain.TransactionView, error) {
	tx, date, err := s.validateSale(req)
	if err != nil {
		return domain.TransactionView{}, err
	}

	var (
		clientName  string
		issueFailed bool
	)
	err = s.ledger.Atomic(ctx, func(unit *store.Tx) error {
		for {
			id, err := numbering.Issue(ctx, unit.DailyCounters(), date)
			if err != nil {
				issueFailed = true
				return err
			}
			_, err = unit.Transactions().Get(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				tx.ID = id
				break
			}
			if err != nil {
				return err
			}
			log.Printf("[service] WARN: sale number %s already used, issuing the next one", id)
		}
		if _, err := unit.Transactions().Put(ctx, tx); err != nil {
			return err
		}

		client, err := unit.Clients().Get(ctx, domain.NormalizeID(string(tx.ClientID)))
		switch {
		case err == nil:
			clientName = client.Name
		case errors.Is(err, store.ErrNotFound):
			clientName = report.UnknownClient
		default:
			return err
		}
		return nil
	})
	if err != nil {
		if issueFailed {
			s.metrics.NumberingFailed()
		}
		return domain.TransactionView{}, err
	}

	s.touch()
	s.metrics.SaleConfirmed()
	return domain.TransactionView{Transaction: tx, ClientName: clientName}, nil
}

func (s *Service) validateSale(req domain.SaleRequest) (domain.Transaction, time.Time, error) {
	clientID := domain.NormalizeID(string(req.ClientID))
	if clientID == "" {
		return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrInvalidInput, "a client is required")
	}

	date, ok := dates.Parse(req.Date)
	if !ok {
		return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrInvalidInput, "sale date %q is not a date", req.Date)
	}
	if dates.After(date, s.today()) {
		return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrFutureDate, "sale date %s", dates.Format(date))
	}
	if date.Before(earliestSaleDate) {
		return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrInvalidInput, "sale date %s is too far in the past", dates.Format(date))
	}

	if len(req.Items) == 0 {
		return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrInvalidInput, "a sale needs at least one item")
	}
	items := make([]domain.LineItem, 0, len(req.Items))
	for i, item := range req.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrInvalidInput, "item %d has no name", i+1)
		}
		if item.Price.IsNegative() {
			return domain.Transaction{}, time.Time{}, domain.Invalid(domain.ErrInvalidInput, "item %q has a negative price", name)
		}
		items = append(items, domain.LineItem{Name: name, Price: item.Price})
	}

	tx := domain.Transaction{
		ClientID: domain.Ref(clientID),
		Date:     dates.Format(date),
		Items:    items,
	}
	tx.Total = tx.ItemsTotal()
	return tx, date, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.TransactionView, error) {
	id = strings.TrimSpace(id)
	tx, err := s.ledger.Transactions().Get(ctx, id)
	if err != nil {
		return domain.TransactionView{}, err
	}
	clients, err := s.ledger.Clients().List(ctx)
	if err != nil {
		return domain.TransactionView{}, err
	}
	return report.NamesOf(clients).View(tx), nil
}

// ListTransactions searches sales by number, client name, date or total,
// highest sale number first. An empty query lists everything.
func (s *Service) ListTransactions(ctx context.Context, query string, page int, pageSize int) (domain.Page[domain.TransactionView], error) {
	txs, clients, err := s.load(ctx)
	if err != nil {
		return domain.Page[domain.TransactionView]{}, err
	}
	views := report.SearchTransactions(txs, report.NamesOf(clients), query)
	page, pageSize = s.pageArgs(page, pageSize)
	return domain.Paginate(views, page, pageSize), nil
}

func (s *Service) load(ctx context.Context) ([]domain.Transaction, []domain.Client, error) {
	txs, err := s.ledger.Transactions().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load transactions: %w", err)
	}
	clients, err := s.ledger.Clients().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load clients: %w", err)
	}
	return txs, clients, nil
}
