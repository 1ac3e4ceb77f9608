package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/HAB39/3laNota/internal/backup"
	"github.com/HAB39/3laNota/internal/dates"
	"github.com/HAB39/3laNota/internal/debt"
	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/report"
)

// DueAmounts lists every client who owes something, by client id.
func (s *Service) DueAmounts(ctx context.Context, page int, pageSize int) (domain.Page[domain.ClientDue], error) {
	dues, err := s.cached(ctx, "due", func(txs []domain.Transaction, clients []domain.Client) []domain.ClientDue {
		return debt.DueAmounts(clients, txs)
	})
	if err != nil {
		return domain.Page[domain.ClientDue]{}, err
	}
	page, pageSize = s.pageArgs(page, pageSize)
	return domain.Paginate(dues, page, pageSize), nil
}

// TopDebtors returns the clients owing the most, largest first.
func (s *Service) TopDebtors(ctx context.Context) ([]domain.ClientDue, error) {
	return s.cached(ctx, "top", func(txs []domain.Transaction, clients []domain.Client) []domain.ClientDue {
		return debt.TopDebtors(clients, txs, debt.TopDebtorsLimit)
	})
}

// cached serves a debt report from the report cache for the current ledger
// revision, computing and storing it on a miss. Cache failures only cost a
// recomputation.
func (s *Service) cached(ctx context.Context, name string, compute func([]domain.Transaction, []domain.Client) []domain.ClientDue) ([]domain.ClientDue, error) {
	key := fmt.Sprintf("%s:%d", name, s.revision.Load())
	if hit, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache get %s: %v", key, err)
	} else if ok {
		return hit, nil
	}

	txs, clients, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	dues := compute(txs, clients)
	if err := s.cache.Set(ctx, key, dues, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set %s: %v", key, err)
	}
	return dues, nil
}

// ClientStatement itemizes the sales a client still owes for.
func (s *Service) ClientStatement(ctx context.Context, id string, page int, pageSize int) (domain.Statement, error) {
	client, err := s.ledger.Clients().Get(ctx, domain.NormalizeID(id))
	if err != nil {
		return domain.Statement{}, err
	}
	txs, err := s.ledger.Transactions().List(ctx)
	if err != nil {
		return domain.Statement{}, err
	}
	entries, total := debt.Statement(client, txs)
	page, pageSize = s.pageArgs(page, pageSize)
	return domain.Statement{
		Client:  client,
		Entries: domain.Paginate(entries, page, pageSize),
		Total:   total,
	}, nil
}

// SalesReport summarizes sales dated from..to inclusive. Both bounds are
// required and to may not be in the future.
func (s *Service) SalesReport(ctx context.Context, from string, to string, page int, pageSize int) (domain.SalesReport, error) {
	start, ok := dates.Parse(from)
	if !ok {
		return domain.SalesReport{}, domain.Invalid(domain.ErrInvalidInput, "from %q is not a date", from)
	}
	end, ok := dates.Parse(to)
	if !ok {
		return domain.SalesReport{}, domain.Invalid(domain.ErrInvalidInput, "to %q is not a date", to)
	}
	if dates.After(start, end) {
		return domain.SalesReport{}, domain.Invalid(domain.ErrInvalidInput, "from %s is after to %s", dates.Format(start), dates.Format(end))
	}
	if dates.After(end, s.today()) {
		return domain.SalesReport{}, domain.Invalid(domain.ErrFutureDate, "to %s", dates.Format(end))
	}

	txs, clients, err := s.load(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	summary := report.Sales(txs, report.NamesOf(clients), start, end)
	page, pageSize = s.pageArgs(page, pageSize)
	return domain.SalesReport{
		From:         dates.Format(start),
		To:           dates.Format(end),
		TotalSales:   summary.Total,
		Count:        summary.Count,
		AverageSale:  summary.Average,
		Transactions: domain.Paginate(summary.Transactions, page, pageSize),
	}, nil
}

// SalesAccumulation is the revenue chart series for the last ten periods.
func (s *Service) SalesAccumulation(ctx context.Context, period string) ([]domain.AccumulationPoint, error) {
	p, ok := report.ParsePeriod(period)
	if !ok {
		return nil, domain.Invalid(domain.ErrInvalidInput, "unknown period %q", period)
	}
	txs, err := s.ledger.Transactions().List(ctx)
	if err != nil {
		return nil, err
	}
	return report.Accumulate(txs, p, s.today()), nil
}

func (s *Service) Export(ctx context.Context) (domain.Snapshot, error) {
	return backup.Read(ctx, s.ledger)
}

// Import merges a backup file into the ledger. A malformed file changes
// nothing.
func (s *Service) Import(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	snap, err := backup.Decode(r)
	if err != nil {
		s.metrics.Restored(false)
		return domain.ImportResult{}, err
	}
	result, err := backup.Restore(ctx, s.ledger, snap)
	if err != nil {
		s.metrics.Restored(false)
		return domain.ImportResult{}, err
	}
	s.touch()
	s.metrics.Restored(true)
	log.Printf("[service] restored backup: clients +%d/~%d, products +%d/~%d, transactions +%d/~%d",
		result.Clients.Added, result.Clients.Updated,
		result.Products.Added, result.Products.Updated,
		result.Transactions.Added, result.Transactions.Updated)
	return result, nil
}

// Clear deletes every record in the ledger.
func (s *Service) Clear(ctx context.Context) error {
	if err := backup.Clear(ctx, s.ledger); err != nil {
		return err
	}
	s.touch()
	log.Printf("[service] ledger cleared")
	return nil
}
