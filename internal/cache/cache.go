package cache

import (
	"context"
	"time"

	"github.com/HAB39/3laNota/internal/domain"
)

// ReportCache stores computed balance reports. Keys carry the ledger
// revision they were computed at, so entries never need invalidating.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]domain.ClientDue, bool, error)
	Set(ctx context.Context, key string, value []domain.ClientDue, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) ([]domain.ClientDue, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ []domain.ClientDue, _ time.Duration) error {
	return nil
}
