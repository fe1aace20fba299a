package cache

import (
	"context"
	"time"

	"comandero/backend/internal/domain"
)

// ReportCache holds computed daily cut summaries keyed by business day.
// Entries are invalidated whenever a drawer movement lands on that day.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.DailyCutSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.DailyCutSummary, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.DailyCutSummary, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.DailyCutSummary, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Del(_ context.Context, _ string) error {
	return nil
}
