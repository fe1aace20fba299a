package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/cache"
	"comandero/backend/internal/catalog"
	"comandero/backend/internal/domain"
	"comandero/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	reports  cache.ReportCache
	catalog  *catalog.Catalog
	cacheTTL time.Duration

	// mu serializes the multi-step order/ledger cycles (load order, compute,
	// append ledger, rewrite order) so concurrent payments and adjustments
	// never interleave. The stores lock their own state but cannot see a
	// cycle as a whole.
	mu sync.Mutex
}

func New(repo store.Repository, reports cache.ReportCache, menu *catalog.Catalog, cacheTTL time.Duration) *Service {
	if menu == nil {
		menu = catalog.Default()
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Service{
		repo:     repo,
		reports:  reports,
		catalog:  menu,
		cacheTTL: cacheTTL,
	}
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.TableNumber = strings.TrimSpace(req.TableNumber)
	req.Comments = strings.TrimSpace(req.Comments)

	items := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return domain.Order{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := domain.Order{
		CustomerName: req.CustomerName,
		TableNumber:  req.TableNumber,
		Items:        items,
		Total:        s.catalog.Total(items),
		Status:       domain.StatusPending,
		Comments:     req.Comments,
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	return *created, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// ListOrdersForDay returns the day's orders sorted by creation time.
func (s *Service) ListOrdersForDay(ctx context.Context, day string) ([]domain.Order, error) {
	from, to, err := dayWindow(day)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, from, to)
}

func (s *Service) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListAllOrders(ctx)
}

// UpdateOrder applies an edit and reports the payment delta it left behind.
// A positive AdjustmentDue means the customer owes more than they settled; a
// negative one means money has to go back. The delta is settled separately
// through ResolveAdjustment.
func (s *Service) UpdateOrder(ctx context.Context, id int64, req domain.OrderUpdateRequest) (domain.OrderUpdateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.OrderUpdateResponse{}, err
	}

	updated := *existing
	if req.CustomerName != nil {
		updated.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.TableNumber != nil {
		updated.TableNumber = strings.TrimSpace(*req.TableNumber)
	}
	if req.Comments != nil {
		updated.Comments = strings.TrimSpace(*req.Comments)
	}
	if req.Items != nil {
		items := make([]string, 0, len(*req.Items))
		for _, item := range *req.Items {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return domain.OrderUpdateResponse{}, store.ErrInvalidInput
		}
		updated.Items = items
		updated.Total = s.catalog.Total(items)
	}
	// A content save stamps the order with the edit time, so the order counts
	// toward the day it was last touched.
	updated.CreatedAt = time.Now()

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return domain.OrderUpdateResponse{}, err
	}

	due := decimal.Zero
	if saved.Paid() {
		due = saved.Total.Sub(saved.Payment.Settled())
	}
	return domain.OrderUpdateResponse{Order: *saved, AdjustmentDue: due}, nil
}

func (s *Service) SetOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if status != domain.StatusPending && status != domain.StatusDelivered {
		return domain.Order{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	existing.Status = status
	saved, err := s.repo.UpdateOrder(ctx, *existing)
	if err != nil {
		return domain.Order{}, err
	}
	return *saved, nil
}

func dayWindow(day string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(domain.DayLayout, day, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrInvalidInput
	}
	return start, start.AddDate(0, 0, 1), nil
}

func today() string {
	return time.Now().Format(domain.DayLayout)
}
