package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	ordersByID      map[int64]domain.Order
	ledger          []domain.LedgerEntry
	openingDays     map[string]bool
	openedDays      map[string]bool
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		ordersByID:      make(map[int64]domain.Order),
		ledger:          make([]domain.LedgerEntry, 0, 128),
		openingDays:     make(map[string]bool),
		openedDays:      make(map[string]bool),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for id := range s.ordersByID {
		if id > maxID {
			maxID = id
		}
	}
	order.ID = maxID + 1
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	s.ordersByID[order.ID] = cloneOrder(order)
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ordersByID[order.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.ordersByID[order.ID] = cloneOrder(order)
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		out = append(out, cloneOrder(order))
	}
	sortOrders(out)
	return out, nil
}

func (s *Store) ListAllOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		out = append(out, cloneOrder(order))
	}
	sortOrders(out)
	return out, nil
}

func (s *Store) AppendEntry(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Kind == domain.KindOpeningBalance {
		day := entry.Timestamp.Format(domain.DayLayout)
		if s.openingDays[day] {
			return nil, store.ErrDuplicateOpeningBalance
		}
		s.openingDays[day] = true
	}

	prev := decimal.Zero
	if n := len(s.ledger); n > 0 {
		prev = s.ledger[n-1].BalanceAfter
	}
	entry.BalanceAfter = prev.Add(entry.CashIn).Sub(entry.CashOut)
	s.ledger = append(s.ledger, entry)
	out := entry
	return &out, nil
}

func (s *Store) ListEntries(_ context.Context, from time.Time, to time.Time) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LedgerEntry, 0, 32)
	for _, entry := range s.ledger {
		if entry.Timestamp.Before(from) || !entry.Timestamp.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) CurrentBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n := len(s.ledger); n > 0 {
		return s.ledger[n-1].BalanceAfter, nil
	}
	return decimal.Zero, nil
}

func (s *Store) HasOpeningBalance(_ context.Context, day string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.openingDays[day], nil
}

func (s *Store) MarkDayOpened(_ context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.openedDays[day] = true
	return nil
}

func (s *Store) DayOpened(_ context.Context, day string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.openedDays[day], nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := user
	return &out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return out, nil
}

func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Items = slices.Clone(order.Items)
	if order.Payment != nil {
		payment := *order.Payment
		out.Payment = &payment
	}
	return out
}

func sortOrders(orders []domain.Order) {
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.Before(b.CreatedAt) {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
