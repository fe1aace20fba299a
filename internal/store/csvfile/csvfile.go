// Package csvfile persists orders and the cash ledger as CSV tables under a
// data directory. Files are the durable source of truth: they are loaded once
// at open and rewritten whole on every mutation, via a temp file and rename so
// a crash never leaves a half-written table behind.
package csvfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/store"
)

const (
	ordersFile = "orders.csv"
	ledgerFile = "ledger.csv"
	daysFile   = "days.csv"
	usersFile  = "users.csv"
)

type Store struct {
	mu     sync.RWMutex
	dir    string
	orders map[int64]domain.Order
	ledger []domain.LedgerEntry
	// opening tracks days that already carry an OpeningBalance entry, derived
	// from the ledger at load time.
	opening map[string]bool
	opened  map[string]bool
	users   map[string]domain.UserAccount
}

// Open loads the CSV tables under dir, creating the directory and empty
// tables as needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvfile: create data dir: %w", err)
	}
	s := &Store{
		dir:     dir,
		orders:  make(map[int64]domain.Order),
		ledger:  make([]domain.LedgerEntry, 0, 128),
		opening: make(map[string]bool),
		opened:  make(map[string]bool),
		users:   make(map[string]domain.UserAccount),
	}
	if err := s.loadOrders(); err != nil {
		return nil, err
	}
	if err := s.loadLedger(); err != nil {
		return nil, err
	}
	if err := s.loadDays(); err != nil {
		return nil, err
	}
	if err := s.loadUsers(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for id := range s.orders {
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
	s.orders[order.ID] = cloneOrder(order)
	if err := s.writeOrders(); err != nil {
		delete(s.orders, order.ID)
		return nil, err
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.orders[order.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	s.orders[order.ID] = cloneOrder(order)
	if err := s.writeOrders(); err != nil {
		s.orders[order.ID] = prev
		return nil, err
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
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

	out := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
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
	day := entry.Timestamp.Format(domain.DayLayout)
	if entry.Kind == domain.KindOpeningBalance {
		if s.opening[day] {
			return nil, store.ErrDuplicateOpeningBalance
		}
	}

	prev := decimal.Zero
	if n := len(s.ledger); n > 0 {
		prev = s.ledger[n-1].BalanceAfter
	}
	entry.BalanceAfter = prev.Add(entry.CashIn).Sub(entry.CashOut)
	s.ledger = append(s.ledger, entry)
	if err := s.writeLedger(); err != nil {
		s.ledger = s.ledger[:len(s.ledger)-1]
		return nil, err
	}
	if entry.Kind == domain.KindOpeningBalance {
		s.opening[day] = true
	}
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

	return s.opening[day], nil
}

func (s *Store) MarkDayOpened(_ context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened[day] {
		return nil
	}
	s.opened[day] = true
	if err := s.writeDays(); err != nil {
		delete(s.opened, day)
		return err
	}
	return nil
}

func (s *Store) DayOpened(_ context.Context, day string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.opened[day], nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	prev, had := s.users[user.Username]
	s.users[user.Username] = user
	if err := s.writeUsers(); err != nil {
		if had {
			s.users[user.Username] = prev
		} else {
			delete(s.users, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := user
	return &out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sortUsers(out)
	return out, nil
}
