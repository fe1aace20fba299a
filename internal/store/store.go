package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/domain"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicateOpeningBalance = errors.New("opening balance already recorded for day")
	ErrInvalidInput            = errors.New("invalid input")
)

// OrderStore persists orders. CreateOrder assigns the next sequential ID
// (max existing + 1) and the creation timestamp. Orders are never deleted,
// so assigned IDs are never reused.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
}

// CashLedger is the append-only drawer movement log. AppendEntry computes
// BalanceAfter from the previous entry and rejects duplicate opening balances
// for the same day.
type CashLedger interface {
	AppendEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.LedgerEntry, error)
	CurrentBalance(ctx context.Context) (decimal.Decimal, error)
	HasOpeningBalance(ctx context.Context, day string) (bool, error)
}

// DayFlagStore tracks which business days have been opened, so the opening
// balance prompt fires once per day.
type DayFlagStore interface {
	MarkDayOpened(ctx context.Context, day string) error
	DayOpened(ctx context.Context, day string) (bool, error)
}

// UserStore backs authentication.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

type Repository interface {
	OrderStore
	CashLedger
	DayFlagStore
	UserStore
}
