package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			customer_name TEXT NOT NULL DEFAULT '',
			table_number TEXT NOT NULL DEFAULT '',
			items JSONB NOT NULL DEFAULT '[]',
			total NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			comments TEXT NOT NULL DEFAULT '',
			payment_method TEXT,
			cash_in NUMERIC(12,2) NOT NULL DEFAULT 0,
			card_in NUMERIC(12,2) NOT NULL DEFAULT 0,
			change NUMERIC(12,2) NOT NULL DEFAULT 0,
			remaining NUMERIC(12,2) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			seq BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			kind TEXT NOT NULL,
			order_id BIGINT,
			cash_in NUMERIC(12,2) NOT NULL DEFAULT 0,
			cash_out NUMERIC(12,2) NOT NULL DEFAULT 0,
			card_refund NUMERIC(12,2) NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			balance_after NUMERIC(12,2) NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ledger_opening_per_day
			ON ledger_entries ((ts::date)) WHERE kind = 'OpeningBalance'`,
		`CREATE TABLE IF NOT EXISTS opened_days (
			day DATE PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	items, err := json.Marshal(orderItems(order))
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(id), 0) + 1 FROM orders
	`).Scan(&order.ID); err != nil {
		return nil, err
	}

	method, cashIn, cardIn, change, remaining := paymentColumns(order.Payment)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, table_number, items, total, created_at, status, comments, payment_method, cash_in, card_in, change, remaining)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, order.ID, order.CustomerName, order.TableNumber, items, order.Total, order.CreatedAt,
		string(order.Status), order.Comments, method, cashIn, cardIn, change, remaining)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, table_number, items, total, created_at, status, comments, payment_method, cash_in, card_in, change, remaining
		FROM orders
		WHERE id = $1
	`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	items, err := json.Marshal(orderItems(order))
	if err != nil {
		return nil, err
	}
	method, cashIn, cardIn, change, remaining := paymentColumns(order.Payment)

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET customer_name = $2, table_number = $3, items = $4, total = $5, status = $6, comments = $7,
			payment_method = $8, cash_in = $9, card_in = $10, change = $11, remaining = $12
		WHERE id = $1
	`, order.ID, order.CustomerName, order.TableNumber, items, order.Total, string(order.Status),
		order.Comments, method, cashIn, cardIn, change, remaining)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) ListOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, table_number, items, total, created_at, status, comments, payment_method, cash_in, card_in, change, remaining
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, table_number, items, total, created_at, status, comments, payment_method, cash_in, card_in, change, remaining
		FROM orders
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) AppendEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT balance_after FROM ledger_entries ORDER BY seq DESC LIMIT 1
	`).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	entry.BalanceAfter = prev.Add(entry.CashIn).Sub(entry.CashOut)

	var orderRef any
	if entry.OrderID > 0 {
		orderRef = entry.OrderID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (ts, kind, order_id, cash_in, cash_out, card_refund, note, balance_after)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.Timestamp, string(entry.Kind), orderRef, entry.CashIn, entry.CashOut, entry.CardRefund, entry.Note, entry.BalanceAfter)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateOpeningBalance
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	appended := entry
	return &appended, nil
}

func (s *Store) ListEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, kind, order_id, cash_in, cash_out, card_refund, note, balance_after
		FROM ledger_entries
		WHERE ts >= $1 AND ts < $2
		ORDER BY seq ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, 32)
	for rows.Next() {
		var entry domain.LedgerEntry
		var orderRef sql.NullInt64
		if err := rows.Scan(&entry.Timestamp, &entry.Kind, &orderRef, &entry.CashIn, &entry.CashOut, &entry.CardRefund, &entry.Note, &entry.BalanceAfter); err != nil {
			return nil, err
		}
		entry.Timestamp = entry.Timestamp.Local()
		entry.OrderID = orderRef.Int64
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CurrentBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT balance_after FROM ledger_entries ORDER BY seq DESC LIMIT 1
	`).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Store) HasOpeningBalance(ctx context.Context, day string) (bool, error) {
	var opened bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE kind = 'OpeningBalance' AND ts::date = $1::date
		)
	`, day).Scan(&opened)
	if err != nil {
		return false, err
	}
	return opened, nil
}

func (s *Store) MarkDayOpened(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opened_days (day) VALUES ($1)
		ON CONFLICT (day) DO NOTHING
	`, day)
	return err
}

func (s *Store) DayOpened(ctx context.Context, day string) (bool, error) {
	var opened bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM opened_days WHERE day = $1)
	`, day).Scan(&opened)
	if err != nil {
		return false, err
	}
	return opened, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (username) DO NOTHING
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	var method sql.NullString
	var cashIn, cardIn, change, remaining decimal.Decimal
	if err := row.Scan(&order.ID, &order.CustomerName, &order.TableNumber, &items, &order.Total,
		&order.CreatedAt, &order.Status, &order.Comments, &method, &cashIn, &cardIn, &change, &remaining); err != nil {
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.Local()
	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, err
		}
	}
	if method.Valid && method.String != "" {
		order.Payment = &domain.PaymentInfo{
			Method:    domain.PaymentMethod(method.String),
			CashIn:    cashIn,
			CardIn:    cardIn,
			Change:    change,
			Remaining: remaining,
		}
	}
	return &order, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func orderItems(order domain.Order) []string {
	if order.Items == nil {
		return []string{}
	}
	return order.Items
}

func paymentColumns(p *domain.PaymentInfo) (any, decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	if p == nil {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	}
	return string(p.Method), p.CashIn, p.CardIn, p.Change, p.Remaining
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
