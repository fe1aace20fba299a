package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/money"
	"comandero/backend/internal/notetag"
)

var (
	ordersHeader = []string{"ID", "CustomerName", "TableNumber", "Items", "Total", "Timestamp", "Status", "Comments", "PaymentMethod", "CashIn", "CardIn", "Change", "Remaining"}
	ledgerHeader = []string{"Timestamp", "Kind", "OrderID", "CashIn", "CashOut", "Note", "BalanceAfter", "CardRefund"}
	daysHeader   = []string{"Day"}
	usersHeader  = []string{"Username", "PasswordHash", "Role", "Active", "CreatedAt"}
)

const itemSeparator = ", "

func (s *Store) loadOrders() error {
	rows, err := readTable(s.path(ordersFile), len(ordersHeader))
	if err != nil {
		return err
	}
	for _, row := range rows {
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		order := domain.Order{
			ID:           id,
			CustomerName: row[1],
			TableNumber:  row[2],
			Items:        splitItems(row[3]),
			Total:        money.Parse(row[4]),
			CreatedAt:    parseTimestamp(row[5]),
			Status:       domain.OrderStatus(row[6]),
			Comments:     row[7],
		}
		if method := domain.PaymentMethod(row[8]); method != "" {
			order.Payment = &domain.PaymentInfo{
				Method:    method,
				CashIn:    money.Parse(row[9]),
				CardIn:    money.Parse(row[10]),
				Change:    money.Parse(row[11]),
				Remaining: money.Parse(row[12]),
			}
		}
		s.orders[order.ID] = order
	}
	return nil
}

func (s *Store) writeOrders() error {
	orders := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	rows := make([][]string, 0, len(orders))
	for _, order := range orders {
		method, cashIn, cardIn, change, remaining := "", "0.00", "0.00", "0.00", "0.00"
		if order.Payment != nil {
			method = string(order.Payment.Method)
			cashIn = money.Format(order.Payment.CashIn)
			cardIn = money.Format(order.Payment.CardIn)
			change = money.Format(order.Payment.Change)
			remaining = money.Format(order.Payment.Remaining)
		}
		rows = append(rows, []string{
			strconv.FormatInt(order.ID, 10),
			order.CustomerName,
			order.TableNumber,
			strings.Join(order.Items, itemSeparator),
			money.Format(order.Total),
			order.CreatedAt.Format(domain.TimestampLayout),
			string(order.Status),
			order.Comments,
			method,
			cashIn,
			cardIn,
			change,
			remaining,
		})
	}
	return writeTable(s.path(ordersFile), ordersHeader, rows)
}

func (s *Store) loadLedger() error {
	rows, err := readTable(s.path(ledgerFile), len(ledgerHeader))
	if err != nil {
		return err
	}
	for _, row := range rows {
		entry := domain.LedgerEntry{
			Timestamp:    parseTimestamp(row[0]),
			Kind:         domain.LedgerKind(row[1]),
			OrderID:      parseOrderRef(row[2]),
			CashIn:       money.Parse(row[3]),
			CashOut:      money.Parse(row[4]),
			Note:         row[5],
			BalanceAfter: money.Parse(row[6]),
			CardRefund:   money.Parse(row[7]),
		}
		// Ledgers written before the CardRefund column carried the amount
		// only as a note tag.
		if entry.CardRefund.IsZero() && notetag.HasCardRefund(entry.Note) {
			entry.CardRefund = notetag.CardRefundAmount(entry.Note)
		}
		s.ledger = append(s.ledger, entry)
		if entry.Kind == domain.KindOpeningBalance {
			s.opening[entry.Timestamp.Format(domain.DayLayout)] = true
		}
	}
	return nil
}

func (s *Store) writeLedger() error {
	rows := make([][]string, 0, len(s.ledger))
	for _, entry := range s.ledger {
		orderRef := "-"
		if entry.OrderID > 0 {
			orderRef = strconv.FormatInt(entry.OrderID, 10)
		}
		rows = append(rows, []string{
			entry.Timestamp.Format(domain.TimestampLayout),
			string(entry.Kind),
			orderRef,
			money.Format(entry.CashIn),
			money.Format(entry.CashOut),
			entry.Note,
			money.Format(entry.BalanceAfter),
			money.Format(entry.CardRefund),
		})
	}
	return writeTable(s.path(ledgerFile), ledgerHeader, rows)
}

func (s *Store) loadDays() error {
	rows, err := readTable(s.path(daysFile), len(daysHeader))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if day := strings.TrimSpace(row[0]); day != "" {
			s.opened[day] = true
		}
	}
	return nil
}

func (s *Store) writeDays() error {
	days := make([]string, 0, len(s.opened))
	for day := range s.opened {
		days = append(days, day)
	}
	slices.Sort(days)
	rows := make([][]string, 0, len(days))
	for _, day := range days {
		rows = append(rows, []string{day})
	}
	return writeTable(s.path(daysFile), daysHeader, rows)
}

func (s *Store) loadUsers() error {
	rows, err := readTable(s.path(usersFile), len(usersHeader))
	if err != nil {
		return err
	}
	for _, row := range rows {
		username := strings.TrimSpace(row[0])
		if username == "" {
			continue
		}
		s.users[username] = domain.UserAccount{
			Username:  username,
			Password:  row[1],
			Role:      row[2],
			Active:    row[3] == "true",
			CreatedAt: parseTimestamp(row[4]),
		}
	}
	return nil
}

func (s *Store) writeUsers() error {
	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sortUsers(users)
	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, []string{
			user.Username,
			user.Password,
			user.Role,
			strconv.FormatBool(user.Active),
			user.CreatedAt.Format(domain.TimestampLayout),
		})
	}
	return writeTable(s.path(usersFile), usersHeader, rows)
}

// readTable reads all data rows of a CSV table, padding or truncating each row
// to width so older files with fewer or extra trailing columns still load.
// A missing file is an empty table.
func readTable(path string, width int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("csvfile: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows := make([][]string, 0, 64)
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvfile: read %s: %w", path, err)
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, normalizeRow(row, width))
	}
	return rows, nil
}

// writeTable rewrites the whole table through a temp file and rename.
func writeTable(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("csvfile: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("csvfile: write %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("csvfile: write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("csvfile: flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("csvfile: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("csvfile: replace %s: %w", path, err)
	}
	return nil
}

func normalizeRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func splitItems(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, itemSeparator)
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func parseTimestamp(raw string) time.Time {
	ts, err := time.ParseInLocation(domain.TimestampLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func parseOrderRef(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
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

func sortUsers(users []domain.UserAccount) {
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
}
