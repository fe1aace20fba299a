package service

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/notetag"
	"comandero/backend/internal/store"
)

// DailyCut builds the end-of-day reconciliation for a business day. CashSales
// and CardSales come from the day's orders; ClosingBalance is the day's cash
// movement summed independently over the ledger, so the two sides cross-check
// each other. Card figures are reported for reconciliation against the
// terminal but never move the drawer.
func (s *Service) DailyCut(ctx context.Context, day string) (domain.DailyCutSummary, error) {
	from, to, err := dayWindow(day)
	if err != nil {
		return domain.DailyCutSummary{}, err
	}

	key := dailyCutCacheKey(day)
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: daily cut cache read for %s: %v", day, err)
	} else if ok {
		return *cached, nil
	}

	entries, err := s.repo.ListEntries(ctx, from, to)
	if err != nil {
		return domain.DailyCutSummary{}, err
	}
	orders, err := s.repo.ListOrders(ctx, from, to)
	if err != nil {
		return domain.DailyCutSummary{}, err
	}

	summary := domain.DailyCutSummary{Date: day}
	for _, entry := range entries {
		// ClosingBalance is restricted to this day's movement; BalanceAfter
		// chains from prior days and must not leak in.
		summary.ClosingBalance = summary.ClosingBalance.Add(entry.CashIn).Sub(entry.CashOut)

		switch entry.Kind {
		case domain.KindOpeningBalance:
			summary.OpeningBalance = summary.OpeningBalance.Add(entry.CashIn)
		case domain.KindAdjustmentRefundCash:
			summary.CashRefunds = summary.CashRefunds.Add(entry.CashOut)
		case domain.KindAdjustmentRefundCard:
			amount := entry.CardRefund
			if amount.IsZero() {
				// Legacy entries carry the amount only as a note tag.
				amount = notetag.CardRefundAmount(entry.Note)
			}
			summary.CardRefunds = summary.CardRefunds.Add(amount)
		}
	}

	for _, order := range orders {
		if !order.Paid() {
			continue
		}
		netCash := order.Payment.CashIn.Sub(order.Payment.Change)
		if netCash.IsNegative() {
			netCash = decimal.Zero
		}
		summary.CashSales = summary.CashSales.Add(netCash)
		summary.CardSales = summary.CardSales.Add(order.Payment.CardIn)
	}

	if err := s.reports.Set(ctx, key, &summary, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: daily cut cache write for %s: %v", day, err)
	}
	return summary, nil
}

// ProductSales aggregates per-product quantities and amounts over a window.
// Mode is "general" (all history), "daily" (ref = a day) or "weekly" (ref = a
// day anywhere inside the ISO week).
func (s *Service) ProductSales(ctx context.Context, mode string, ref string) (domain.ProductSalesReport, error) {
	var (
		orders []domain.Order
		err    error
		report = domain.ProductSalesReport{
			Mode:        mode,
			GeneratedAt: time.Now().Format(domain.TimestampLayout),
		}
	)

	switch mode {
	case "general":
		orders, err = s.repo.ListAllOrders(ctx)
	case "daily":
		if ref == "" {
			ref = today()
		}
		var from, to time.Time
		from, to, err = dayWindow(ref)
		if err == nil {
			report.From = from.Format(domain.DayLayout)
			report.To = to.AddDate(0, 0, -1).Format(domain.DayLayout)
			orders, err = s.repo.ListOrders(ctx, from, to)
		}
	case "weekly":
		if ref == "" {
			ref = today()
		}
		var from, to time.Time
		from, to, err = isoWeekWindow(ref)
		if err == nil {
			report.From = from.Format(domain.DayLayout)
			report.To = to.AddDate(0, 0, -1).Format(domain.DayLayout)
			orders, err = s.repo.ListOrders(ctx, from, to)
		}
	default:
		return domain.ProductSalesReport{}, store.ErrInvalidInput
	}
	if err != nil {
		return domain.ProductSalesReport{}, err
	}

	type agg struct {
		quantity int
		amount   decimal.Decimal
		orders   map[int64]struct{}
	}
	byProduct := make(map[string]*agg)
	for _, order := range orders {
		for _, item := range order.Items {
			a := byProduct[item]
			if a == nil {
				a = &agg{orders: make(map[int64]struct{})}
				byProduct[item] = a
			}
			a.quantity++
			a.amount = a.amount.Add(s.catalog.PriceOf(item))
			a.orders[order.ID] = struct{}{}
		}
	}

	rows := make([]domain.ProductSalesRow, 0, len(byProduct))
	for product, a := range byProduct {
		rows = append(rows, domain.ProductSalesRow{
			Product:        product,
			Quantity:       a.quantity,
			Amount:         a.amount,
			DistinctOrders: len(a.orders),
		})
	}
	slices.SortFunc(rows, func(a, b domain.ProductSalesRow) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return compareStrings(a.Product, b.Product)
	})
	report.Rows = rows
	return report, nil
}

// isoWeekWindow expands a day to the Monday..Sunday ISO week containing it.
func isoWeekWindow(day string) (time.Time, time.Time, error) {
	ref, _, err := dayWindow(day)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	offset := (int(ref.Weekday()) + 6) % 7
	monday := ref.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 7), nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
