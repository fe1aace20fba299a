package service

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/money"
	"comandero/backend/internal/notetag"
	"comandero/backend/internal/payment"
	"comandero/backend/internal/store"
)

// PayOrder settles an order and records the drawer movements. Paying an order
// that already carries a payment replaces the breakdown; the ledger then
// records only the net cash delta, as adjustment entries, so the drawer never
// double-counts the first tender.
func (s *Service) PayOrder(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	breakdown, err := payment.Compute(order.Total, req.Method, req.CashTendered, req.CardTendered)
	if err != nil {
		return domain.PaymentResponse{}, store.ErrInvalidInput
	}

	prevCashNet := decimal.Zero
	rePay := order.Paid()
	if rePay {
		prevCashNet = order.Payment.CashIn.Sub(order.Payment.Change)
	}

	entries := make([]domain.LedgerEntry, 0, 2)
	if rePay {
		// Net drawer delta against the previous breakdown.
		delta := breakdown.CashIn.Sub(breakdown.Change).Sub(prevCashNet)
		switch {
		case delta.IsPositive():
			entries = append(entries, domain.LedgerEntry{
				Kind:    domain.KindSaleAdjustment,
				OrderID: order.ID,
				CashIn:  delta,
				Note:    fmt.Sprintf("Re-payment order %d", order.ID),
			})
		case delta.IsNegative():
			entries = append(entries, domain.LedgerEntry{
				Kind:    domain.KindChangeAdjustment,
				OrderID: order.ID,
				CashOut: delta.Neg(),
				Note:    fmt.Sprintf("Re-payment order %d", order.ID),
			})
		}
	} else {
		if breakdown.CashIn.IsPositive() {
			entries = append(entries, domain.LedgerEntry{
				Kind:    domain.KindSale,
				OrderID: order.ID,
				CashIn:  breakdown.CashIn,
				Note:    fmt.Sprintf("Sale order %d", order.ID),
			})
		}
		if breakdown.Change.IsPositive() {
			entries = append(entries, domain.LedgerEntry{
				Kind:    domain.KindChange,
				OrderID: order.ID,
				CashOut: breakdown.Change,
				Note:    fmt.Sprintf("Change order %d", order.ID),
			})
		}
	}

	appended := make([]domain.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		out, err := s.repo.AppendEntry(ctx, entry)
		if err != nil {
			return domain.PaymentResponse{}, err
		}
		appended = append(appended, *out)
	}

	order.Payment = breakdown.Info(req.Method)
	saved, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	s.invalidateDailyCut(ctx, today())
	return domain.PaymentResponse{Order: *saved, LedgerEntries: appended}, nil
}

// ResolveAdjustment settles the delta an edit left on a paid order. Positive
// deltas are collected as cash and/or card; negative deltas are refunded on
// one channel. Card movements never touch the drawer: a card refund lands in
// the ledger as a zero-movement entry whose amount is tagged in the note.
func (s *Service) ResolveAdjustment(ctx context.Context, req domain.AdjustmentRequest) (domain.AdjustmentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return domain.AdjustmentResponse{}, err
	}
	if !order.Paid() {
		return domain.AdjustmentResponse{}, store.ErrInvalidInput
	}

	delta := money.Round2(order.Total.Sub(order.Payment.Settled()))
	if delta.IsZero() {
		return domain.AdjustmentResponse{Order: *order, Delta: delta}, nil
	}

	var entry *domain.LedgerEntry
	if delta.IsPositive() {
		cashPart := money.ClampRound(req.CashAmount)
		cardPart := money.ClampRound(req.CardAmount)
		if !cashPart.Add(cardPart).Equal(delta) {
			return domain.AdjustmentResponse{}, store.ErrInvalidInput
		}

		note := fmt.Sprintf("Adjustment charge order %d", order.ID)
		if cardPart.IsPositive() {
			note = fmt.Sprintf("%s (card %s)", note, money.Format(cardPart))
		}
		entry, err = s.repo.AppendEntry(ctx, domain.LedgerEntry{
			Kind:    domain.KindAdjustmentCharge,
			OrderID: order.ID,
			CashIn:  cashPart,
			Note:    note,
		})
		if err != nil {
			return domain.AdjustmentResponse{}, err
		}

		order.Payment.CashIn = order.Payment.CashIn.Add(cashPart)
		order.Payment.CardIn = order.Payment.CardIn.Add(cardPart)
		order.Payment.Remaining = decimal.Zero
	} else {
		amount := delta.Neg()
		note := fmt.Sprintf("Adjustment refund order %d", order.ID)
		switch req.Channel {
		case domain.RefundCash:
			entry, err = s.repo.AppendEntry(ctx, domain.LedgerEntry{
				Kind:    domain.KindAdjustmentRefundCash,
				OrderID: order.ID,
				CashOut: amount,
				Note:    note,
			})
			if err != nil {
				return domain.AdjustmentResponse{}, err
			}
			order.Payment.Change = order.Payment.Change.Add(amount)
		case domain.RefundCard:
			// The note keeps the legacy tag so old ledger consumers still see
			// the amount.
			entry, err = s.repo.AppendEntry(ctx, domain.LedgerEntry{
				Kind:       domain.KindAdjustmentRefundCard,
				OrderID:    order.ID,
				CardRefund: amount,
				Note:       notetag.EncodeCardRefund(note, amount),
			})
			if err != nil {
				return domain.AdjustmentResponse{}, err
			}
			order.Payment.CardIn = money.ClampRound(order.Payment.CardIn.Sub(amount))
		default:
			return domain.AdjustmentResponse{}, store.ErrInvalidInput
		}
	}

	saved, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		return domain.AdjustmentResponse{}, err
	}

	s.invalidateDailyCut(ctx, today())
	return domain.AdjustmentResponse{Order: *saved, Delta: delta, Entry: entry}, nil
}

// OpenDay records the opening balance for today and marks the day opened.
// A second call the same day fails with ErrDuplicateOpeningBalance.
func (s *Service) OpenDay(ctx context.Context, req domain.OpenDayRequest) (domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := today()
	entry, err := s.repo.AppendEntry(ctx, domain.LedgerEntry{
		Kind:   domain.KindOpeningBalance,
		CashIn: money.ClampRound(req.Amount),
		Note:   fmt.Sprintf("Opening balance %s", day),
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := s.repo.MarkDayOpened(ctx, day); err != nil {
		log.Printf("[service] WARN: failed to mark day %s opened: %v", day, err)
	}

	s.invalidateDailyCut(ctx, day)
	return *entry, nil
}

// DayStatus reports whether today's opening balance prompt already ran.
func (s *Service) DayStatus(ctx context.Context) (domain.DayStatusResponse, error) {
	day := today()
	opened, err := s.repo.DayOpened(ctx, day)
	if err != nil {
		return domain.DayStatusResponse{}, err
	}
	recorded, err := s.repo.HasOpeningBalance(ctx, day)
	if err != nil {
		return domain.DayStatusResponse{}, err
	}
	return domain.DayStatusResponse{Date: day, Opened: opened, OpeningRecorded: recorded}, nil
}

func (s *Service) ListLedger(ctx context.Context, day string) ([]domain.LedgerEntry, error) {
	from, to, err := dayWindow(day)
	if err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, from, to)
}

func (s *Service) CurrentBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.CurrentBalance(ctx)
}

func (s *Service) invalidateDailyCut(ctx context.Context, day string) {
	if err := s.reports.Del(ctx, dailyCutCacheKey(day)); err != nil {
		log.Printf("[service] WARN: failed to invalidate daily cut cache for %s: %v", day, err)
	}
}

func dailyCutCacheKey(day string) string {
	return "dailycut:" + day
}
