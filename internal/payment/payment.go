// Package payment computes how a tendered amount settles an order total.
// The functions here are pure so the drawer math can be tested in isolation
// from any store.
package payment

import (
	"errors"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/domain"
	"comandero/backend/internal/money"
)

var ErrUnknownMethod = errors.New("payment: unknown method")

// Breakdown is the settled view of a single payment attempt. Change only ever
// comes out of the cash drawer; card overpayment is absorbed.
type Breakdown struct {
	CashIn    decimal.Decimal
	CardIn    decimal.Decimal
	Change    decimal.Decimal
	Remaining decimal.Decimal
}

// Compute settles total against the tendered amounts for the given method.
// All outputs are rounded to two decimals and clamped at zero.
func Compute(total decimal.Decimal, method domain.PaymentMethod, cashTendered, cardTendered decimal.Decimal) (Breakdown, error) {
	total = money.ClampRound(total)
	cash := money.ClampRound(cashTendered)
	card := money.ClampRound(cardTendered)

	var b Breakdown
	switch method {
	case domain.MethodCash:
		b.CashIn = cash
		b.Change = money.ClampRound(cash.Sub(total))
		b.Remaining = money.ClampRound(total.Sub(cash))
	case domain.MethodCard:
		b.CardIn = card
		b.Remaining = money.ClampRound(total.Sub(card))
	case domain.MethodMixed:
		// Card applies first; cash covers what the card left, and any cash
		// beyond that is change.
		b.CardIn = card
		afterCard := money.ClampRound(total.Sub(card))
		b.CashIn = cash
		b.Change = money.ClampRound(cash.Sub(afterCard))
		b.Remaining = money.ClampRound(afterCard.Sub(cash))
	default:
		return Breakdown{}, ErrUnknownMethod
	}
	b.CashIn = money.Round2(b.CashIn)
	b.CardIn = money.Round2(b.CardIn)
	return b, nil
}

// Settled reports how much of the total the breakdown actually covers.
func (b Breakdown) Settled() decimal.Decimal {
	return b.CashIn.Add(b.CardIn).Sub(b.Change)
}

// Info converts the breakdown into the persisted payment record.
func (b Breakdown) Info(method domain.PaymentMethod) *domain.PaymentInfo {
	return &domain.PaymentInfo{
		Method:    method,
		CashIn:    b.CashIn,
		CardIn:    b.CardIn,
		Change:    b.Change,
		Remaining: b.Remaining,
	}
}
