// Package notetag encodes structured values inside free-text ledger notes.
// Older ledger files carry card refund amounts only as a "TJ=<amount>" tag in
// the note column, so both readers and writers go through this shim.
package notetag

import (
	"strings"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/money"
)

const cardRefundPrefix = "TJ="

// EncodeCardRefund appends the card refund tag to a note.
func EncodeCardRefund(note string, amount decimal.Decimal) string {
	tag := cardRefundPrefix + money.Format(amount)
	if note == "" {
		return tag
	}
	return note + " " + tag
}

// CardRefundAmount extracts the card refund amount tagged in a note. Notes
// without a tag, or with an unparseable amount, yield zero.
func CardRefundAmount(note string) decimal.Decimal {
	idx := strings.Index(note, cardRefundPrefix)
	if idx < 0 {
		return decimal.Zero
	}
	raw := note[idx+len(cardRefundPrefix):]
	if end := strings.IndexAny(raw, " \t"); end >= 0 {
		raw = raw[:end]
	}
	return money.Parse(raw)
}

// HasCardRefund reports whether the note carries a card refund tag.
func HasCardRefund(note string) bool {
	return strings.Contains(note, cardRefundPrefix)
}
