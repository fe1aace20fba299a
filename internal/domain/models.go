package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusDelivered OrderStatus = "Delivered"
)

type PaymentMethod string

const (
	MethodCash  PaymentMethod = "Cash"
	MethodCard  PaymentMethod = "Card"
	MethodMixed PaymentMethod = "Mixed"
)

// PaymentInfo is the settlement breakdown recorded on an order after it has
// been paid at least once. Change and Remaining are never negative.
type PaymentInfo struct {
	Method    PaymentMethod   `json:"method"`
	CashIn    decimal.Decimal `json:"cash_in"`
	CardIn    decimal.Decimal `json:"card_in"`
	Change    decimal.Decimal `json:"change"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Settled is the amount of the order's total actually covered so far:
// cash plus card tendered, minus change handed back.
func (p PaymentInfo) Settled() decimal.Decimal {
	return p.CashIn.Add(p.CardIn).Sub(p.Change)
}

type Order struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	TableNumber  string          `json:"table_number"`
	Items        []string        `json:"items"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
	Status       OrderStatus     `json:"status"`
	Comments     string          `json:"comments"`
	Payment      *PaymentInfo    `json:"payment,omitempty"`
}

// Paid reports whether the order carries a payment record.
func (o Order) Paid() bool {
	return o.Payment != nil
}

type LedgerKind string

const (
	KindOpeningBalance       LedgerKind = "OpeningBalance"
	KindSale                 LedgerKind = "Sale"
	KindChange               LedgerKind = "Change"
	KindSaleAdjustment       LedgerKind = "SaleAdjustment"
	KindChangeAdjustment     LedgerKind = "ChangeAdjustment"
	KindAdjustmentCharge     LedgerKind = "AdjustmentCharge"
	KindAdjustmentRefundCash LedgerKind = "AdjustmentRefundCash"
	KindAdjustmentRefundCard LedgerKind = "AdjustmentRefundCard"
)

// IsCashRefund reports whether the kind moves refund money out of the drawer.
// Card refunds never touch the drawer; their amount lives in the note tag.
func (k LedgerKind) IsCashRefund() bool {
	return k == KindAdjustmentRefundCash
}

// LedgerEntry is one immutable movement in the cash ledger. OrderID is zero
// for entries not tied to an order (the opening balance). BalanceAfter is the
// drawer balance immediately after the entry was applied. CardRefund carries
// the refunded card amount for AdjustmentRefundCard entries; older ledgers
// encoded it only as a "TJ=<amount>" tag inside Note, which readers still
// accept as a fallback.
type LedgerEntry struct {
	Timestamp    time.Time       `json:"timestamp"`
	Kind         LedgerKind      `json:"kind"`
	OrderID      int64           `json:"order_id,omitempty"`
	CashIn       decimal.Decimal `json:"cash_in"`
	CashOut      decimal.Decimal `json:"cash_out"`
	CardRefund   decimal.Decimal `json:"card_refund"`
	Note         string          `json:"note"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// DailyCutSummary is the end-of-day reconciliation ("corte"). It is derived
// on demand from the orders table and the ledger and never persisted.
type DailyCutSummary struct {
	Date           string          `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CashSales      decimal.Decimal `json:"cash_sales"`
	CardSales      decimal.Decimal `json:"card_sales"`
	CashRefunds    decimal.Decimal `json:"cash_refunds"`
	CardRefunds    decimal.Decimal `json:"card_refunds"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

type ProductSalesRow struct {
	Product        string          `json:"product"`
	Quantity       int             `json:"quantity"`
	Amount         decimal.Decimal `json:"amount"`
	DistinctOrders int             `json:"distinct_orders"`
}

type ProductSalesReport struct {
	Mode        string            `json:"mode"`
	From        string            `json:"from,omitempty"`
	To          string            `json:"to,omitempty"`
	GeneratedAt string            `json:"generated_at"`
	Rows        []ProductSalesRow `json:"rows"`
}

type OrderCreateRequest struct {
	CustomerName string   `json:"customer_name"`
	TableNumber  string   `json:"table_number"`
	Items        []string `json:"items"`
	Comments     string   `json:"comments"`
}

// OrderUpdateRequest edits the content of an existing order. Nil fields are
// left untouched; a non-nil Items slice replaces the item list and recomputes
// the total from the catalog.
type OrderUpdateRequest struct {
	CustomerName *string   `json:"customer_name,omitempty"`
	TableNumber  *string   `json:"table_number,omitempty"`
	Items        *[]string `json:"items,omitempty"`
	Comments     *string   `json:"comments,omitempty"`
}

// OrderUpdateResponse reports the saved order plus the payment delta the edit
// produced on an already-paid order. AdjustmentDue is zero for unpaid orders
// or edits that kept the total unchanged; positive means the customer owes
// more, negative means money must be refunded.
type OrderUpdateResponse struct {
	Order         Order           `json:"order"`
	AdjustmentDue decimal.Decimal `json:"adjustment_due"`
}

type StatusUpdateRequest struct {
	Status OrderStatus `json:"status"`
}

type PaymentRequest struct {
	OrderID      int64           `json:"order_id"`
	Method       PaymentMethod   `json:"method"`
	CashTendered decimal.Decimal `json:"cash_tendered"`
	CardTendered decimal.Decimal `json:"card_tendered"`
}

type PaymentResponse struct {
	Order         Order         `json:"order"`
	LedgerEntries []LedgerEntry `json:"ledger_entries"`
}

type RefundChannel string

const (
	RefundCash RefundChannel = "cash"
	RefundCard RefundChannel = "card"
)

// AdjustmentRequest settles the delta left behind by an edit to a paid order.
// For a positive delta CashAmount/CardAmount say how the shortfall is
// collected; for a negative delta Channel picks the refund channel.
type AdjustmentRequest struct {
	OrderID    int64           `json:"order_id"`
	CashAmount decimal.Decimal `json:"cash_amount"`
	CardAmount decimal.Decimal `json:"card_amount"`
	Channel    RefundChannel   `json:"channel,omitempty"`
}

type AdjustmentResponse struct {
	Order Order           `json:"order"`
	Delta decimal.Decimal `json:"delta"`
	Entry *LedgerEntry    `json:"entry,omitempty"`
}

type OpenDayRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DayStatusResponse drives the opening-balance prompt. Opened is the
// restart-guard flag; OpeningRecorded is derived from the ledger itself.
type DayStatusResponse struct {
	Date            string `json:"date"`
	Opened          bool   `json:"opened"`
	OpeningRecorded bool   `json:"opening_recorded"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// TimestampLayout is the wire format for order and ledger timestamps in the
// durable tables.
const TimestampLayout = "2006-01-02 15:04:05"

// DayLayout is the calendar-day key used by the opening-balance protocol and
// the daily cut.
const DayLayout = "2006-01-02"
