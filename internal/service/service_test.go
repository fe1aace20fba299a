package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/cache"
	"comandero/backend/internal/catalog"
	"comandero/backend/internal/domain"
	"comandero/backend/internal/store"
	"comandero/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopReportCache{}, catalog.Default(), 0)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func d(v string) decimal.Decimal {
	out, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return out
}

func TestCreateOrderComputesTotal(t *testing.T) {
	svc := newTestService()
	order, err := svc.CreateOrder(adminCtx(), domain.OrderCreateRequest{
		CustomerName: "Ana",
		TableNumber:  "3",
		Items:        []string{"Torta Mixta", "Hazla Cochi"},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !order.Total.Equal(d("145")) {
		t.Fatalf("Total = %s, want 145", order.Total)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("Status = %s, want Pending", order.Status)
	}
}

func TestCreateOrderRequiresItems(t *testing.T) {
	svc := newTestService()
	if _, err := svc.CreateOrder(adminCtx(), domain.OrderCreateRequest{CustomerName: "Ana"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPayOrderCashRecordsSaleAndChange(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.OpenDay(ctx, domain.OpenDayRequest{Amount: d("500")}); err != nil {
		t.Fatalf("OpenDay: %v", err)
	}
	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta de Carne Asada"}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	resp, err := svc.PayOrder(ctx, domain.PaymentRequest{
		OrderID:      order.ID,
		Method:       domain.MethodCash,
		CashTendered: d("150"),
	})
	if err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	if resp.Order.Payment == nil {
		t.Fatalf("payment not recorded")
	}
	if !resp.Order.Payment.Change.Equal(d("40")) {
		t.Fatalf("Change = %s, want 40", resp.Order.Payment.Change)
	}
	if len(resp.LedgerEntries) != 2 {
		t.Fatalf("ledger entries = %d, want 2 (sale + change)", len(resp.LedgerEntries))
	}
	if resp.LedgerEntries[0].Kind != domain.KindSale || resp.LedgerEntries[1].Kind != domain.KindChange {
		t.Fatalf("entry kinds = %s, %s", resp.LedgerEntries[0].Kind, resp.LedgerEntries[1].Kind)
	}

	balance, err := svc.CurrentBalance(ctx)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	// 500 opening + 150 tendered - 40 change.
	if !balance.Equal(d("610")) {
		t.Fatalf("balance = %s, want 610", balance)
	}
}

func TestPayOrderCardMovesNoCash(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta de Carne Asada"}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	resp, err := svc.PayOrder(ctx, domain.PaymentRequest{
		OrderID:      order.ID,
		Method:       domain.MethodCard,
		CardTendered: d("110"),
	})
	if err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	if len(resp.LedgerEntries) != 0 {
		t.Fatalf("card payment produced %d drawer entries", len(resp.LedgerEntries))
	}
	balance, err := svc.CurrentBalance(ctx)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestAdjustmentChargeRaisesBalance(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Tostada de Ceviche de Pescado"}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: order.ID, Method: domain.MethodCash, CashTendered: d("45")}); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	before, _ := svc.CurrentBalance(ctx)

	// Adding a 20 and a 5 item raises the total by 25.
	items := []string{"Tostada de Ceviche de Pescado", "Hazla Cochi", "Hazla Cochi"}
	upd, err := svc.UpdateOrder(ctx, order.ID, domain.OrderUpdateRequest{Items: &items})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if !upd.AdjustmentDue.Equal(d("40")) {
		t.Fatalf("AdjustmentDue = %s, want 40", upd.AdjustmentDue)
	}

	resp, err := svc.ResolveAdjustment(ctx, domain.AdjustmentRequest{OrderID: order.ID, CashAmount: d("40")})
	if err != nil {
		t.Fatalf("ResolveAdjustment: %v", err)
	}
	if resp.Entry == nil || resp.Entry.Kind != domain.KindAdjustmentCharge {
		t.Fatalf("entry = %+v, want AdjustmentCharge", resp.Entry)
	}
	after, _ := svc.CurrentBalance(ctx)
	if !after.Sub(before).Equal(d("40")) {
		t.Fatalf("balance delta = %s, want 40", after.Sub(before))
	}
	if !resp.Order.Payment.Settled().Equal(resp.Order.Total) {
		t.Fatalf("order not settled after charge: settled=%s total=%s", resp.Order.Payment.Settled(), resp.Order.Total)
	}
}

func TestAdjustmentRefundCashLowersBalance(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.OpenDay(ctx, domain.OpenDayRequest{Amount: d("200")}); err != nil {
		t.Fatalf("OpenDay: %v", err)
	}
	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta Mixta"}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: order.ID, Method: domain.MethodCash, CashTendered: d("125")}); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	before, _ := svc.CurrentBalance(ctx)

	// Swap to a cheaper order: total drops from 125 to 110.
	items := []string{"Torta de Carne Asada"}
	upd, err := svc.UpdateOrder(ctx, order.ID, domain.OrderUpdateRequest{Items: &items})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if !upd.AdjustmentDue.Equal(d("-15")) {
		t.Fatalf("AdjustmentDue = %s, want -15", upd.AdjustmentDue)
	}

	resp, err := svc.ResolveAdjustment(ctx, domain.AdjustmentRequest{OrderID: order.ID, Channel: domain.RefundCash})
	if err != nil {
		t.Fatalf("ResolveAdjustment: %v", err)
	}
	if resp.Entry == nil || resp.Entry.Kind != domain.KindAdjustmentRefundCash {
		t.Fatalf("entry = %+v, want AdjustmentRefundCash", resp.Entry)
	}
	after, _ := svc.CurrentBalance(ctx)
	if !before.Sub(after).Equal(d("15")) {
		t.Fatalf("balance drop = %s, want 15", before.Sub(after))
	}

	cut, err := svc.DailyCut(ctx, today())
	if err != nil {
		t.Fatalf("DailyCut: %v", err)
	}
	if !cut.CashRefunds.Equal(d("15")) {
		t.Fatalf("CashRefunds = %s, want 15", cut.CashRefunds)
	}
}

func TestAdjustmentRefundCardTagsNote(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta Mixta"}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: order.ID, Method: domain.MethodCard, CardTendered: d("125")}); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	items := []string{"Torta de Carne Asada"}
	if _, err := svc.UpdateOrder(ctx, order.ID, domain.OrderUpdateRequest{Items: &items}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	before, _ := svc.CurrentBalance(ctx)
	resp, err := svc.ResolveAdjustment(ctx, domain.AdjustmentRequest{OrderID: order.ID, Channel: domain.RefundCard})
	if err != nil {
		t.Fatalf("ResolveAdjustment: %v", err)
	}
	if resp.Entry == nil || resp.Entry.Kind != domain.KindAdjustmentRefundCard {
		t.Fatalf("entry = %+v, want AdjustmentRefundCard", resp.Entry)
	}
	after, _ := svc.CurrentBalance(ctx)
	if !after.Equal(before) {
		t.Fatalf("card refund moved the drawer: %s -> %s", before, after)
	}

	cut, err := svc.DailyCut(ctx, today())
	if err != nil {
		t.Fatalf("DailyCut: %v", err)
	}
	if !cut.CardRefunds.Equal(d("15")) {
		t.Fatalf("CardRefunds = %s, want 15", cut.CardRefunds)
	}
}

func TestDailyCutReadsLegacyCardRefundTag(t *testing.T) {
	repo := memory.New()
	svc := New(repo, cache.NoopReportCache{}, catalog.Default(), 0)

	// An entry written by an older version: amount only in the note tag.
	if _, err := repo.AppendEntry(context.Background(), domain.LedgerEntry{
		Kind: domain.KindAdjustmentRefundCard,
		Note: "Adjustment refund order 9 TJ=8.00",
	}); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	cut, err := svc.DailyCut(adminCtx(), today())
	if err != nil {
		t.Fatalf("DailyCut: %v", err)
	}
	if !cut.CardRefunds.Equal(d("8")) {
		t.Fatalf("CardRefunds = %s, want 8", cut.CardRefunds)
	}
}

func TestOpenDayTwiceFails(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.OpenDay(ctx, domain.OpenDayRequest{Amount: d("500")}); err != nil {
		t.Fatalf("OpenDay: %v", err)
	}
	status, err := svc.DayStatus(ctx)
	if err != nil || !status.Opened || !status.OpeningRecorded {
		t.Fatalf("DayStatus = %+v, %v; want opened and recorded", status, err)
	}
	if _, err := svc.OpenDay(ctx, domain.OpenDayRequest{Amount: d("100")}); !errors.Is(err, store.ErrDuplicateOpeningBalance) {
		t.Fatalf("second OpenDay err = %v, want ErrDuplicateOpeningBalance", err)
	}
}

func TestDailyCutReconciles(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.OpenDay(ctx, domain.OpenDayRequest{Amount: d("500")}); err != nil {
		t.Fatalf("OpenDay: %v", err)
	}
	cashOrder, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta de Carne Asada"}})
	if _, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: cashOrder.ID, Method: domain.MethodCash, CashTendered: d("150")}); err != nil {
		t.Fatalf("PayOrder cash: %v", err)
	}
	cardOrder, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Beto", Items: []string{"Torta Mixta"}})
	if _, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: cardOrder.ID, Method: domain.MethodCard, CardTendered: d("125")}); err != nil {
		t.Fatalf("PayOrder card: %v", err)
	}

	cut, err := svc.DailyCut(ctx, today())
	if err != nil {
		t.Fatalf("DailyCut: %v", err)
	}
	if !cut.OpeningBalance.Equal(d("500")) {
		t.Fatalf("OpeningBalance = %s, want 500", cut.OpeningBalance)
	}
	if !cut.CashSales.Equal(d("110")) {
		t.Fatalf("CashSales = %s, want 110 (150 in - 40 change)", cut.CashSales)
	}
	if !cut.CardSales.Equal(d("125")) {
		t.Fatalf("CardSales = %s, want 125", cut.CardSales)
	}

	want := cut.OpeningBalance.Add(cut.CashSales).Sub(cut.CashRefunds)
	if !cut.ClosingBalance.Equal(want) {
		t.Fatalf("ClosingBalance = %s, want %s", cut.ClosingBalance, want)
	}
	balance, _ := svc.CurrentBalance(ctx)
	if !cut.ClosingBalance.Equal(balance) {
		t.Fatalf("ClosingBalance = %s, drawer = %s", cut.ClosingBalance, balance)
	}
}

func TestRePayRecordsNetDelta(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta de Carne Asada"}})
	if _, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: order.ID, Method: domain.MethodCash, CashTendered: d("50")}); err != nil {
		t.Fatalf("first PayOrder: %v", err)
	}

	resp, err := svc.PayOrder(ctx, domain.PaymentRequest{OrderID: order.ID, Method: domain.MethodCash, CashTendered: d("110")})
	if err != nil {
		t.Fatalf("second PayOrder: %v", err)
	}
	if len(resp.LedgerEntries) != 1 || resp.LedgerEntries[0].Kind != domain.KindSaleAdjustment {
		t.Fatalf("entries = %+v, want one SaleAdjustment", resp.LedgerEntries)
	}
	if !resp.LedgerEntries[0].CashIn.Equal(d("60")) {
		t.Fatalf("net delta = %s, want 60", resp.LedgerEntries[0].CashIn)
	}
	balance, _ := svc.CurrentBalance(ctx)
	if !balance.Equal(d("110")) {
		t.Fatalf("balance = %s, want 110", balance)
	}
}

func TestProductSalesSortedByQuantity(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	for i := 0; i < 2; i++ {
		if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Ana", Items: []string{"Torta Mixta", "Hazla Cochi"}}); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
	}
	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerName: "Beto", Items: []string{"Hazla Cochi"}}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	report, err := svc.ProductSales(ctx, "general", "")
	if err != nil {
		t.Fatalf("ProductSales: %v", err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(report.Rows))
	}
	// The cheap add-on sold 3 times outranks the pricier torta sold twice.
	top := report.Rows[0]
	if top.Product != "Hazla Cochi" || top.Quantity != 3 || top.DistinctOrders != 3 {
		t.Fatalf("top row = %+v", top)
	}
	if !top.Amount.Equal(d("60")) {
		t.Fatalf("top amount = %s, want 60", top.Amount)
	}
	if report.Rows[1].Product != "Torta Mixta" || report.Rows[1].Quantity != 2 {
		t.Fatalf("second row = %+v", report.Rows[1])
	}
}

func TestUpdateOrderRefreshesTimestamp(t *testing.T) {
	repo := memory.New()
	svc := New(repo, cache.NoopReportCache{}, catalog.Default(), 0)
	ctx := adminCtx()

	stale := time.Now().Add(-48 * time.Hour)
	created, err := repo.CreateOrder(ctx, domain.Order{
		CustomerName: "Ana",
		Items:        []string{"Hazla Cochi"},
		Total:        d("20"),
		CreatedAt:    stale,
		Status:       domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	items := []string{"Torta Mixta"}
	resp, err := svc.UpdateOrder(ctx, created.ID, domain.OrderUpdateRequest{Items: &items})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if !resp.Order.CreatedAt.After(stale.Add(time.Hour)) {
		t.Fatalf("timestamp not refreshed on save: %s", resp.Order.CreatedAt)
	}

	// The edited order now counts toward today.
	todays, err := svc.ListOrdersForDay(ctx, today())
	if err != nil {
		t.Fatalf("ListOrdersForDay: %v", err)
	}
	found := false
	for _, o := range todays {
		if o.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("edited order missing from today's list")
	}
}

func TestDailyCutRestrictedToDay(t *testing.T) {
	repo := memory.New()
	svc := New(repo, cache.NoopReportCache{}, catalog.Default(), 0)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)

	for _, entry := range []domain.LedgerEntry{
		{Timestamp: day1, Kind: domain.KindOpeningBalance, CashIn: d("100")},
		{Timestamp: day1.Add(time.Hour), Kind: domain.KindSale, OrderID: 1, CashIn: d("50")},
		{Timestamp: day2, Kind: domain.KindOpeningBalance, CashIn: d("100")},
	} {
		if _, err := repo.AppendEntry(ctx, entry); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}
	if _, err := repo.CreateOrder(ctx, domain.Order{
		CustomerName: "Ana",
		Items:        []string{"Hazla Cochi"},
		Total:        d("50"),
		CreatedAt:    day1.Add(time.Hour),
		Status:       domain.StatusPending,
		Payment:      &domain.PaymentInfo{Method: domain.MethodCash, CashIn: d("50")},
	}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	cut, err := svc.DailyCut(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("DailyCut: %v", err)
	}
	// Day 2 saw nothing but its own opening; day 1's movement must not chain in.
	if !cut.ClosingBalance.Equal(d("100")) {
		t.Fatalf("ClosingBalance = %s, want 100", cut.ClosingBalance)
	}
	if !cut.CashSales.IsZero() || !cut.CardSales.IsZero() {
		t.Fatalf("day 2 sales = %s cash, %s card; want 0, 0", cut.CashSales, cut.CardSales)
	}
	want := cut.OpeningBalance.Add(cut.CashSales).Sub(cut.CashRefunds)
	if !cut.ClosingBalance.Equal(want) {
		t.Fatalf("ClosingBalance = %s, want %s", cut.ClosingBalance, want)
	}

	prev, err := svc.DailyCut(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("DailyCut: %v", err)
	}
	if !prev.ClosingBalance.Equal(d("150")) {
		t.Fatalf("day 1 ClosingBalance = %s, want 150", prev.ClosingBalance)
	}
	if !prev.CashSales.Equal(d("50")) {
		t.Fatalf("day 1 CashSales = %s, want 50", prev.CashSales)
	}
}
