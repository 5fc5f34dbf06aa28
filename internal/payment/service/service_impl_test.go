package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/fitstack/centerledger/internal/clock"
	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	"github.com/fitstack/centerledger/internal/payment/repository"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	subscriptionrepo "github.com/fitstack/centerledger/internal/subscription/repository"
	"github.com/fitstack/centerledger/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (paymentdomain.Service, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&subscriptiondomain.SubscriptionPeriod{},
		&paymentdomain.Payment{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	svc := NewService(ServiceParam{
		DB:      dbConn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:    repository.Provide(),
		SubRepo: subscriptionrepo.Provide(),
	})
	return svc, node
}

func testCtx(centerID snowflake.ID) context.Context {
	return centerctx.WithCenterID(context.Background(), int64(centerID))
}

func TestPurchaseAndPay(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	period, err := svc.PurchaseAndPay(ctx, paymentdomain.PurchaseAndPayRequest{
		CustomerID:     customerID,
		Price:          decimal.RequireFromString("2000.00"),
		TotalDays:      7,
		InitialPayment: decimal.RequireFromString("500.00"),
		ReceivedBy:     "staff-1",
	})
	if err != nil {
		t.Fatalf("failed to purchase: %v", err)
	}
	if period.DaysLeft != 7 || !period.IsActive {
		t.Fatalf("expected fresh active period, got days_left=%d active=%v", period.DaysLeft, period.IsActive)
	}
	if !period.AmountPaid.Equal(decimal.RequireFromString("500.00")) {
		t.Fatalf("expected amount paid 500.00, got %s", period.AmountPaid)
	}

	resp, err := svc.ListByCustomer(ctx, paymentdomain.ListPaymentsRequest{CustomerID: customerID})
	if err != nil {
		t.Fatalf("failed to list payments: %v", err)
	}
	if len(resp.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(resp.Payments))
	}
	if resp.Payments[0].Source != paymentdomain.SourcePurchase {
		t.Fatalf("expected source purchase, got %s", resp.Payments[0].Source)
	}

	if _, err := svc.PurchaseAndPay(ctx, paymentdomain.PurchaseAndPayRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("1000.00"),
		TotalDays:  7,
	}); !errors.Is(err, subscriptiondomain.ErrActivePeriodExists) {
		t.Fatalf("expected ErrActivePeriodExists, got %v", err)
	}
}

func TestApplyPaymentBoundedByDue(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	if _, err := svc.PurchaseAndPay(ctx, paymentdomain.PurchaseAndPayRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("2000.00"),
		TotalDays:  7,
	}); err != nil {
		t.Fatalf("failed to purchase: %v", err)
	}

	if _, err := svc.ApplyPayment(ctx, paymentdomain.ApplyPaymentRequest{
		CustomerID: customerID,
		Amount:     decimal.RequireFromString("2500.00"),
	}); !errors.Is(err, subscriptiondomain.ErrPaymentExceedsDue) {
		t.Fatalf("expected ErrPaymentExceedsDue, got %v", err)
	}

	period, err := svc.ApplyPayment(ctx, paymentdomain.ApplyPaymentRequest{
		CustomerID: customerID,
		Amount:     decimal.RequireFromString("2000.00"),
		ReceivedBy: "staff-1",
	})
	if err != nil {
		t.Fatalf("failed to apply payment: %v", err)
	}
	if !period.AmountPaid.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("expected amount paid 2000.00, got %s", period.AmountPaid)
	}
	if period.DaysLeft != 7 || !period.IsActive {
		t.Fatalf("payment must not touch consumption, got days_left=%d active=%v", period.DaysLeft, period.IsActive)
	}

	if _, err := svc.ApplyPayment(ctx, paymentdomain.ApplyPaymentRequest{
		CustomerID: customerID,
		Amount:     decimal.RequireFromString("0.01"),
	}); !errors.Is(err, subscriptiondomain.ErrPaymentExceedsDue) {
		t.Fatalf("expected ErrPaymentExceedsDue on settled period, got %v", err)
	}
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	if _, err := svc.PurchaseAndPay(ctx, paymentdomain.PurchaseAndPayRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("100.00"),
		TotalDays:  7,
	}); err != nil {
		t.Fatalf("failed to purchase: %v", err)
	}

	for _, amount := range []string{"0", "-5.00"} {
		if _, err := svc.ApplyPayment(ctx, paymentdomain.ApplyPaymentRequest{
			CustomerID: customerID,
			Amount:     decimal.RequireFromString(amount),
		}); !errors.Is(err, subscriptiondomain.ErrPaymentExceedsDue) {
			t.Fatalf("amount %s: expected ErrPaymentExceedsDue, got %v", amount, err)
		}
	}
}

func TestApplyPaymentNoActiveSubscription(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())

	_, err := svc.ApplyPayment(ctx, paymentdomain.ApplyPaymentRequest{
		CustomerID: node.Generate().String(),
		Amount:     decimal.RequireFromString("10.00"),
	})
	if !errors.Is(err, subscriptiondomain.ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())

	_, err := svc.Get(ctx, paymentdomain.GetPaymentRequest{PaymentID: node.Generate().String()})
	if !errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
