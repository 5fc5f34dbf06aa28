package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/fitstack/centerledger/internal/clock"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/fitstack/centerledger/internal/subscription/repository"
	"github.com/fitstack/centerledger/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (subscriptiondomain.Service, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&subscriptiondomain.SubscriptionPeriod{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	svc := NewService(ServiceParam{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, node
}

func testCtx(centerID snowflake.ID) context.Context {
	return centerctx.WithCenterID(context.Background(), int64(centerID))
}

func TestCreatePeriod(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	period, err := svc.CreatePeriod(ctx, subscriptiondomain.CreatePeriodRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("120.00"),
		TotalDays:  12,
		AmountPaid: decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatalf("failed to create period: %v", err)
	}
	if period.DaysLeft != 12 {
		t.Fatalf("expected 12 days left, got %d", period.DaysLeft)
	}
	if !period.IsActive {
		t.Fatal("expected period to be active")
	}
	if !period.Due().Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("expected due 70.00, got %s", period.Due())
	}
}

func TestCreatePeriodRejectsSecondActive(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	req := subscriptiondomain.CreatePeriodRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("100.00"),
		TotalDays:  10,
		AmountPaid: decimal.RequireFromString("100.00"),
	}
	if _, err := svc.CreatePeriod(ctx, req); err != nil {
		t.Fatalf("failed to create first period: %v", err)
	}
	if _, err := svc.CreatePeriod(ctx, req); !errors.Is(err, subscriptiondomain.ErrActivePeriodExists) {
		t.Fatalf("expected ErrActivePeriodExists, got %v", err)
	}
}

func TestCreatePeriodValidation(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	cases := []struct {
		name string
		req  subscriptiondomain.CreatePeriodRequest
		want error
	}{
		{
			name: "zero days",
			req: subscriptiondomain.CreatePeriodRequest{
				CustomerID: customerID,
				Price:      decimal.RequireFromString("100.00"),
				TotalDays:  0,
			},
			want: subscriptiondomain.ErrInvalidTotalDays,
		},
		{
			name: "negative price",
			req: subscriptiondomain.CreatePeriodRequest{
				CustomerID: customerID,
				Price:      decimal.RequireFromString("-1.00"),
				TotalDays:  10,
			},
			want: subscriptiondomain.ErrInvalidPrice,
		},
		{
			name: "paid above price",
			req: subscriptiondomain.CreatePeriodRequest{
				CustomerID: customerID,
				Price:      decimal.RequireFromString("100.00"),
				TotalDays:  10,
				AmountPaid: decimal.RequireFromString("100.01"),
			},
			want: subscriptiondomain.ErrInvalidAmountPaid,
		},
		{
			name: "bad customer id",
			req: subscriptiondomain.CreatePeriodRequest{
				CustomerID: "not-an-id",
				Price:      decimal.RequireFromString("100.00"),
				TotalDays:  10,
			},
			want: subscriptiondomain.ErrInvalidCustomer,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreatePeriod(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreatePeriodRequiresCenter(t *testing.T) {
	svc, node := newTestService(t)

	_, err := svc.CreatePeriod(context.Background(), subscriptiondomain.CreatePeriodRequest{
		CustomerID: node.Generate().String(),
		Price:      decimal.RequireFromString("100.00"),
		TotalDays:  10,
	})
	if !errors.Is(err, subscriptiondomain.ErrInvalidCenter) {
		t.Fatalf("expected ErrInvalidCenter, got %v", err)
	}
}

func TestGetActiveNoSubscription(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())

	_, err := svc.GetActive(ctx, subscriptiondomain.GetActiveRequest{
		CustomerID: node.Generate().String(),
	})
	if !errors.Is(err, subscriptiondomain.ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestConsumeOneDayUntilExhausted(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	if _, err := svc.CreatePeriod(ctx, subscriptiondomain.CreatePeriodRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("30.00"),
		TotalDays:  2,
		AmountPaid: decimal.RequireFromString("30.00"),
	}); err != nil {
		t.Fatalf("failed to create period: %v", err)
	}

	period, err := svc.ConsumeOneDay(ctx, customerID)
	if err != nil {
		t.Fatalf("failed to consume day: %v", err)
	}
	if period.DaysLeft != 1 || !period.IsActive {
		t.Fatalf("expected 1 day left and active, got %d active=%v", period.DaysLeft, period.IsActive)
	}

	period, err = svc.ConsumeOneDay(ctx, customerID)
	if err != nil {
		t.Fatalf("failed to consume last day: %v", err)
	}
	if period.DaysLeft != 0 || period.IsActive {
		t.Fatalf("expected exhausted period, got %d active=%v", period.DaysLeft, period.IsActive)
	}

	if _, err := svc.ConsumeOneDay(ctx, customerID); !errors.Is(err, subscriptiondomain.ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestCreatePeriodAfterExhaustion(t *testing.T) {
	svc, node := newTestService(t)
	ctx := testCtx(node.Generate())
	customerID := node.Generate().String()

	if _, err := svc.CreatePeriod(ctx, subscriptiondomain.CreatePeriodRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("15.00"),
		TotalDays:  1,
		AmountPaid: decimal.RequireFromString("15.00"),
	}); err != nil {
		t.Fatalf("failed to create period: %v", err)
	}
	if _, err := svc.ConsumeOneDay(ctx, customerID); err != nil {
		t.Fatalf("failed to consume day: %v", err)
	}

	if _, err := svc.CreatePeriod(ctx, subscriptiondomain.CreatePeriodRequest{
		CustomerID: customerID,
		Price:      decimal.RequireFromString("150.00"),
		TotalDays:  15,
	}); err != nil {
		t.Fatalf("failed to create follow-up period: %v", err)
	}

	resp, err := svc.ListByCustomer(ctx, subscriptiondomain.ListPeriodsRequest{CustomerID: customerID})
	if err != nil {
		t.Fatalf("failed to list periods: %v", err)
	}
	if len(resp.Periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(resp.Periods))
	}
}
