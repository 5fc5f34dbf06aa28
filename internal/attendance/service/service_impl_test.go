package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	attendancedomain "github.com/fitstack/centerledger/internal/attendance/domain"
	"github.com/fitstack/centerledger/internal/attendance/repository"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/fitstack/centerledger/internal/clock"
	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	paymentrepo "github.com/fitstack/centerledger/internal/payment/repository"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	subscriptionrepo "github.com/fitstack/centerledger/internal/subscription/repository"
	"github.com/fitstack/centerledger/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	svc     attendancedomain.Service
	db      *gorm.DB
	node    *snowflake.Node
	subRepo subscriptiondomain.Repository
	payRepo paymentdomain.Repository
	clock   *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&subscriptiondomain.SubscriptionPeriod{},
		&attendancedomain.AttendanceRecord{},
		&paymentdomain.Payment{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	subRepo := subscriptionrepo.Provide()
	payRepo := paymentrepo.Provide()
	svc := NewService(ServiceParam{
		DB:      dbConn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Repo:    repository.Provide(),
		SubRepo: subRepo,
		PayRepo: payRepo,
	})

	return &harness{
		svc:     svc,
		db:      dbConn,
		node:    node,
		subRepo: subRepo,
		payRepo: payRepo,
		clock:   fake,
	}
}

func (h *harness) createPeriod(t *testing.T, centerID, customerID snowflake.ID, price string, totalDays int) subscriptiondomain.SubscriptionPeriod {
	t.Helper()

	now := h.clock.Now()
	period := subscriptiondomain.SubscriptionPeriod{
		ID:         h.node.Generate(),
		CenterID:   centerID,
		CustomerID: customerID,
		Price:      decimal.RequireFromString(price),
		TotalDays:  totalDays,
		DaysLeft:   totalDays,
		IsActive:   true,
		AmountPaid: decimal.Zero,
		BoughtOn:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.subRepo.Insert(context.Background(), h.db, &period); err != nil {
		t.Fatalf("failed to insert period: %v", err)
	}
	return period
}

func testCtx(centerID snowflake.ID) context.Context {
	return centerctx.WithCenterID(context.Background(), int64(centerID))
}

func TestMarkAttendanceConsumesOneDay(t *testing.T) {
	h := newHarness(t)
	centerID := h.node.Generate()
	customerID := h.node.Generate()
	h.createPeriod(t, centerID, customerID, "2000.00", 7)
	ctx := testCtx(centerID)

	due := decimal.RequireFromString("500.00")
	resp, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-01",
		MarkStatus: true,
		Weight:     decimal.RequireFromString("82.50"),
		MarkedBy:   "staff-1",
		DuePayment: &due,
	})
	if err != nil {
		t.Fatalf("failed to mark attendance: %v", err)
	}
	if resp.Period.DaysLeft != 6 {
		t.Fatalf("expected 6 days left, got %d", resp.Period.DaysLeft)
	}
	if !resp.Period.AmountPaid.Equal(due) {
		t.Fatalf("expected amount paid 500.00, got %s", resp.Period.AmountPaid)
	}
	if !resp.Record.AmountPaidAtMarking.Valid || !resp.Record.AmountPaidAtMarking.Decimal.Equal(due) {
		t.Fatalf("expected amount paid at marking 500.00, got %+v", resp.Record.AmountPaidAtMarking)
	}

	payments, err := h.payRepo.ListByCustomerID(context.Background(), h.db, centerID, customerID)
	if err != nil {
		t.Fatalf("failed to list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Source != paymentdomain.SourceAttendance {
		t.Fatalf("expected one attendance payment, got %+v", payments)
	}
}

func TestMarkAttendanceExhaustsAfterTotalDays(t *testing.T) {
	h := newHarness(t)
	centerID := h.node.Generate()
	customerID := h.node.Generate()
	h.createPeriod(t, centerID, customerID, "2000.00", 7)
	ctx := testCtx(centerID)

	for i := 1; i <= 7; i++ {
		resp, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
			CustomerID: customerID.String(),
			Date:       fmt.Sprintf("2024-03-%02d", i),
			MarkStatus: true,
			MarkedBy:   "staff-1",
		})
		if err != nil {
			t.Fatalf("mark %d failed: %v", i, err)
		}
		if resp.Period.DaysLeft != 7-i {
			t.Fatalf("mark %d: expected %d days left, got %d", i, 7-i, resp.Period.DaysLeft)
		}
	}

	_, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-08",
		MarkStatus: true,
		MarkedBy:   "staff-1",
	})
	if !errors.Is(err, subscriptiondomain.ErrSubscriptionExhausted) {
		t.Fatalf("expected ErrSubscriptionExhausted, got %v", err)
	}

	resp, err := h.svc.QueryMonth(ctx, attendancedomain.QueryMonthRequest{
		CustomerID: customerID.String(),
		Month:      3,
		Year:       2024,
	})
	if err != nil {
		t.Fatalf("failed to query month: %v", err)
	}
	if len(resp.Records) != 7 {
		t.Fatalf("expected 7 records, got %d", len(resp.Records))
	}
}

func TestMarkAttendanceNoSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx(h.node.Generate())

	_, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
		CustomerID: h.node.Generate().String(),
		Date:       "2024-03-01",
		MarkStatus: true,
		MarkedBy:   "staff-1",
	})
	if !errors.Is(err, subscriptiondomain.ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestMarkAttendanceDuplicateDate(t *testing.T) {
	h := newHarness(t)
	centerID := h.node.Generate()
	customerID := h.node.Generate()
	h.createPeriod(t, centerID, customerID, "2000.00", 7)
	ctx := testCtx(centerID)

	req := attendancedomain.MarkAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-01",
		MarkStatus: true,
		MarkedBy:   "staff-1",
	}
	if _, err := h.svc.MarkAttendance(ctx, req); err != nil {
		t.Fatalf("failed to mark attendance: %v", err)
	}
	if _, err := h.svc.MarkAttendance(ctx, req); !errors.Is(err, attendancedomain.ErrDuplicateAttendance) {
		t.Fatalf("expected ErrDuplicateAttendance, got %v", err)
	}

	period, err := h.subRepo.FindActiveByCustomerID(context.Background(), h.db, centerID, customerID)
	if err != nil {
		t.Fatalf("failed to find period: %v", err)
	}
	if period == nil || period.DaysLeft != 6 {
		t.Fatalf("duplicate mark must not consume a second day, got %+v", period)
	}
}

func TestMarkAttendanceOverpaymentRollsBack(t *testing.T) {
	h := newHarness(t)
	centerID := h.node.Generate()
	customerID := h.node.Generate()
	h.createPeriod(t, centerID, customerID, "2000.00", 7)
	ctx := testCtx(centerID)

	due := decimal.RequireFromString("2500.00")
	_, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-01",
		MarkStatus: true,
		MarkedBy:   "staff-1",
		DuePayment: &due,
	})
	if !errors.Is(err, subscriptiondomain.ErrPaymentExceedsDue) {
		t.Fatalf("expected ErrPaymentExceedsDue, got %v", err)
	}

	period, err := h.subRepo.FindActiveByCustomerID(context.Background(), h.db, centerID, customerID)
	if err != nil {
		t.Fatalf("failed to find period: %v", err)
	}
	if period == nil || period.DaysLeft != 7 || !period.AmountPaid.IsZero() {
		t.Fatalf("failed mark must leave the period untouched, got %+v", period)
	}

	resp, err := h.svc.QueryMonth(ctx, attendancedomain.QueryMonthRequest{
		CustomerID: customerID.String(),
		Month:      3,
		Year:       2024,
	})
	if err != nil {
		t.Fatalf("failed to query month: %v", err)
	}
	if len(resp.Records) != 0 {
		t.Fatalf("failed mark must not persist a record, got %d", len(resp.Records))
	}
}

func TestUpdateAttendance(t *testing.T) {
	h := newHarness(t)
	centerID := h.node.Generate()
	customerID := h.node.Generate()
	h.createPeriod(t, centerID, customerID, "2000.00", 7)
	ctx := testCtx(centerID)

	if _, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-01",
		MarkStatus: true,
		MarkedBy:   "staff-1",
	}); err != nil {
		t.Fatalf("failed to mark attendance: %v", err)
	}

	// Same mark is a no-op.
	record, err := h.svc.UpdateAttendance(ctx, attendancedomain.UpdateAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-01",
		MarkStatus: true,
		MarkedBy:   "staff-2",
	})
	if err != nil {
		t.Fatalf("failed to update attendance: %v", err)
	}
	if record.MarkedBy != "staff-1" {
		t.Fatalf("no-op update must not write, got marked_by=%s", record.MarkedBy)
	}

	record, err = h.svc.UpdateAttendance(ctx, attendancedomain.UpdateAttendanceRequest{
		CustomerID: customerID.String(),
		Date:       "2024-03-01",
		MarkStatus: false,
		MarkedBy:   "staff-2",
	})
	if err != nil {
		t.Fatalf("failed to update attendance: %v", err)
	}
	if record.MarkStatus || record.MarkedBy != "staff-2" {
		t.Fatalf("expected corrected record, got %+v", record)
	}

	period, err := h.subRepo.FindActiveByCustomerID(context.Background(), h.db, centerID, customerID)
	if err != nil {
		t.Fatalf("failed to find period: %v", err)
	}
	if period == nil || period.DaysLeft != 6 {
		t.Fatalf("update must never consume a day, got %+v", period)
	}
}

func TestUpdateAttendanceNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx(h.node.Generate())

	_, err := h.svc.UpdateAttendance(ctx, attendancedomain.UpdateAttendanceRequest{
		CustomerID: h.node.Generate().String(),
		Date:       "2024-03-01",
		MarkStatus: false,
	})
	if !errors.Is(err, attendancedomain.ErrAttendanceNotFound) {
		t.Fatalf("expected ErrAttendanceNotFound, got %v", err)
	}
}

func TestQueryMonthFilters(t *testing.T) {
	h := newHarness(t)
	centerID := h.node.Generate()
	customerID := h.node.Generate()
	h.createPeriod(t, centerID, customerID, "2000.00", 7)
	ctx := testCtx(centerID)

	for _, date := range []string{"2024-03-30", "2024-03-31", "2024-04-01"} {
		if _, err := h.svc.MarkAttendance(ctx, attendancedomain.MarkAttendanceRequest{
			CustomerID: customerID.String(),
			Date:       date,
			MarkStatus: true,
			MarkedBy:   "staff-1",
		}); err != nil {
			t.Fatalf("failed to mark %s: %v", date, err)
		}
	}

	resp, err := h.svc.QueryMonth(ctx, attendancedomain.QueryMonthRequest{
		CustomerID: customerID.String(),
		Month:      3,
		Year:       2024,
	})
	if err != nil {
		t.Fatalf("failed to query month: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("expected 2 march records, got %d", len(resp.Records))
	}

	if _, err := h.svc.QueryMonth(ctx, attendancedomain.QueryMonthRequest{
		CustomerID: customerID.String(),
		Month:      13,
		Year:       2024,
	}); !errors.Is(err, attendancedomain.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}
