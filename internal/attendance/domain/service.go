package domain

import (
	"context"
	"errors"

	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for attendance dates.
const DateLayout = "2006-01-02"

type MarkAttendanceRequest struct {
	CustomerID    string
	Date          string
	MarkStatus    bool
	Weight        decimal.Decimal
	PhotoEvidence []string
	MarkedBy      string
	DuePayment    *decimal.Decimal
}

type MarkAttendanceResponse struct {
	Record AttendanceRecord                      `json:"record"`
	Period subscriptiondomain.SubscriptionPeriod `json:"period"`
}

type UpdateAttendanceRequest struct {
	CustomerID    string
	Date          string
	MarkStatus    bool
	Weight        *decimal.Decimal
	PhotoEvidence []string
	MarkedBy      string
}

type QueryMonthRequest struct {
	CustomerID string
	Month      int
	Year       int
}

type QueryMonthResponse struct {
	Records []AttendanceRecord `json:"records"`
}

//go:generate mockgen -source=service.go -destination=mock/service_mock.go -package=mock
type Service interface {
	// MarkAttendance records one attendance day, consuming one remaining
	// day from the customer's active subscription. The record insert, the
	// day consumption and the optional inline payment commit or roll back
	// together.
	MarkAttendance(ctx context.Context, req MarkAttendanceRequest) (MarkAttendanceResponse, error)
	// UpdateAttendance corrects a mismarked day. It writes only when the
	// stored mark differs and never consumes a day.
	UpdateAttendance(ctx context.Context, req UpdateAttendanceRequest) (AttendanceRecord, error)
	QueryMonth(ctx context.Context, req QueryMonthRequest) (QueryMonthResponse, error)
}

var (
	ErrInvalidDate         = errors.New("invalid_date")
	ErrInvalidWeight       = errors.New("invalid_weight")
	ErrInvalidMarkedBy     = errors.New("invalid_marked_by")
	ErrInvalidMonth        = errors.New("invalid_month")
	ErrDuplicateAttendance = errors.New("duplicate_attendance")
	ErrAttendanceNotFound  = errors.New("attendance_not_found")
)
