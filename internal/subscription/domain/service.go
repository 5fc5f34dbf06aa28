package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type GetActiveRequest struct {
	CustomerID string
}

type GetPeriodRequest struct {
	PeriodID string
}

type CreatePeriodRequest struct {
	CustomerID string          `json:"customer_id"`
	Price      decimal.Decimal `json:"price"`
	TotalDays  int             `json:"total_days"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type ListPeriodsRequest struct {
	CustomerID string
}

type ListPeriodsResponse struct {
	Periods []SubscriptionPeriod `json:"periods"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	GetActive(context.Context, GetActiveRequest) (SubscriptionPeriod, error)
	GetPeriod(context.Context, GetPeriodRequest) (SubscriptionPeriod, error)
	CreatePeriod(context.Context, CreatePeriodRequest) (SubscriptionPeriod, error)
	ConsumeOneDay(ctx context.Context, customerID string) (SubscriptionPeriod, error)
	ListByCustomer(context.Context, ListPeriodsRequest) (ListPeriodsResponse, error)
}

var (
	ErrInvalidCenter         = errors.New("invalid_center")
	ErrInvalidCustomer       = errors.New("invalid_customer")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrInvalidTotalDays      = errors.New("invalid_total_days")
	ErrInvalidAmountPaid     = errors.New("invalid_amount_paid")
	ErrNoActiveSubscription  = errors.New("no_active_subscription")
	ErrSubscriptionExhausted = errors.New("subscription_exhausted")
	ErrActivePeriodExists    = errors.New("active_period_exists")
	ErrPaymentExceedsDue     = errors.New("payment_exceeds_due")
	ErrPeriodNotFound        = errors.New("period_not_found")
)
