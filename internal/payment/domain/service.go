package domain

import (
	"context"
	"errors"

	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/shopspring/decimal"
)

type ApplyPaymentRequest struct {
	CustomerID string
	Amount     decimal.Decimal
	ReceivedBy string
}

type PurchaseAndPayRequest struct {
	CustomerID     string
	Price          decimal.Decimal
	TotalDays      int
	InitialPayment decimal.Decimal
	ReceivedBy     string
}

type GetPaymentRequest struct {
	PaymentID string
}

type ListPaymentsRequest struct {
	CustomerID string
}

type ListPaymentsResponse struct {
	Payments []Payment `json:"payments"`
}

//go:generate mockgen -source=service.go -destination=mock/service_mock.go -package=mock
type Service interface {
	// ApplyPayment adds a counter payment to the customer's active period,
	// bounded by the outstanding due balance.
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (subscriptiondomain.SubscriptionPeriod, error)
	// PurchaseAndPay creates a new subscription period and applies the
	// initial payment in the same transaction.
	PurchaseAndPay(ctx context.Context, req PurchaseAndPayRequest) (subscriptiondomain.SubscriptionPeriod, error)
	Get(ctx context.Context, req GetPaymentRequest) (Payment, error)
	ListByCustomer(ctx context.Context, req ListPaymentsRequest) (ListPaymentsResponse, error)
}

var (
	ErrInvalidPaymentID = errors.New("invalid_payment_id")
	ErrPaymentNotFound  = errors.New("payment_not_found")
)
