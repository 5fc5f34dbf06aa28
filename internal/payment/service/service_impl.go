package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/fitstack/centerledger/internal/audit/domain"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/fitstack/centerledger/internal/clock"
	obsmetrics "github.com/fitstack/centerledger/internal/observability/metrics"
	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/fitstack/centerledger/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    paymentdomain.Repository
	subRepo subscriptiondomain.Repository
	audit   auditdomain.Service
	metrics *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    paymentdomain.Repository
	SubRepo subscriptiondomain.Repository
	Audit   auditdomain.Service `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payment.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		subRepo: p.SubRepo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

// ApplyPayment implements domain.Service.
//
// The period row is locked for the duration of the transaction so the
// due-balance check and the balance update cannot interleave with a
// concurrent payment or marking for the same customer.
func (s *Service) ApplyPayment(ctx context.Context, req paymentdomain.ApplyPaymentRequest) (subscriptiondomain.SubscriptionPeriod, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	var (
		updated subscriptiondomain.SubscriptionPeriod
		payment paymentdomain.Payment
	)
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		period, err := s.subRepo.FindActiveByCustomerIDForUpdate(ctx, tx, centerID, customerID)
		if err != nil {
			return err
		}
		if period == nil {
			return subscriptiondomain.ErrNoActiveSubscription
		}

		if err := subscriptiondomain.ApplyPayment(period, req.Amount); err != nil {
			return err
		}
		period.UpdatedAt = s.clock.Now()
		if err := s.subRepo.UpdatePayment(ctx, tx, period); err != nil {
			return err
		}

		payment = s.newPayment(centerID, period, req.Amount, paymentdomain.SourceCounter, req.ReceivedBy)
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		updated = *period
		return nil
	}); err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	s.recordApplied(ctx, centerID, payment)
	return updated, nil
}

// PurchaseAndPay implements domain.Service.
func (s *Service) PurchaseAndPay(ctx context.Context, req paymentdomain.PurchaseAndPayRequest) (subscriptiondomain.SubscriptionPeriod, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}
	if err := validatePurchase(req); err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	now := s.clock.Now()
	period := subscriptiondomain.SubscriptionPeriod{
		ID:         s.genID.Generate(),
		CenterID:   centerID,
		CustomerID: customerID,
		Price:      req.Price,
		TotalDays:  req.TotalDays,
		DaysLeft:   req.TotalDays,
		IsActive:   true,
		AmountPaid: decimal.Zero,
		BoughtOn:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var payment paymentdomain.Payment
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.subRepo.FindActiveByCustomerIDForUpdate(ctx, tx, centerID, customerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrActivePeriodExists
		}
		if err := s.subRepo.Insert(ctx, tx, &period); err != nil {
			return err
		}

		if req.InitialPayment.IsPositive() {
			if err := subscriptiondomain.ApplyPayment(&period, req.InitialPayment); err != nil {
				return err
			}
			if err := s.subRepo.UpdatePayment(ctx, tx, &period); err != nil {
				return err
			}
			payment = s.newPayment(centerID, &period, req.InitialPayment, paymentdomain.SourcePurchase, req.ReceivedBy)
			if err := s.repo.Insert(ctx, tx, &payment); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrActivePeriodExists
		}
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	s.metrics.RecordPeriodCreated(ctx, centerID.String())
	if payment.ID != 0 {
		s.recordApplied(ctx, centerID, payment)
	}
	s.log.Info("subscription purchased",
		zap.String("period_id", period.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int("total_days", period.TotalDays),
		zap.String("amount_paid", period.AmountPaid.String()),
	)

	return period, nil
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, req paymentdomain.GetPaymentRequest) (paymentdomain.Payment, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return paymentdomain.Payment{}, subscriptiondomain.ErrInvalidCenter
	}

	paymentID, err := parseID(req.PaymentID, paymentdomain.ErrInvalidPaymentID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	payment, err := s.repo.FindByID(ctx, s.db, centerID, paymentID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if payment == nil {
		return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
	}
	return *payment, nil
}

// ListByCustomer implements domain.Service.
func (s *Service) ListByCustomer(ctx context.Context, req paymentdomain.ListPaymentsRequest) (paymentdomain.ListPaymentsResponse, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return paymentdomain.ListPaymentsResponse{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return paymentdomain.ListPaymentsResponse{}, err
	}

	payments, err := s.repo.ListByCustomerID(ctx, s.db, centerID, customerID)
	if err != nil {
		return paymentdomain.ListPaymentsResponse{}, err
	}
	return paymentdomain.ListPaymentsResponse{Payments: payments}, nil
}

func (s *Service) newPayment(centerID snowflake.ID, period *subscriptiondomain.SubscriptionPeriod, amount decimal.Decimal, source, receivedBy string) paymentdomain.Payment {
	now := s.clock.Now()
	return paymentdomain.Payment{
		ID:         s.genID.Generate(),
		CenterID:   centerID,
		CustomerID: period.CustomerID,
		PeriodID:   period.ID,
		Amount:     amount,
		Source:     source,
		ReceivedBy: strings.TrimSpace(receivedBy),
		ReceivedAt: now,
		CreatedAt:  now,
	}
}

func (s *Service) recordApplied(ctx context.Context, centerID snowflake.ID, payment paymentdomain.Payment) {
	s.metrics.RecordPaymentApplied(ctx, centerID.String(), payment.Source)
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, "payment.applied", "payment", payment.ID.String(), map[string]any{
		"customer_id": payment.CustomerID.String(),
		"period_id":   payment.PeriodID.String(),
		"amount":      payment.Amount.String(),
		"source":      payment.Source,
	}); err != nil {
		s.log.Warn("failed to audit payment", zap.Error(err))
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func validatePurchase(req paymentdomain.PurchaseAndPayRequest) error {
	if req.TotalDays < 1 {
		return subscriptiondomain.ErrInvalidTotalDays
	}
	if req.Price.LessThan(decimal.Zero) {
		return subscriptiondomain.ErrInvalidPrice
	}
	if req.InitialPayment.LessThan(decimal.Zero) || req.InitialPayment.GreaterThan(req.Price) {
		return subscriptiondomain.ErrInvalidAmountPaid
	}
	return nil
}
