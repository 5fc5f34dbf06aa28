package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/fitstack/centerledger/internal/clock"
	obsmetrics "github.com/fitstack/centerledger/internal/observability/metrics"
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
	repo    subscriptiondomain.Repository
	metrics *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// GetActive implements domain.Service.
func (s *Service) GetActive(ctx context.Context, req subscriptiondomain.GetActiveRequest) (subscriptiondomain.SubscriptionPeriod, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	period, err := s.repo.FindActiveByCustomerID(ctx, s.db, centerID, customerID)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}
	if period == nil {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrNoActiveSubscription
	}

	return *period, nil
}

// GetPeriod implements domain.Service.
func (s *Service) GetPeriod(ctx context.Context, req subscriptiondomain.GetPeriodRequest) (subscriptiondomain.SubscriptionPeriod, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrInvalidCenter
	}

	periodID, err := s.parseID(req.PeriodID, subscriptiondomain.ErrPeriodNotFound)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	period, err := s.repo.FindByID(ctx, s.db, centerID, periodID)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}
	if period == nil {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrPeriodNotFound
	}

	return *period, nil
}

// CreatePeriod implements domain.Service.
//
// Creation is serialized against concurrent purchases for the same
// customer by re-checking the active period under a row lock, backed by
// a partial unique index on (center_id, customer_id) WHERE is_active.
func (s *Service) CreatePeriod(ctx context.Context, req subscriptiondomain.CreatePeriodRequest) (subscriptiondomain.SubscriptionPeriod, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	if err := validateCreatePeriod(req); err != nil {
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
		AmountPaid: req.AmountPaid,
		BoughtOn:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindActiveByCustomerIDForUpdate(ctx, tx, centerID, customerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrActivePeriodExists
		}
		return s.repo.Insert(ctx, tx, &period)
	}); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrActivePeriodExists
		}
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	s.metrics.RecordPeriodCreated(ctx, centerID.String())
	s.log.Info("subscription period created",
		zap.String("period_id", period.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int("total_days", period.TotalDays),
	)

	return period, nil
}

// ConsumeOneDay implements domain.Service.
func (s *Service) ConsumeOneDay(ctx context.Context, customerID string) (subscriptiondomain.SubscriptionPeriod, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.SubscriptionPeriod{}, subscriptiondomain.ErrInvalidCenter
	}

	parsedCustomerID, err := s.parseID(customerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	var updated subscriptiondomain.SubscriptionPeriod
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		period, err := s.repo.FindActiveByCustomerIDForUpdate(ctx, tx, centerID, parsedCustomerID)
		if err != nil {
			return err
		}
		if period == nil {
			return subscriptiondomain.ErrNoActiveSubscription
		}

		if err := subscriptiondomain.ConsumeDay(period); err != nil {
			return err
		}
		period.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateConsumption(ctx, tx, period); err != nil {
			return err
		}
		updated = *period
		return nil
	}); err != nil {
		return subscriptiondomain.SubscriptionPeriod{}, err
	}

	s.metrics.RecordDayConsumed(ctx, centerID.String())
	if !updated.IsActive {
		s.metrics.RecordPeriodExhausted(ctx, centerID.String())
	}

	return updated, nil
}

// ListByCustomer implements domain.Service.
func (s *Service) ListByCustomer(ctx context.Context, req subscriptiondomain.ListPeriodsRequest) (subscriptiondomain.ListPeriodsResponse, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return subscriptiondomain.ListPeriodsResponse{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return subscriptiondomain.ListPeriodsResponse{}, err
	}

	periods, err := s.repo.ListByCustomerID(ctx, s.db, centerID, customerID)
	if err != nil {
		return subscriptiondomain.ListPeriodsResponse{}, err
	}

	return subscriptiondomain.ListPeriodsResponse{Periods: periods}, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func validateCreatePeriod(req subscriptiondomain.CreatePeriodRequest) error {
	if req.TotalDays < 1 {
		return subscriptiondomain.ErrInvalidTotalDays
	}
	if req.Price.LessThan(decimal.Zero) {
		return subscriptiondomain.ErrInvalidPrice
	}
	if req.AmountPaid.LessThan(decimal.Zero) || req.AmountPaid.GreaterThan(req.Price) {
		return subscriptiondomain.ErrInvalidAmountPaid
	}
	return nil
}
