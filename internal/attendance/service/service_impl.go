package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	attendancedomain "github.com/fitstack/centerledger/internal/attendance/domain"
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
	repo    attendancedomain.Repository
	subRepo subscriptiondomain.Repository
	payRepo paymentdomain.Repository
	audit   auditdomain.Service
	metrics *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    attendancedomain.Repository
	SubRepo subscriptiondomain.Repository
	PayRepo paymentdomain.Repository
	Audit   auditdomain.Service `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) attendancedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("attendance.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		subRepo: p.SubRepo,
		payRepo: p.PayRepo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

// MarkAttendance implements domain.Service.
//
// The active period row is locked first, so concurrent marks for the
// same customer serialize: the second caller sees the decremented
// days_left and fails cleanly instead of double-consuming.
func (s *Service) MarkAttendance(ctx context.Context, req attendancedomain.MarkAttendanceRequest) (attendancedomain.MarkAttendanceResponse, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return attendancedomain.MarkAttendanceResponse{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return attendancedomain.MarkAttendanceResponse{}, err
	}
	attendedOn, err := parseDate(req.Date)
	if err != nil {
		return attendancedomain.MarkAttendanceResponse{}, err
	}
	if req.Weight.IsNegative() {
		return attendancedomain.MarkAttendanceResponse{}, attendancedomain.ErrInvalidWeight
	}
	markedBy := strings.TrimSpace(req.MarkedBy)
	if markedBy == "" {
		return attendancedomain.MarkAttendanceResponse{}, attendancedomain.ErrInvalidMarkedBy
	}

	photos := req.PhotoEvidence
	if photos == nil {
		photos = []string{}
	}
	evidence, err := json.Marshal(photos)
	if err != nil {
		return attendancedomain.MarkAttendanceResponse{}, err
	}

	var (
		record  attendancedomain.AttendanceRecord
		period  subscriptiondomain.SubscriptionPeriod
		payment paymentdomain.Payment
	)
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.resolveActiveForUpdate(ctx, tx, centerID, customerID)
		if err != nil {
			return err
		}

		if existing, err := s.repo.FindByDate(ctx, tx, centerID, customerID, attendedOn); err != nil {
			return err
		} else if existing != nil {
			return attendancedomain.ErrDuplicateAttendance
		}

		if err := subscriptiondomain.ConsumeDay(active); err != nil {
			return err
		}
		now := s.clock.Now()
		active.UpdatedAt = now
		if err := s.subRepo.UpdateConsumption(ctx, tx, active); err != nil {
			return err
		}

		var paidAtMarking decimal.NullDecimal
		if req.DuePayment != nil {
			if err := subscriptiondomain.ApplyPayment(active, *req.DuePayment); err != nil {
				return err
			}
			if err := s.subRepo.UpdatePayment(ctx, tx, active); err != nil {
				return err
			}
			payment = paymentdomain.Payment{
				ID:         s.genID.Generate(),
				CenterID:   centerID,
				CustomerID: customerID,
				PeriodID:   active.ID,
				Amount:     *req.DuePayment,
				Source:     paymentdomain.SourceAttendance,
				ReceivedBy: markedBy,
				ReceivedAt: now,
				CreatedAt:  now,
			}
			if err := s.payRepo.Insert(ctx, tx, &payment); err != nil {
				return err
			}
			paidAtMarking = decimal.NewNullDecimal(*req.DuePayment)
		}

		record = attendancedomain.AttendanceRecord{
			ID:                  s.genID.Generate(),
			CenterID:            centerID,
			CustomerID:          customerID,
			PeriodID:            active.ID,
			AttendedOn:          attendedOn,
			MarkStatus:          req.MarkStatus,
			Weight:              req.Weight,
			PhotoEvidence:       evidence,
			MarkedBy:            markedBy,
			AmountPaidAtMarking: paidAtMarking,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			return err
		}

		period = *active
		return nil
	}); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return attendancedomain.MarkAttendanceResponse{}, attendancedomain.ErrDuplicateAttendance
		}
		return attendancedomain.MarkAttendanceResponse{}, err
	}

	s.metrics.RecordAttendanceMark(ctx, centerID.String(), req.MarkStatus)
	s.metrics.RecordDayConsumed(ctx, centerID.String())
	if !period.IsActive {
		s.metrics.RecordPeriodExhausted(ctx, centerID.String())
	}
	if payment.ID != 0 {
		s.metrics.RecordPaymentApplied(ctx, centerID.String(), payment.Source)
	}
	s.auditMark(ctx, record, period)

	return attendancedomain.MarkAttendanceResponse{Record: record, Period: period}, nil
}

// UpdateAttendance implements domain.Service.
func (s *Service) UpdateAttendance(ctx context.Context, req attendancedomain.UpdateAttendanceRequest) (attendancedomain.AttendanceRecord, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return attendancedomain.AttendanceRecord{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return attendancedomain.AttendanceRecord{}, err
	}
	attendedOn, err := parseDate(req.Date)
	if err != nil {
		return attendancedomain.AttendanceRecord{}, err
	}
	if req.Weight != nil && req.Weight.IsNegative() {
		return attendancedomain.AttendanceRecord{}, attendancedomain.ErrInvalidWeight
	}

	var updated attendancedomain.AttendanceRecord
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByDate(ctx, tx, centerID, customerID, attendedOn)
		if err != nil {
			return err
		}
		if record == nil {
			return attendancedomain.ErrAttendanceNotFound
		}

		// Same mark means nothing to correct. Day consumption is never
		// touched on this path either way.
		if record.MarkStatus == req.MarkStatus {
			updated = *record
			return nil
		}

		record.MarkStatus = req.MarkStatus
		if req.Weight != nil {
			record.Weight = *req.Weight
		}
		if req.PhotoEvidence != nil {
			evidence, err := json.Marshal(req.PhotoEvidence)
			if err != nil {
				return err
			}
			record.PhotoEvidence = evidence
		}
		if markedBy := strings.TrimSpace(req.MarkedBy); markedBy != "" {
			record.MarkedBy = markedBy
		}
		record.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateMark(ctx, tx, record); err != nil {
			return err
		}
		updated = *record
		return nil
	}); err != nil {
		return attendancedomain.AttendanceRecord{}, err
	}

	return updated, nil
}

// QueryMonth implements domain.Service.
func (s *Service) QueryMonth(ctx context.Context, req attendancedomain.QueryMonthRequest) (attendancedomain.QueryMonthResponse, error) {
	centerID, ok := centerctx.CenterIDFromContext(ctx)
	if !ok || centerID == 0 {
		return attendancedomain.QueryMonthResponse{}, subscriptiondomain.ErrInvalidCenter
	}

	customerID, err := parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return attendancedomain.QueryMonthResponse{}, err
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		return attendancedomain.QueryMonthResponse{}, attendancedomain.ErrInvalidMonth
	}

	from := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	records, err := s.repo.ListByDateRange(ctx, s.db, centerID, customerID, from, to)
	if err != nil {
		return attendancedomain.QueryMonthResponse{}, err
	}
	return attendancedomain.QueryMonthResponse{Records: records}, nil
}

// resolveActiveForUpdate locks and returns the customer's active period.
// An exhausted last period reports ErrSubscriptionExhausted so the staff
// UI can say "expired" rather than "never subscribed".
func (s *Service) resolveActiveForUpdate(ctx context.Context, tx *gorm.DB, centerID, customerID snowflake.ID) (*subscriptiondomain.SubscriptionPeriod, error) {
	active, err := s.subRepo.FindActiveByCustomerIDForUpdate(ctx, tx, centerID, customerID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.DaysLeft <= 0 {
			return nil, subscriptiondomain.ErrSubscriptionExhausted
		}
		return active, nil
	}

	latest, err := s.subRepo.FindLatestByCustomerID(ctx, tx, centerID, customerID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.DaysLeft == 0 {
		return nil, subscriptiondomain.ErrSubscriptionExhausted
	}
	return nil, subscriptiondomain.ErrNoActiveSubscription
}

func (s *Service) auditMark(ctx context.Context, record attendancedomain.AttendanceRecord, period subscriptiondomain.SubscriptionPeriod) {
	if s.audit == nil {
		return
	}
	metadata := map[string]any{
		"customer_id": record.CustomerID.String(),
		"period_id":   record.PeriodID.String(),
		"attended_on": record.AttendedOn.Format(attendancedomain.DateLayout),
		"mark_status": record.MarkStatus,
		"days_left":   period.DaysLeft,
	}
	if record.AmountPaidAtMarking.Valid {
		metadata["due_payment"] = record.AmountPaidAtMarking.Decimal.String()
	}
	if err := s.audit.Record(ctx, "attendance.marked", "attendance_record", record.ID.String(), metadata); err != nil {
		s.log.Warn("failed to audit attendance mark", zap.Error(err))
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(attendancedomain.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, attendancedomain.ErrInvalidDate
	}
	return parsed.UTC(), nil
}
