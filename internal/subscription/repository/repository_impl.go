package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const periodColumns = `id, center_id, customer_id, price, total_days, days_left, is_active, amount_paid, bought_on, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, period *subscriptiondomain.SubscriptionPeriod) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_periods (
			id, center_id, customer_id, price, total_days, days_left, is_active,
			amount_paid, bought_on, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		period.ID,
		period.CenterID,
		period.CustomerID,
		period.Price,
		period.TotalDays,
		period.DaysLeft,
		period.IsActive,
		period.AmountPaid,
		period.BoughtOn,
		period.CreatedAt,
		period.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, centerID, id snowflake.ID) (*subscriptiondomain.SubscriptionPeriod, error) {
	var period subscriptiondomain.SubscriptionPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM subscription_periods WHERE center_id = ? AND id = ?`,
		centerID,
		id,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) FindActiveByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) (*subscriptiondomain.SubscriptionPeriod, error) {
	var period subscriptiondomain.SubscriptionPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM subscription_periods
		 WHERE center_id = ? AND customer_id = ? AND is_active AND days_left > 0
		 ORDER BY created_at DESC
		 LIMIT 1`,
		centerID,
		customerID,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) FindActiveByCustomerIDForUpdate(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) (*subscriptiondomain.SubscriptionPeriod, error) {
	query := `SELECT ` + periodColumns + `
		 FROM subscription_periods
		 WHERE center_id = ? AND customer_id = ? AND is_active AND days_left > 0
		 ORDER BY created_at DESC
		 LIMIT 1`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var period subscriptiondomain.SubscriptionPeriod
	err := db.WithContext(ctx).Raw(query, centerID, customerID).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) FindLatestByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) (*subscriptiondomain.SubscriptionPeriod, error) {
	var period subscriptiondomain.SubscriptionPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM subscription_periods
		 WHERE center_id = ? AND customer_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		centerID,
		customerID,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) ListByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) ([]subscriptiondomain.SubscriptionPeriod, error) {
	var periods []subscriptiondomain.SubscriptionPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM subscription_periods
		 WHERE center_id = ? AND customer_id = ?
		 ORDER BY created_at DESC`,
		centerID,
		customerID,
	).Scan(&periods).Error
	if err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *repo) UpdateConsumption(ctx context.Context, db *gorm.DB, period *subscriptiondomain.SubscriptionPeriod) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscription_periods
		 SET days_left = ?, is_active = ?, updated_at = ?
		 WHERE center_id = ? AND id = ?`,
		period.DaysLeft,
		period.IsActive,
		period.UpdatedAt,
		period.CenterID,
		period.ID,
	).Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, period *subscriptiondomain.SubscriptionPeriod) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscription_periods
		 SET amount_paid = ?, updated_at = ?
		 WHERE center_id = ? AND id = ?`,
		period.AmountPaid,
		period.UpdatedAt,
		period.CenterID,
		period.ID,
	).Error
}
