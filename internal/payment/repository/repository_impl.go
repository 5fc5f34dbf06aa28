package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const paymentColumns = `id, center_id, customer_id, period_id, amount, source, received_by, received_at, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, center_id, customer_id, period_id, amount, source, received_by, received_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.CenterID,
		payment.CustomerID,
		payment.PeriodID,
		payment.Amount,
		payment.Source,
		payment.ReceivedBy,
		payment.ReceivedAt,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, centerID, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments WHERE center_id = ? AND id = ?`,
		centerID,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE center_id = ? AND customer_id = ?
		 ORDER BY received_at DESC, id DESC`,
		centerID,
		customerID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
