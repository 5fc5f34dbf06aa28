// Package domain contains persistence models for subscription periods.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SubscriptionPeriod is one purchased block of attendance days.
//
// A period is active while it still has consumable days. Once DaysLeft
// reaches zero the period flips inactive and becomes read-only history.
type SubscriptionPeriod struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	CenterID   snowflake.ID    `gorm:"not null;index" json:"center_id"`
	CustomerID snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	TotalDays  int             `gorm:"not null" json:"total_days"`
	DaysLeft   int             `gorm:"not null" json:"days_left"`
	IsActive   bool            `gorm:"not null;default:false" json:"is_active"`
	AmountPaid decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_paid"`
	BoughtOn   time.Time       `gorm:"not null" json:"bought_on"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (SubscriptionPeriod) TableName() string { return "subscription_periods" }

// Due returns the outstanding balance for the period.
func (p SubscriptionPeriod) Due() decimal.Decimal {
	return p.Price.Sub(p.AmountPaid)
}

// ConsumeDay decrements the remaining days by exactly one and flips the
// period inactive when it hits zero. The caller must hold the row lock.
func ConsumeDay(p *SubscriptionPeriod) error {
	if p == nil || !p.IsActive {
		return ErrNoActiveSubscription
	}
	if p.DaysLeft <= 0 {
		return ErrSubscriptionExhausted
	}
	p.DaysLeft--
	p.IsActive = p.DaysLeft > 0
	return nil
}

// ApplyPayment increases the paid amount, bounded by the outstanding
// balance. It never touches DaysLeft or IsActive.
func ApplyPayment(p *SubscriptionPeriod, amount decimal.Decimal) error {
	if p == nil {
		return ErrNoActiveSubscription
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrPaymentExceedsDue
	}
	if amount.GreaterThan(p.Due()) {
		return ErrPaymentExceedsDue
	}
	p.AmountPaid = p.AmountPaid.Add(amount)
	return nil
}
