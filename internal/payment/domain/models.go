package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment is one immutable entry in the payment history. The running
// balance lives on the subscription period; rows here are never updated.
type Payment struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	CenterID   snowflake.ID    `json:"center_id" gorm:"not null;index"`
	CustomerID snowflake.ID    `json:"customer_id" gorm:"not null;index"`
	PeriodID   snowflake.ID    `json:"period_id" gorm:"not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Source     string          `json:"source" gorm:"type:text;not null"`
	ReceivedBy string          `json:"received_by" gorm:"type:text"`
	ReceivedAt time.Time       `json:"received_at" gorm:"not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

const (
	SourcePurchase   = "purchase"
	SourceCounter    = "counter"
	SourceAttendance = "attendance"
)
