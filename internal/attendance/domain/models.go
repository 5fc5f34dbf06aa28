package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AttendanceRecord is one dated attendance entry. A customer gets at
// most one row per calendar day, enforced by the unique index.
type AttendanceRecord struct {
	ID                  snowflake.ID        `json:"id" gorm:"primaryKey"`
	CenterID            snowflake.ID        `json:"center_id" gorm:"not null;uniqueIndex:uidx_attendance_customer_day"`
	CustomerID          snowflake.ID        `json:"customer_id" gorm:"not null;uniqueIndex:uidx_attendance_customer_day"`
	PeriodID            snowflake.ID        `json:"period_id" gorm:"not null;index"`
	AttendedOn          time.Time           `json:"attended_on" gorm:"type:date;not null;uniqueIndex:uidx_attendance_customer_day"`
	MarkStatus          bool                `json:"mark_status" gorm:"not null"`
	Weight              decimal.Decimal     `json:"weight" gorm:"type:numeric(6,2)"`
	PhotoEvidence       datatypes.JSON      `json:"photo_evidence"`
	MarkedBy            string              `json:"marked_by" gorm:"type:text;not null"`
	AmountPaidAtMarking decimal.NullDecimal `json:"amount_paid_at_marking" gorm:"type:numeric(12,2)"`
	CreatedAt           time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time           `json:"updated_at" gorm:"not null"`
}

func (AttendanceRecord) TableName() string { return "attendance_records" }
