package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *AttendanceRecord) error
	FindByDate(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID, attendedOn time.Time) (*AttendanceRecord, error)
	UpdateMark(ctx context.Context, db *gorm.DB, record *AttendanceRecord) error
	ListByDateRange(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID, from, to time.Time) ([]AttendanceRecord, error)
}
