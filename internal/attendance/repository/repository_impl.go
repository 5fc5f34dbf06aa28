package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	attendancedomain "github.com/fitstack/centerledger/internal/attendance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() attendancedomain.Repository {
	return &repo{}
}

const recordColumns = `id, center_id, customer_id, period_id, attended_on, mark_status, weight, photo_evidence, marked_by, amount_paid_at_marking, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *attendancedomain.AttendanceRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO attendance_records (
			id, center_id, customer_id, period_id, attended_on, mark_status, weight,
			photo_evidence, marked_by, amount_paid_at_marking, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CenterID,
		record.CustomerID,
		record.PeriodID,
		record.AttendedOn,
		record.MarkStatus,
		record.Weight,
		record.PhotoEvidence,
		record.MarkedBy,
		record.AmountPaidAtMarking,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindByDate(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID, attendedOn time.Time) (*attendancedomain.AttendanceRecord, error) {
	var record attendancedomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM attendance_records
		 WHERE center_id = ? AND customer_id = ? AND attended_on = ?`,
		centerID,
		customerID,
		attendedOn,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) UpdateMark(ctx context.Context, db *gorm.DB, record *attendancedomain.AttendanceRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE attendance_records
		 SET mark_status = ?, weight = ?, photo_evidence = ?, marked_by = ?, updated_at = ?
		 WHERE center_id = ? AND id = ?`,
		record.MarkStatus,
		record.Weight,
		record.PhotoEvidence,
		record.MarkedBy,
		record.UpdatedAt,
		record.CenterID,
		record.ID,
	).Error
}

func (r *repo) ListByDateRange(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID, from, to time.Time) ([]attendancedomain.AttendanceRecord, error) {
	var records []attendancedomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM attendance_records
		 WHERE center_id = ? AND customer_id = ? AND attended_on >= ? AND attended_on < ?
		 ORDER BY attended_on ASC`,
		centerID,
		customerID,
		from,
		to,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
