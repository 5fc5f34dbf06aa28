package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, centerID, id snowflake.ID) (*Payment, error)
	ListByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) ([]Payment, error)
}
