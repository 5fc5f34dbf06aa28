package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, period *SubscriptionPeriod) error
	FindByID(ctx context.Context, db *gorm.DB, centerID, id snowflake.ID) (*SubscriptionPeriod, error)
	FindActiveByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) (*SubscriptionPeriod, error)
	FindActiveByCustomerIDForUpdate(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) (*SubscriptionPeriod, error)
	FindLatestByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) (*SubscriptionPeriod, error)
	ListByCustomerID(ctx context.Context, db *gorm.DB, centerID, customerID snowflake.ID) ([]SubscriptionPeriod, error)
	UpdateConsumption(ctx context.Context, db *gorm.DB, period *SubscriptionPeriod) error
	UpdatePayment(ctx context.Context, db *gorm.DB, period *SubscriptionPeriod) error
}
