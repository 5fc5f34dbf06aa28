package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, centerID, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, centerID snowflake.ID, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
}
