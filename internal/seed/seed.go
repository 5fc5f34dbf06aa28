package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	centerdomain "github.com/fitstack/centerledger/internal/center/domain"
	"gorm.io/gorm"
)

const defaultCenterName = "Main"

// EnsureDefaultCenter seeds the default center for startup bootstrap.
func EnsureDefaultCenter(db *gorm.DB, name, address string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var center centerdomain.Center
		err := tx.WithContext(ctx).Order("id ASC").First(&center).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return createCenter(ctx, tx, node.Generate(), name, address)
	})
}

// EnsureDefaultCenterWithID seeds the center under the configured ID so
// requests without an X-Center-Id header resolve to a real row.
func EnsureDefaultCenterWithID(db *gorm.DB, id int64, name, address string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return errors.New("seed center id is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var center centerdomain.Center
		err := tx.WithContext(ctx).Where("id = ?", id).First(&center).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return createCenter(ctx, tx, snowflake.ID(id), name, address)
	})
}

func createCenter(ctx context.Context, tx *gorm.DB, id snowflake.ID, name, address string) error {
	if strings.TrimSpace(name) == "" {
		name = defaultCenterName
	}
	now := time.Now().UTC()
	center := centerdomain.Center{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Address:   strings.TrimSpace(address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.WithContext(ctx).Create(&center).Error
}
