package migration

import (
	"github.com/fitstack/centerledger/internal/config"
	"github.com/fitstack/centerledger/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.DefaultCenterID != 0 {
			return seed.EnsureDefaultCenterWithID(conn, cfg.DefaultCenterID, cfg.ReceiptCenterName, cfg.ReceiptCenterAddress)
		}
		return seed.EnsureDefaultCenter(conn, cfg.ReceiptCenterName, cfg.ReceiptCenterAddress)
	}),
)
