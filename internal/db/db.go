package db

import (
	"fmt"

	"partnerd/internal/auth"
	"partnerd/internal/history"
	"partnerd/internal/wallet"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.Partner{},
		&history.Record{},
		&wallet.Withdrawal{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_history_partner_completed on job_history(partner_id, completed_at desc) where status = 'completed';`,
		`create index if not exists idx_history_partner_cancelled on job_history(partner_id, cancelled_at desc) where status = 'cancelled';`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
