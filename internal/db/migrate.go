package db

import (
	"updownbot/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.AssetSetting{},
		&models.Trade{},
		&models.ScanRecord{},
		&models.ClaimRecord{},
		&models.SystemSetting{},
	)
}
