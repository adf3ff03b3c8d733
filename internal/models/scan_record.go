package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScanRecord is the per-tick scan summary, appended unconditionally at the end
// of every multi-asset scan (including partially failed ones).
type ScanRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	MarketsSeen    int `gorm:"not null;default:0"`
	Opportunities  int `gorm:"not null;default:0"`
	TradesExecuted int `gorm:"not null;default:0"`

	Forced bool `gorm:"not null;default:false"`

	// Per-asset notes: skip reasons, gate reasons, errors.
	Details datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (ScanRecord) TableName() string {
	return "scan_records"
}
