package models

import (
	"time"

	"gorm.io/datatypes"
)

// ClaimRecord is one auto-claim sweep outcome.
type ClaimRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	LookbackDays int `gorm:"not null;default:0"`
	Attempted    int `gorm:"not null;default:0"`
	Success      int `gorm:"not null;default:0"`
	Skipped      int `gorm:"not null;default:0"`
	Failed       int `gorm:"not null;default:0"`

	// Per-market failure reasons for the operator.
	Details datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (ClaimRecord) TableName() string {
	return "claim_records"
}
