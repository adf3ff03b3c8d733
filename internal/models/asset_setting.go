package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetSetting is the per-asset trading configuration. Mutable at any time via
// the operator surface; last write wins, no versioning.
type AssetSetting struct {
	AssetID    string `gorm:"primaryKey;type:varchar(20)"`
	SeriesSlug string `gorm:"type:varchar(120);not null"`
	SpotSymbol string `gorm:"type:varchar(20)"`

	Enabled   bool            `gorm:"not null;default:false"`
	BetSize   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	MinPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	MaxPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	AutoClaim bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AssetSetting) TableName() string {
	return "asset_settings"
}
