package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeStatusPending   = "pending"
	TradeStatusPartial   = "partial"
	TradeStatusOpen      = "open"
	TradeStatusResolved  = "resolved"
	TradeStatusFailed    = "failed"
	TradeStatusCancelled = "cancelled"
)

// Trade is the durable unit of execution. At most one trade with status in
// {pending, partial, open} may exist per market id; the executor re-checks
// this against the store immediately before every submission.
type Trade struct {
	ID          string `gorm:"primaryKey;type:varchar(40)"`
	AssetID     string `gorm:"type:varchar(20);not null;index"`
	MarketID    string `gorm:"type:varchar(100);not null;index"`
	ConditionID string `gorm:"type:varchar(100);index"`
	Question    string `gorm:"type:text"`

	Side    string `gorm:"type:varchar(10);not null"`
	TokenID string `gorm:"type:varchar(100);not null"`

	Price decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Size  decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	OrderID      string `gorm:"type:varchar(100)"`
	HedgeOrderID string `gorm:"type:varchar(100)"`

	Status        string `gorm:"type:varchar(20);not null;default:'pending';index"`
	FailureReason string `gorm:"type:text"`

	PnL *decimal.Decimal `gorm:"column:pnl;type:numeric(30,10)"`

	Simulated bool `gorm:"not null;default:false"`
	NegRisk   bool `gorm:"not null;default:false"`

	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt  time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsOpen reports whether the trade still blocks a new submission on its market.
func (t Trade) IsOpen() bool {
	switch t.Status {
	case TradeStatusPending, TradeStatusPartial, TradeStatusOpen:
		return true
	}
	return false
}
