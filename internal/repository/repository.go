package repository

import (
	"context"
	"time"

	"updownbot/internal/models"
)

// Repository is the trade record store: the single source of truth for
// duplicate-trade checks, trade lifecycle state, and scan/claim history.
type Repository interface {
	// Trades
	InsertTrade(ctx context.Context, item *models.Trade) error
	UpdateTrade(ctx context.Context, item *models.Trade) error
	GetTradeByID(ctx context.Context, id string) (*models.Trade, error)
	// FindOpenTradeByMarket returns the trade blocking marketID, i.e. one with
	// status in {pending, partial, open}, or nil.
	FindOpenTradeByMarket(ctx context.Context, marketID string) (*models.Trade, error)
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)
	ListOpenTrades(ctx context.Context) ([]models.Trade, error)

	// Scan summaries
	InsertScanRecord(ctx context.Context, item *models.ScanRecord) error
	ListScanRecords(ctx context.Context, params ListScanRecordsParams) ([]models.ScanRecord, error)

	// Claim sweeps
	InsertClaimRecord(ctx context.Context, item *models.ClaimRecord) error
	ListClaimRecords(ctx context.Context, params ListClaimRecordsParams) ([]models.ClaimRecord, error)

	// Asset settings
	GetAssetSetting(ctx context.Context, assetID string) (*models.AssetSetting, error)
	ListAssetSettings(ctx context.Context) ([]models.AssetSetting, error)
	UpsertAssetSetting(ctx context.Context, item *models.AssetSetting) error

	// System settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type ListTradesParams struct {
	Limit    int
	Offset   int
	AssetID  *string
	MarketID *string
	Status   *string
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListScanRecordsParams struct {
	Limit  int
	Offset int
	Since  *time.Time
}

type ListClaimRecordsParams struct {
	Limit  int
	Offset int
	Since  *time.Time
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
