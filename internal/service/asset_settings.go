package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"updownbot/internal/config"
	"updownbot/internal/models"
	"updownbot/internal/repository"
)

// AssetSettingsService manages per-asset trading parameters. Config seeds
// the store on first start; after that the store is authoritative so the
// operator can retune a running bot over HTTP.
type AssetSettingsService struct {
	Repo repository.Repository
}

// SeedFromConfig inserts assets that are not yet in the store. Existing rows
// are left alone.
func (s *AssetSettingsService) SeedFromConfig(ctx context.Context, assets []config.AssetConfig) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	for _, asset := range assets {
		id := strings.TrimSpace(asset.ID)
		if id == "" {
			continue
		}
		existing, err := s.Repo.GetAssetSetting(ctx, id)
		if err != nil {
			return fmt.Errorf("get asset %s: %w", id, err)
		}
		if existing != nil {
			continue
		}
		item := &models.AssetSetting{
			AssetID:    id,
			SeriesSlug: asset.SeriesSlug,
			SpotSymbol: asset.SpotSymbol,
			Enabled:    asset.Enabled,
			BetSize:    decimal.NewFromFloat(asset.BetSize),
			MinPrice:   decimal.NewFromFloat(asset.MinPrice),
			MaxPrice:   decimal.NewFromFloat(asset.MaxPrice),
			AutoClaim:  asset.AutoClaim,
		}
		if err := s.Repo.UpsertAssetSetting(ctx, item); err != nil {
			return fmt.Errorf("seed asset %s: %w", id, err)
		}
	}
	return nil
}

// List returns every configured asset, enabled or not.
func (s *AssetSettingsService) List(ctx context.Context) ([]models.AssetSetting, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListAssetSettings(ctx)
}

// ListAutoClaim returns the assets whose resolved markets the claim sweep
// should enumerate. Independent of the trading enabled flag: a disabled
// asset's past positions still need redeeming.
func (s *AssetSettingsService) ListAutoClaim(ctx context.Context) ([]models.AssetSetting, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	all, err := s.Repo.ListAssetSettings(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.AssetSetting
	for _, a := range all {
		if a.AutoClaim {
			out = append(out, a)
		}
	}
	return out, nil
}

// Update validates and persists one asset's parameters.
func (s *AssetSettingsService) Update(ctx context.Context, item *models.AssetSetting) error {
	if s == nil || s.Repo == nil {
		return fmt.Errorf("asset settings service is not configured")
	}
	if strings.TrimSpace(item.AssetID) == "" {
		return fmt.Errorf("asset id is required")
	}
	if item.MinPrice.GreaterThanOrEqual(item.MaxPrice) {
		return fmt.Errorf("min_price must be below max_price")
	}
	if item.MinPrice.LessThan(decimal.Zero) || item.MaxPrice.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("price band must stay inside [0, 1]")
	}
	if item.BetSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("bet_size must be positive")
	}
	return s.Repo.UpsertAssetSetting(ctx, item)
}
