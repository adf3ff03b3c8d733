// Package memoryrepository holds trade records in process memory. It backs
// tests and dry runs where no database is available; state is lost on exit.
package memoryrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"updownbot/internal/models"
	"updownbot/internal/repository"
)

type Store struct {
	mu             sync.Mutex
	trades         map[string]*models.Trade
	scanRecords    []models.ScanRecord
	claimRecords   []models.ClaimRecord
	assetSettings  map[string]*models.AssetSetting
	systemSettings map[string]*models.SystemSetting
	nextID         uint64
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		trades:         map[string]*models.Trade{},
		assetSettings:  map[string]*models.AssetSetting{},
		systemSettings: map[string]*models.SystemSetting{},
	}
}

func (s *Store) InsertTrade(_ context.Context, item *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	cp := *item
	s.trades[item.ID] = &cp
	return nil
}

func (s *Store) UpdateTrade(_ context.Context, item *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	cp.UpdatedAt = time.Now().UTC()
	s.trades[item.ID] = &cp
	return nil
}

func (s *Store) GetTradeByID(_ context.Context, id string) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trades[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) FindOpenTradeByMarket(_ context.Context, marketID string) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trades {
		if t.MarketID == marketID && t.IsOpen() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListTrades(_ context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterTrades(params)
	sort.Slice(out, func(i, j int) bool {
		if params.Asc != nil && *params.Asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, params.Limit, params.Offset), nil
}

func (s *Store) CountTrades(_ context.Context, params repository.ListTradesParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filterTrades(params))), nil
}

func (s *Store) filterTrades(params repository.ListTradesParams) []models.Trade {
	var out []models.Trade
	for _, t := range s.trades {
		if params.AssetID != nil && t.AssetID != *params.AssetID {
			continue
		}
		if params.MarketID != nil && t.MarketID != *params.MarketID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Since != nil && t.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, *t)
	}
	return out
}

func (s *Store) ListOpenTrades(_ context.Context) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trade
	for _, t := range s.trades {
		if t.IsOpen() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) InsertScanRecord(_ context.Context, item *models.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.scanRecords = append(s.scanRecords, *item)
	return nil
}

func (s *Store) ListScanRecords(_ context.Context, params repository.ListScanRecordsParams) ([]models.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScanRecord
	for i := len(s.scanRecords) - 1; i >= 0; i-- {
		r := s.scanRecords[i]
		if params.Since != nil && r.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, r)
	}
	return paginate(out, params.Limit, params.Offset), nil
}

func (s *Store) InsertClaimRecord(_ context.Context, item *models.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.claimRecords = append(s.claimRecords, *item)
	return nil
}

func (s *Store) ListClaimRecords(_ context.Context, params repository.ListClaimRecordsParams) ([]models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ClaimRecord
	for i := len(s.claimRecords) - 1; i >= 0; i-- {
		r := s.claimRecords[i]
		if params.Since != nil && r.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, r)
	}
	return paginate(out, params.Limit, params.Offset), nil
}

func (s *Store) GetAssetSetting(_ context.Context, assetID string) (*models.AssetSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assetSettings[assetID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListAssetSettings(_ context.Context) ([]models.AssetSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssetSetting
	for _, a := range s.assetSettings {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

func (s *Store) UpsertAssetSetting(_ context.Context, item *models.AssetSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.assetSettings[item.AssetID] = &cp
	return nil
}

func (s *Store) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.systemSettings[item.Key] = &cp
	return nil
}

func (s *Store) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.systemSettings[key]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListSystemSettings(_ context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SystemSetting
	for _, v := range s.systemSettings {
		if params.Prefix != nil && !strings.HasPrefix(v.Key, *params.Prefix) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return paginate(out, params.Limit, params.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
