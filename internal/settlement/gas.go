package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Gas speed tiers offered by the Polygon gas station.
const (
	GasTierSafeLow  = "safeLow"
	GasTierStandard = "standard"
	GasTierFast     = "fast"
)

// GasOracle resolves a gas price in two tiers: the gas station endpoint
// first, then the node's own suggestion with a 10% bump. The bump buys
// faster inclusion; a redeem stuck in the mempool blocks the whole sweep.
type GasOracle struct {
	StationURL string
	SpeedTier  string
	HTTP       *http.Client
	Logger     *zap.Logger
}

type stationTier struct {
	MaxFee         float64 `json:"maxFee"`
	MaxPriorityFee float64 `json:"maxPriorityFee"`
}

type stationResponse struct {
	SafeLow  stationTier `json:"safeLow"`
	Standard stationTier `json:"standard"`
	Fast     stationTier `json:"fast"`
}

// GasPrice returns the price in wei. fallback is consulted only when the gas
// station is unreachable or returns garbage.
func (o *GasOracle) GasPrice(ctx context.Context, fallback Backend) (*big.Int, error) {
	if o != nil && o.StationURL != "" {
		if price, err := o.fromStation(ctx); err == nil {
			return price, nil
		} else if o.Logger != nil {
			o.Logger.Warn("gas station unavailable, asking node", zap.Error(err))
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("no gas price source available")
	}
	suggested, err := fallback.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	buffered := new(big.Int).Mul(suggested, big.NewInt(11))
	return buffered.Div(buffered, big.NewInt(10)), nil
}

func (o *GasOracle) fromStation(ctx context.Context) (*big.Int, error) {
	httpClient := o.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.StationURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gas station status %d", resp.StatusCode)
	}
	var parsed stationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	tier := parsed.Standard
	switch o.SpeedTier {
	case GasTierSafeLow:
		tier = parsed.SafeLow
	case GasTierFast:
		tier = parsed.Fast
	}
	if tier.MaxFee <= 0 {
		return nil, fmt.Errorf("gas station returned zero maxFee for tier %q", o.SpeedTier)
	}
	return gweiToWei(tier.MaxFee), nil
}

func gweiToWei(gwei float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9)).Int(nil)
	return wei
}
