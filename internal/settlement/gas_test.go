package settlement

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type stubBackend struct {
	gasPrice *big.Int
}

func (s *stubBackend) BlockNumber(context.Context) (uint64, error) { return 1, nil }
func (s *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}
func (s *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.gasPrice), nil
}
func (s *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (s *stubBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}
func (s *stubBackend) SendTransaction(context.Context, *types.Transaction) error { return nil }
func (s *stubBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func TestGasPriceFromStationTier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"safeLow":{"maxFee":25.0},"standard":{"maxFee":30.0},"fast":{"maxFee":42.5}}`))
	}))
	defer server.Close()

	o := &GasOracle{StationURL: server.URL, SpeedTier: GasTierFast}
	price, err := o.GasPrice(context.Background(), &stubBackend{gasPrice: big.NewInt(1)})
	if err != nil {
		t.Fatal(err)
	}
	want := big.NewInt(42_500_000_000) // 42.5 gwei
	if price.Cmp(want) != 0 {
		t.Fatalf("price = %s, want %s", price, want)
	}
}

func TestGasPriceFallsBackWithBump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	o := &GasOracle{StationURL: server.URL, SpeedTier: GasTierStandard}
	price, err := o.GasPrice(context.Background(), &stubBackend{gasPrice: big.NewInt(30_000_000_000)})
	if err != nil {
		t.Fatal(err)
	}
	// Node suggestion of 30 gwei gets a 10% bump.
	want := big.NewInt(33_000_000_000)
	if price.Cmp(want) != 0 {
		t.Fatalf("price = %s, want %s", price, want)
	}
}

func TestGasPriceRejectsZeroTier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"standard":{"maxFee":0}}`))
	}))
	defer server.Close()

	o := &GasOracle{StationURL: server.URL, SpeedTier: GasTierStandard}
	price, err := o.GasPrice(context.Background(), &stubBackend{gasPrice: big.NewInt(10_000_000_000)})
	if err != nil {
		t.Fatal(err)
	}
	if price.Cmp(big.NewInt(11_000_000_000)) != 0 {
		t.Fatalf("price = %s, want node fallback with bump", price)
	}
}
