package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the slice of the eth client the settlement engine uses.
// *ethclient.Client satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ChainClient fronts an ordered list of RPC endpoints. Every Acquire probes
// from the top of the list again, so a recovered primary endpoint takes back
// over without a restart.
type ChainClient struct {
	Endpoints    []string
	ProbeTimeout time.Duration
	Logger       *zap.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// Acquire returns the first endpoint that answers a liveness probe.
func (c *ChainClient) Acquire(ctx context.Context) (Backend, error) {
	if c == nil || len(c.Endpoints) == 0 {
		return nil, fmt.Errorf("no rpc endpoints configured")
	}
	timeout := c.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var lastErr error
	for _, endpoint := range c.Endpoints {
		client, err := c.dial(endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		_, err = client.BlockNumber(probeCtx)
		cancel()
		if err != nil {
			lastErr = err
			if c.Logger != nil {
				c.Logger.Warn("rpc endpoint failed probe",
					zap.String("endpoint", endpoint), zap.Error(err))
			}
			c.evict(endpoint)
			continue
		}
		return client, nil
	}
	return nil, fmt.Errorf("all rpc endpoints down: %w", lastErr)
}

func (c *ChainClient) dial(endpoint string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients == nil {
		c.clients = map[string]*ethclient.Client{}
	}
	if client, ok := c.clients[endpoint]; ok {
		return client, nil
	}
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	c.clients[endpoint] = client
	return client, nil
}

func (c *ChainClient) evict(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[endpoint]; ok {
		client.Close()
		delete(c.clients, endpoint)
	}
}

// Close releases every dialed endpoint.
func (c *ChainClient) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for endpoint, client := range c.clients {
		client.Close()
		delete(c.clients, endpoint)
	}
}
