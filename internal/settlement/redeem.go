package settlement

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract, holds the conditional outcome tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// Exchange contracts that need ERC1155 setApprovalForAll
	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	negRiskAdapter  = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	redeemGasLimit   = uint64(300_000)
	approvalGasLimit = uint64(80_000)
)

var (
	ctfABI     abi.ABI
	adapterABI abi.ABI
	erc1155ABI abi.ABI
	erc20ABI   abi.ABI
)

func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "redeemPositions",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "indexSets", "type": "uint256[]"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	adapterABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "redeemPositions",
			"type": "function",
			"inputs": [
				{"name": "_conditionId", "type": "bytes32"},
				{"name": "_amounts", "type": "uint256[]"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("adapter abi parse: " + err.Error())
	}

	erc1155ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "setApprovalForAll",
			"type": "function",
			"inputs": [
				{"name": "operator", "type": "address"},
				{"name": "approved", "type": "bool"}
			],
			"outputs": []
		},
		{
			"name": "isApprovedForAll",
			"type": "function",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "operator", "type": "address"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc1155 abi parse: " + err.Error())
	}

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// ErrReceiptTimeout means the transaction was sent but its receipt never
// arrived inside the window. The redeem may still land; callers must not
// retry blindly and must not treat this as a hard failure.
var ErrReceiptTimeout = errors.New("receipt not confirmed in time, tx may still land")

// Redeemer sends redeemPositions transactions for resolved markets. Standard
// markets go straight to the CTF contract; neg-risk markets go through the
// adapter, which owns their parent collection.
type Redeemer struct {
	Chain          *ChainClient
	Gas            *GasOracle
	Logger         *zap.Logger
	ReceiptTimeout time.Duration

	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewRedeemer derives the signing identity from privateKeyHex (with or
// without 0x prefix).
func NewRedeemer(chain *ChainClient, gas *GasOracle, privateKeyHex string, receiptTimeout time.Duration, logger *zap.Logger) (*Redeemer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Redeemer{
		Chain:          chain,
		Gas:            gas,
		Logger:         logger,
		ReceiptTimeout: receiptTimeout,
		privateKey:     key,
		address:        crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address is the wallet the redeemer signs with.
func (r *Redeemer) Address() common.Address {
	return r.address
}

// Redeem settles one resolved condition and returns the tx hash. amounts is
// only used on the neg-risk path, where the adapter needs the per-outcome
// token amounts in 6-decimal units.
func (r *Redeemer) Redeem(ctx context.Context, conditionID string, negRisk bool, amounts []*big.Int) (string, error) {
	condBytes, err := hexToBytes32(conditionID)
	if err != nil {
		return "", fmt.Errorf("condition id: %w", err)
	}

	var target common.Address
	var callData []byte
	if negRisk {
		target = common.HexToAddress(negRiskAdapter)
		callData, err = adapterABI.Pack("redeemPositions", condBytes, amounts)
	} else {
		target = common.HexToAddress(ctfAddress)
		callData, err = ctfABI.Pack("redeemPositions",
			common.HexToAddress(usdcEAddress),
			[32]byte{},
			condBytes,
			[]*big.Int{big.NewInt(1), big.NewInt(2)},
		)
	}
	if err != nil {
		return "", fmt.Errorf("pack redeem: %w", err)
	}

	backend, err := r.Chain.Acquire(ctx)
	if err != nil {
		return "", err
	}
	signed, err := r.signAndSend(ctx, backend, target, callData, redeemGasLimit)
	if err != nil {
		return "", err
	}
	txHash := signed.Hash()
	if r.Logger != nil {
		r.Logger.Info("redeem sent",
			zap.String("condition_id", conditionID),
			zap.Bool("neg_risk", negRisk),
			zap.String("tx", txHash.Hex()))
	}

	timeout := r.ReceiptTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	receiptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	receipt, err := waitForReceipt(receiptCtx, backend, txHash)
	if err != nil {
		return txHash.Hex(), ErrReceiptTimeout
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash.Hex(), fmt.Errorf("redeem reverted: %s", txHash.Hex())
	}
	return txHash.Hex(), nil
}

// EnsureApprovals sets the ERC1155 operator approvals and USDC.e allowances
// the exchange and adapter contracts require. Safe to call on every start;
// approvals already in place cost one eth_call each.
func (r *Redeemer) EnsureApprovals(ctx context.Context) error {
	backend, err := r.Chain.Acquire(ctx)
	if err != nil {
		return err
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	for _, operator := range []string{normalExchange, negRiskExchange, negRiskAdapter} {
		op := common.HexToAddress(operator)
		approved, err := r.isApprovedForAll(ctx, backend, ctfAddr, op)
		if err != nil {
			return fmt.Errorf("check erc1155 approval for %s: %w", operator, err)
		}
		if approved {
			continue
		}
		if r.Logger != nil {
			r.Logger.Info("setting erc1155 approval", zap.String("operator", operator))
		}
		callData, err := erc1155ABI.Pack("setApprovalForAll", op, true)
		if err != nil {
			return err
		}
		if err := r.sendAndConfirm(ctx, backend, ctfAddr, callData); err != nil {
			return fmt.Errorf("set erc1155 approval for %s: %w", operator, err)
		}
	}

	usdc := common.HexToAddress(usdcEAddress)
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	minAllowance := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000))
	for _, exchange := range []string{normalExchange, negRiskExchange} {
		spender := common.HexToAddress(exchange)
		allowance, err := r.erc20Allowance(ctx, backend, usdc, spender)
		if err != nil {
			return fmt.Errorf("check usdc allowance for %s: %w", exchange, err)
		}
		if allowance.Cmp(minAllowance) >= 0 {
			continue
		}
		if r.Logger != nil {
			r.Logger.Info("setting usdc approval", zap.String("exchange", exchange))
		}
		callData, err := erc20ABI.Pack("approve", spender, maxUint256)
		if err != nil {
			return err
		}
		if err := r.sendAndConfirm(ctx, backend, usdc, callData); err != nil {
			return fmt.Errorf("set usdc approval for %s: %w", exchange, err)
		}
	}
	return nil
}

func (r *Redeemer) signAndSend(ctx context.Context, backend Backend, to common.Address, callData []byte, gasLimit uint64) (*types.Transaction, error) {
	nonce, err := backend.PendingNonceAt(ctx, r.address)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := r.Gas.GasPrice(ctx, backend)
	if err != nil {
		return nil, err
	}
	estimate, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     r.address,
		To:       &to,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		estimate = gasLimit
		if r.Logger != nil {
			r.Logger.Warn("gas estimate failed, using limit",
				zap.Uint64("limit", gasLimit), zap.Error(err))
		}
	}
	estimate = estimate * 12 / 10

	tx := types.NewTransaction(nonce, to, big.NewInt(0), estimate, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(polygonChainID)), r.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	return signed, nil
}

func (r *Redeemer) sendAndConfirm(ctx context.Context, backend Backend, to common.Address, callData []byte) error {
	signed, err := r.signAndSend(ctx, backend, to, callData, approvalGasLimit)
	if err != nil {
		return err
	}
	confirmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	receipt, err := waitForReceipt(confirmCtx, backend, signed.Hash())
	if err != nil {
		return fmt.Errorf("wait receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("tx reverted: %s", signed.Hash().Hex())
	}
	return nil
}

func (r *Redeemer) isApprovedForAll(ctx context.Context, backend Backend, contract, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", r.address, operator)
	if err != nil {
		return false, err
	}
	result, err := backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return false, err
	}
	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil || len(vals) == 0 {
		return false, err
	}
	return vals[0].(bool), nil
}

func (r *Redeemer) erc20Allowance(ctx context.Context, backend Backend, token, spender common.Address) (*big.Int, error) {
	callData, err := erc20ABI.Pack("allowance", r.address, spender)
	if err != nil {
		return nil, err
	}
	result, err := backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: callData}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := erc20ABI.Unpack("allowance", result)
	if err != nil || len(vals) == 0 {
		return big.NewInt(0), err
	}
	return vals[0].(*big.Int), nil
}

func waitForReceipt(ctx context.Context, backend Backend, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := backend.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue
			}
			return receipt, nil
		}
	}
}

func hexToBytes32(s string) ([32]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return [32]byte{}, fmt.Errorf("expected 64 hex chars, got %d", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, err
	}
	var arr [32]byte
	copy(arr[:], raw)
	return arr, nil
}
