package chainrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

// largeAmountThreshold triggers a risk warning during simulation:
// transfers of 1000 native units or more are flagged for review.
var largeAmountThreshold = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))

// EVMClient serves the account chain family over an Ethereum-compatible
// JSON-RPC endpoint.
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
}

// NewEVMClient dials the RPC endpoint and auto-detects the chain ID
func NewEVMClient(rpcURL string) (*EVMClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &EVMClient{client: client, chainID: chainID}, nil
}

// Family returns the account chain family
func (c *EVMClient) Family() string {
	return types.ChainFamilyAccount
}

// NativeToken returns the fee denomination symbol
func (c *EVMClient) NativeToken() string {
	return "ETH"
}

// Simulate estimates gas for the draft and prices it at the current
// suggested fee rate. A 20% buffer is added to the gas estimate.
func (c *EVMClient) Simulate(ctx context.Context, draft *types.TxDraft) (*Simulation, error) {
	if !common.IsHexAddress(draft.To) {
		return nil, apperrors.SimulationFailed(fmt.Sprintf("invalid recipient address %q", draft.To))
	}

	toAddr := common.HexToAddress(draft.To)
	msg := ethereum.CallMsg{
		From:  common.HexToAddress(draft.From),
		To:    &toAddr,
		Value: draft.Value,
		Data:  draft.Data,
	}

	gas, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, apperrors.SimulationFailed(err.Error())
	}
	gas = gas * 120 / 100

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperrors.SimulationFailed(err.Error())
	}

	sim := &Simulation{
		GasUnits:   gas,
		NativeCost: new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice),
	}
	if draft.Value != nil && draft.Value.Cmp(largeAmountThreshold) >= 0 {
		sim.Warnings = append(sim.Warnings, "abnormally large transfer amount")
	}
	return sim, nil
}

// SuggestFeeRate returns the suggested gas price
func (c *EVMClient) SuggestFeeRate(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// GetBalance returns the balance of an address in wei
func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Prepare assembles an unsigned legacy transaction for the draft. The
// payload is the EIP-155 signature preimage, so hashing it with keccak
// yields exactly the digest the signer must sign.
func (c *EVMClient) Prepare(ctx context.Context, draft *types.TxDraft) (*PreparedTx, error) {
	if !common.IsHexAddress(draft.To) {
		return nil, apperrors.SimulationFailed(fmt.Sprintf("invalid recipient address %q", draft.To))
	}

	from := common.HexToAddress(draft.From)
	to := common.HexToAddress(draft.To)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: draft.Value,
		Data:  draft.Data,
	})
	if err != nil {
		return nil, apperrors.SimulationFailed(err.Error())
	}
	gas = gas * 120 / 100

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    draft.Value,
		Data:     draft.Data,
	})

	payload, err := rlp.EncodeToBytes([]any{
		nonce, gasPrice, gas, to, draft.Value, draft.Data,
		c.chainID, uint(0), uint(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode signing payload: %w", err)
	}

	return &PreparedTx{Payload: payload, raw: tx}, nil
}

// Broadcast attaches the 65-byte recoverable signature and submits the
// prepared transaction. Never retried; a failure surfaces to the caller.
func (c *EVMClient) Broadcast(ctx context.Context, prepared *PreparedTx, signature []byte) (string, error) {
	tx, ok := prepared.raw.(*ethtypes.Transaction)
	if !ok {
		return "", apperrors.BroadcastFailed("prepared transaction is not an EVM transaction")
	}

	signer := ethtypes.NewEIP155Signer(c.chainID)
	signed, err := tx.WithSignature(signer, signature)
	if err != nil {
		return "", apperrors.BroadcastFailed(fmt.Sprintf("failed to attach signature: %v", err))
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", apperrors.BroadcastFailed(err.Error())
	}
	return signed.Hash().Hex(), nil
}

// GetReceipt looks up the transaction receipt by hash. A transaction not
// yet included returns Found=false with no error.
func (c *EVMClient) GetReceipt(ctx context.Context, chainRef string) (*Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(chainRef))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &Receipt{Found: false}, nil
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return &Receipt{
		Found:   true,
		Success: receipt.Status == ethtypes.ReceiptStatusSuccessful,
		Height:  receipt.BlockNumber.Uint64(),
	}, nil
}

// CurrentHeight returns the chain tip height
func (c *EVMClient) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return height, nil
}

// Close closes the underlying RPC connection
func (c *EVMClient) Close() {
	c.client.Close()
}
