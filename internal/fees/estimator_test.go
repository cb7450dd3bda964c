package fees

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/chainrpc"
)

type fakeChainClient struct {
	family   string
	native   string
	gasUnits uint64
	cost     *big.Int
	feeRate  *big.Int
	warnings []string
}

func (c *fakeChainClient) Family() string      { return c.family }
func (c *fakeChainClient) NativeToken() string { return c.native }

func (c *fakeChainClient) Simulate(context.Context, *types.TxDraft) (*chainrpc.Simulation, error) {
	return &chainrpc.Simulation{GasUnits: c.gasUnits, NativeCost: c.cost, Warnings: c.warnings}, nil
}

func (c *fakeChainClient) SuggestFeeRate(context.Context) (*big.Int, error) {
	return c.feeRate, nil
}

func (c *fakeChainClient) GetBalance(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *fakeChainClient) Prepare(context.Context, *types.TxDraft) (*chainrpc.PreparedTx, error) {
	return nil, nil
}

func (c *fakeChainClient) Broadcast(context.Context, *chainrpc.PreparedTx, []byte) (string, error) {
	return "", nil
}

func (c *fakeChainClient) GetReceipt(context.Context, string) (*chainrpc.Receipt, error) {
	return &chainrpc.Receipt{}, nil
}

func (c *fakeChainClient) CurrentHeight(context.Context) (uint64, error) { return 0, nil }

func newTestEstimator(client chainrpc.Client) *Estimator {
	source := NewStaticPriceSource(map[string]*big.Rat{
		"ETH":  big.NewRat(3000, 1),
		"ZIV":  big.NewRat(1, 20), // 0.05 USD
		"USDC": big.NewRat(1, 1),
		"USDT": big.NewRat(1, 1),
	})
	return NewEstimator(chainrpc.NewRegistry(client), NewPriceCache(source, time.Minute))
}

func TestEstimateFees(t *testing.T) {
	client := &fakeChainClient{
		family:   types.ChainFamilyAccount,
		native:   "ETH",
		gasUnits: 21000,
		cost:     big.NewInt(100),
	}
	estimator := newTestEstimator(client)

	draft := &types.TxDraft{
		ChainFamily: types.ChainFamilyAccount,
		From:        "0x1",
		To:          "0x2",
		Value:       big.NewInt(500),
		Token:       "ZIV",
	}

	estimate, err := estimator.EstimateFees(context.Background(), draft, "")
	require.NoError(t, err)

	assert.Equal(t, uint64(21000), estimate.GasUnits)
	assert.Equal(t, big.NewInt(100), estimate.NativeCost)
	assert.Equal(t, "ETH", estimate.NativeToken)

	byToken := make(map[string]*big.Int)
	for _, alt := range estimate.Alternatives {
		byToken[alt.Token] = alt.Cost
	}

	// 100 native units at 3000 USD each = 300000 USD-worth;
	// ZIV at 0.05 USD gives 6000000, USDC at 1 USD gives 300000.
	require.Contains(t, byToken, "ZIV")
	assert.Equal(t, big.NewInt(6_000_000), byToken["ZIV"])
	require.Contains(t, byToken, "USDC")
	assert.Equal(t, big.NewInt(300_000), byToken["USDC"])
}

func TestEstimateFeesSettlementToken(t *testing.T) {
	client := &fakeChainClient{
		family:   types.ChainFamilyAccount,
		native:   "ETH",
		gasUnits: 21000,
		cost:     big.NewInt(100),
	}

	source := NewStaticPriceSource(map[string]*big.Rat{
		"ETH":  big.NewRat(3000, 1),
		"BTC":  big.NewRat(60000, 1),
		"ZIV":  big.NewRat(1, 20),
		"USDC": big.NewRat(1, 1),
		"USDT": big.NewRat(1, 1),
	})
	estimator := NewEstimator(chainrpc.NewRegistry(client), NewPriceCache(source, time.Minute))

	draft := &types.TxDraft{ChainFamily: types.ChainFamilyAccount, To: "0x2", Value: big.NewInt(1), Token: "ZIV"}

	estimate, err := estimator.EstimateFees(context.Background(), draft, "btc")
	require.NoError(t, err)

	byToken := make(map[string]*big.Int)
	for _, alt := range estimate.Alternatives {
		byToken[alt.Token] = alt.Cost
	}
	require.Contains(t, byToken, "BTC")
	assert.Equal(t, big.NewInt(5), byToken["BTC"], "100 ETH-units / 20 price ratio")
}

func TestEstimateFeesUnsupportedFamily(t *testing.T) {
	estimator := newTestEstimator(&fakeChainClient{family: types.ChainFamilyAccount, native: "ETH", cost: big.NewInt(1)})

	draft := &types.TxDraft{ChainFamily: "ledger", To: "1abc", Value: big.NewInt(1)}
	_, err := estimator.EstimateFees(context.Background(), draft, "")
	require.Error(t, err)

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeChainNotSupported, appErr.Code)
}

func TestGetCurrentFeeRate(t *testing.T) {
	client := &fakeChainClient{family: types.ChainFamilyAccount, native: "ETH", feeRate: big.NewInt(100)}
	estimator := newTestEstimator(client)

	rates, err := estimator.GetCurrentFeeRate(context.Background(), types.ChainFamilyAccount)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(100), rates.Standard)
	assert.Equal(t, big.NewInt(150), rates.Fast)
	assert.Equal(t, big.NewInt(200), rates.Instant)
}

func TestEstimateWarningsPropagate(t *testing.T) {
	client := &fakeChainClient{
		family:   types.ChainFamilyAccount,
		native:   "ETH",
		cost:     big.NewInt(1),
		warnings: []string{"abnormally large transfer amount"},
	}
	estimator := newTestEstimator(client)

	draft := &types.TxDraft{ChainFamily: types.ChainFamilyAccount, To: "0x2", Value: big.NewInt(1)}
	estimate, err := estimator.EstimateFees(context.Background(), draft, "")
	require.NoError(t, err)
	assert.Contains(t, estimate.Warnings, "abnormally large transfer amount")
}
