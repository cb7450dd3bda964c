package validation

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zivra/zivra-custody/pkg/types"
)

func validDraft() *types.TxDraft {
	return &types.TxDraft{
		ChainFamily: types.ChainFamilyAccount,
		To:          "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Value:       big.NewInt(1000),
		Token:       "ZIV",
	}
}

func TestValidateDraft(t *testing.T) {
	require.NoError(t, ValidateDraft(validDraft()))

	tests := []struct {
		name   string
		mutate func(*types.TxDraft)
	}{
		{"missing chain family", func(d *types.TxDraft) { d.ChainFamily = "" }},
		{"empty recipient", func(d *types.TxDraft) { d.To = "" }},
		{"malformed recipient", func(d *types.TxDraft) { d.To = "0x1234" }},
		{"zero address", func(d *types.TxDraft) { d.To = "0x0000000000000000000000000000000000000000" }},
		{"nil value", func(d *types.TxDraft) { d.Value = nil }},
		{"zero value", func(d *types.TxDraft) { d.Value = big.NewInt(0) }},
		{"negative value", func(d *types.TxDraft) { d.Value = big.NewInt(-5) }},
		{"missing token", func(d *types.TxDraft) { d.Token = "  " }},
		{"oversized calldata", func(d *types.TxDraft) { d.Data = make([]byte, MaxDataSize+1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(draft)
			assert.Error(t, ValidateDraft(draft))
		})
	}
}

func TestValidateDraftCanonicalizesToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ziv", "ZIV"},
		{" ZIV ", "ZIV"},
		{"zIv", "ZIV"},
	}

	for _, tt := range tests {
		draft := validDraft()
		draft.Token = tt.in
		require.NoError(t, ValidateDraft(draft))
		assert.Equal(t, tt.want, draft.Token)
	}
}

func TestValidateRecipientLedger(t *testing.T) {
	require.NoError(t, ValidateRecipient("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", types.ChainFamilyLedger))
	assert.Error(t, ValidateRecipient("1A1zP1eP5QGefi2DMPTfTL5SLmv7Divfff", types.ChainFamilyLedger))
	assert.Error(t, ValidateRecipient("0x742d35Cc6634C0532925a3b844Bc454e4438f44e", types.ChainFamilyLedger))
}

func TestValidateRecipientUnknownFamily(t *testing.T) {
	assert.Error(t, ValidateRecipient("0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "utxo"))
}
