package txbuilder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress("0x5F516b3c4f0B4a495c6C455Fe92af68410a7E7EF")

func testParams(legacy bool) TxParams {
	return TxParams{
		ChainID:   big.NewInt(1337),
		Nonce:     7,
		GasLimit:  300000,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(20_000_000_000),
		Legacy:    legacy,
	}
}

func TestBuildCallTx(t *testing.T) {
	tests := []struct {
		name     string
		legacy   bool
		wantType uint8
	}{
		{name: "dynamic fee", legacy: false, wantType: types.DynamicFeeTxType},
		{name: "legacy", legacy: true, wantType: types.LegacyTxType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte{0xde, 0xad, 0xbe, 0xef}
			tx, err := Build(testParams(tt.legacy), &testContract, data)
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, tx.Type())
			require.NotNil(t, tx.To())
			assert.Equal(t, testContract, *tx.To())
			assert.Equal(t, uint64(7), tx.Nonce())
			assert.Equal(t, uint64(300000), tx.Gas())
			assert.Zero(t, tx.Value().Sign())
			assert.Equal(t, data, tx.Data())
			if tt.legacy {
				assert.Equal(t, 0, tx.GasPrice().Cmp(big.NewInt(20_000_000_000)), "legacy gas price is the fee cap")
			} else {
				assert.Equal(t, 0, tx.ChainId().Cmp(big.NewInt(1337)))
			}
		})
	}
}

func TestBuildDeployTx(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		tx, err := Build(testParams(legacy), nil, []byte{0x60, 0x80})
		require.NoError(t, err)
		assert.Nil(t, tx.To(), "deployments have no recipient")
	}
}

func TestTxParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *TxParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *TxParams) {}},
		{name: "nil chain id", mutate: func(p *TxParams) { p.ChainID = nil }, wantErr: true},
		{name: "zero chain id", mutate: func(p *TxParams) { p.ChainID = big.NewInt(0) }, wantErr: true},
		{name: "zero gas", mutate: func(p *TxParams) { p.GasLimit = 0 }, wantErr: true},
		{name: "missing fee cap", mutate: func(p *TxParams) { p.GasFeeCap = nil }, wantErr: true},
		{name: "missing tip for dynamic", mutate: func(p *TxParams) { p.GasTipCap = nil }, wantErr: true},
		{name: "missing tip for legacy", mutate: func(p *TxParams) { p.GasTipCap = nil; p.Legacy = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(false)
			tt.mutate(&p)
			if tt.wantErr {
				assert.Error(t, p.Validate())
			} else {
				assert.NoError(t, p.Validate())
			}
		})
	}
}
