package account

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateway-fm/jointsim/internal/rpc"
)

// devKeys are the well-known prefunded keys of anvil and hardhat dev chains.
var devKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
}

type nonceClient struct {
	rpc.Client
	nonce uint64
}

func (c *nonceClient) GetNonce(ctx context.Context, address string) (uint64, error) {
	return c.nonce, nil
}

func TestNewAccountFromHex(t *testing.T) {
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	for _, key := range []string{devKeys[0], "0x" + devKeys[0], " " + devKeys[0] + "\n"} {
		acc, err := NewAccountFromHex(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, acc.Address)
	}

	_, err := NewAccountFromHex("not-a-key")
	assert.Error(t, err)
}

func TestNonceAdvancesOnUse(t *testing.T) {
	acc, err := NewAccountFromHex(devKeys[0])
	require.NoError(t, err)

	assert.Equal(t, uint64(0), acc.Nonce())
	acc.Used(0)
	acc.Used(1)
	assert.Equal(t, uint64(2), acc.Nonce())

	acc.Used(0)
	assert.Equal(t, uint64(2), acc.Nonce(), "stale use is ignored")
}

func TestResyncOnlyMovesForward(t *testing.T) {
	acc, err := NewAccountFromHex(devKeys[1])
	require.NoError(t, err)
	acc.Used(9)

	require.NoError(t, acc.Resync(context.Background(), &nonceClient{nonce: 4}))
	assert.Equal(t, uint64(10), acc.Nonce())

	require.NoError(t, acc.Resync(context.Background(), &nonceClient{nonce: 17}))
	assert.Equal(t, uint64(17), acc.Nonce())
}

func TestSignRecoversSender(t *testing.T) {
	acc, err := NewAccountFromHex(devKeys[2])
	require.NoError(t, err)

	chainID := big.NewInt(31337)
	to := common.HexToAddress("0x5F516b3c4f0B4a495c6C455Fe92af68410a7E7EF")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     new(big.Int),
	})

	signed, raw, err := acc.Sign(tx, chainID)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, acc.Address, from)
}
