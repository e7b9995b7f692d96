// Package txbuilder builds ledger contract transactions.
package txbuilder

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxParams holds parameters for building a transaction.
type TxParams struct {
	ChainID   *big.Int
	Nonce     uint64
	GasLimit  uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int // gas price for legacy transactions
	Legacy    bool     // node only accepts pre-EIP-1559 transactions
}

// Validate checks the parameters needed by every transaction type.
func (p TxParams) Validate() error {
	switch {
	case p.ChainID == nil || p.ChainID.Sign() <= 0:
		return errors.New("chain id must be positive")
	case p.GasLimit == 0:
		return errors.New("gas limit must be positive")
	case p.GasFeeCap == nil || p.GasFeeCap.Sign() < 0:
		return errors.New("gas fee cap must be non-negative")
	case !p.Legacy && p.GasTipCap == nil:
		return errors.New("gas tip cap is required for dynamic fee transactions")
	}
	return nil
}

// Build creates a zero-value transaction calling to, or deploying data as
// creation code when to is nil.
func Build(p TxParams, to *common.Address, data []byte) (*types.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var inner types.TxData
	if p.Legacy {
		inner = &types.LegacyTx{
			Nonce:    p.Nonce,
			GasPrice: p.GasFeeCap,
			Gas:      p.GasLimit,
			To:       to,
			Value:    new(big.Int),
			Data:     data,
		}
	} else {
		inner = &types.DynamicFeeTx{
			ChainID:   p.ChainID,
			Nonce:     p.Nonce,
			GasTipCap: p.GasTipCap,
			GasFeeCap: p.GasFeeCap,
			Gas:       p.GasLimit,
			To:        to,
			Value:     new(big.Int),
			Data:      data,
		}
	}
	return types.NewTx(inner), nil
}
