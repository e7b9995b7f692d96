// Package account holds the key that signs ledger transactions.
package account

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gateway-fm/jointsim/internal/rpc"
)

// Account is a signing key and the next nonce it will use.
type Account struct {
	Address common.Address
	key     *ecdsa.PrivateKey

	mu    sync.Mutex
	nonce uint64
}

// NewAccount creates an account from a private key.
func NewAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// NewAccountFromHex creates an account from a hex-encoded private key.
// Surrounding whitespace and a leading 0x are accepted.
func NewAccountFromHex(hexKey string) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewAccount(key), nil
}

// Sign signs tx for chainID and returns it with its binary encoding.
func (a *Account) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, []byte, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tx: %w", err)
	}
	return signed, raw, nil
}

// Nonce returns the nonce the next transaction should use.
func (a *Account) Nonce() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nonce
}

// Used records that nonce was accepted by the node. Stale calls are ignored.
func (a *Account) Used(nonce uint64) {
	a.mu.Lock()
	if nonce >= a.nonce {
		a.nonce = nonce + 1
	}
	a.mu.Unlock()
}

// Resync adopts the node's pending nonce when it is ahead of the local one.
func (a *Account) Resync(ctx context.Context, client rpc.Client) error {
	nonce, err := client.GetNonce(ctx, a.Address.Hex())
	if err != nil {
		return err
	}
	a.mu.Lock()
	if nonce > a.nonce {
		a.nonce = nonce
	}
	a.mu.Unlock()
	return nil
}
