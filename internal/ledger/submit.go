package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gateway-fm/jointsim/internal/account"
	"github.com/gateway-fm/jointsim/internal/rpc"
	"github.com/gateway-fm/jointsim/internal/txbuilder"
)

// Submitter sends a transaction and returns its hash without waiting for inclusion.
// A nil to deploys data as contract creation code.
type Submitter interface {
	Submit(ctx context.Context, to *common.Address, data []byte, gasLimit uint64) (common.Hash, error)
	From() common.Address
}

// Fees holds the resolved fee parameters for submitted transactions.
type Fees struct {
	Legacy    bool
	GasTipCap *big.Int
	GasFeeCap *big.Int // gas price for legacy transactions
}

// ResolveFees fills zero tip/fee caps from the node's gas price.
// Dynamic fee transactions get a fee cap of twice the gas price plus the tip.
func ResolveFees(ctx context.Context, client rpc.Client, legacy bool, tipCap, feeCap uint64) (Fees, error) {
	fees := Fees{
		Legacy:    legacy,
		GasTipCap: new(big.Int).SetUint64(tipCap),
		GasFeeCap: new(big.Int).SetUint64(feeCap),
	}
	if feeCap > 0 {
		return fees, nil
	}

	price, err := client.GetGasPrice(ctx)
	if err != nil {
		return Fees{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	gasPrice := new(big.Int).SetUint64(price)
	if legacy {
		fees.GasFeeCap = gasPrice
		return fees, nil
	}
	if tipCap == 0 {
		fees.GasTipCap = big.NewInt(1_000_000_000) // 1 gwei
	}
	fees.GasFeeCap = new(big.Int).Add(new(big.Int).Mul(gasPrice, big.NewInt(2)), fees.GasTipCap)
	return fees, nil
}

// SignedSubmitter signs transactions locally and sends them with eth_sendRawTransaction.
// Submissions are serialized so nonces are used in order.
type SignedSubmitter struct {
	client  rpc.Client
	account *account.Account
	chainID *big.Int
	fees    Fees
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewSignedSubmitter creates a submitter for a locally held key.
// The account nonce is synced from the node before the first submission.
func NewSignedSubmitter(ctx context.Context, client rpc.Client, acc *account.Account, chainID *big.Int, fees Fees, logger *slog.Logger) (*SignedSubmitter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := acc.Resync(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to fetch nonce for %s: %w", acc.Address.Hex(), err)
	}
	return &SignedSubmitter{
		client:  client,
		account: acc,
		chainID: chainID,
		fees:    fees,
		logger:  logger,
	}, nil
}

// From implements Submitter.
func (s *SignedSubmitter) From() common.Address {
	return s.account.Address
}

// Submit implements Submitter.
func (s *SignedSubmitter) Submit(ctx context.Context, to *common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.account.Nonce()
	tx, err := txbuilder.Build(txbuilder.TxParams{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasLimit:  gasLimit,
		GasTipCap: s.fees.GasTipCap,
		GasFeeCap: s.fees.GasFeeCap,
		Legacy:    s.fees.Legacy,
	}, to, data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, raw, err := s.account.Sign(tx, s.chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := s.client.SendRawTransaction(ctx, raw); err != nil {
		if isNonceError(err) {
			s.logger.Warn("nonce rejected, resyncing",
				slog.Uint64("nonce", nonce),
				slog.String("error", err.Error()),
			)
			if syncErr := s.account.Resync(ctx, s.client); syncErr != nil {
				return common.Hash{}, errors.Join(err, syncErr)
			}
		}
		return common.Hash{}, err
	}

	s.account.Used(nonce)
	return signed.Hash(), nil
}

func isNonceError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") || strings.Contains(msg, "nonce too high")
}

// UnlockedSubmitter lets the node sign with one of its unlocked accounts (eth_sendTransaction).
type UnlockedSubmitter struct {
	client   rpc.Client
	from     common.Address
	gasPrice *big.Int
}

// NewUnlockedSubmitter uses the first account returned by eth_accounts.
func NewUnlockedSubmitter(ctx context.Context, client rpc.Client, gasPrice *big.Int) (*UnlockedSubmitter, error) {
	accounts, err := client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list node accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("node has no unlocked accounts")
	}
	return &UnlockedSubmitter{
		client:   client,
		from:     accounts[0],
		gasPrice: gasPrice,
	}, nil
}

// From implements Submitter.
func (s *UnlockedSubmitter) From() common.Address {
	return s.from
}

// Submit implements Submitter.
func (s *UnlockedSubmitter) Submit(ctx context.Context, to *common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	args := rpc.TransactionArgs{
		From: s.from,
		To:   to,
		Gas:  hexutil.Uint64(gasLimit),
		Data: data,
	}
	if s.gasPrice != nil && s.gasPrice.Sign() > 0 {
		args.GasPrice = (*hexutil.Big)(s.gasPrice)
	}
	return s.client.SendTransaction(ctx, args)
}

// ReceiptWaiter polls for transaction receipts with exponential backoff.
type ReceiptWaiter struct {
	client         rpc.Client
	initialBackoff time.Duration
	maxBackoff     time.Duration
	timeout        time.Duration
}

// NewReceiptWaiter creates a waiter. Instant-mining nodes are polled from a shorter interval.
func NewReceiptWaiter(client rpc.Client, timeout time.Duration, instantMining bool) *ReceiptWaiter {
	initial := 200 * time.Millisecond
	if instantMining {
		initial = 20 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ReceiptWaiter{
		client:         client,
		initialBackoff: initial,
		maxBackoff:     2 * time.Second,
		timeout:        timeout,
	}
}

// Wait blocks until hash has a receipt, the timeout elapses, or ctx is done.
// Transient lookup errors are retried until the deadline.
func (w *ReceiptWaiter) Wait(ctx context.Context, hash common.Hash) (*rpc.TransactionReceipt, error) {
	backoff := w.initialBackoff
	deadline := time.Now().Add(w.timeout)
	var lastErr error

	for {
		receipt, err := w.client.GetTransactionReceipt(ctx, hash.Hex())
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil {
			lastErr = err
		}

		if !time.Now().Add(backoff).Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.maxBackoff)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrConfirmationTimeout, hash.Hex(), lastErr)
	}
	return nil, fmt.Errorf("%w for %s", ErrConfirmationTimeout, hash.Hex())
}
