// Package contract deploys the ledger contract and remembers where it lives.
package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/jointsim/internal/ledger"
	"github.com/gateway-fm/jointsim/internal/rpc"
	"github.com/gateway-fm/jointsim/internal/storage"
)

// DeployGasLimit is the gas limit for contract creation transactions.
const DeployGasLimit = 3_000_000

// ErrNoBytecode is returned when a deployment is needed but the artifact has no bytecode.
var ErrNoBytecode = errors.New("artifact has no creation bytecode")

// Waiter blocks until a transaction has a receipt.
type Waiter interface {
	Wait(ctx context.Context, hash common.Hash) (*rpc.TransactionReceipt, error)
}

// Result describes where the ledger contract lives.
type Result struct {
	Address common.Address
	TxHash  common.Hash // zero when a cached deployment was reused
	Reused  bool
}

// Deployer deploys artifacts and caches their addresses per chain.
type Deployer struct {
	client    rpc.Client
	submitter ledger.Submitter
	waiter    Waiter
	cache     storage.DeploymentCache
	gasLimit  uint64
	logger    *slog.Logger
}

// NewDeployer creates a deployer. cache may be nil, in which case every call deploys.
func NewDeployer(client rpc.Client, submitter ledger.Submitter, waiter Waiter, cache storage.DeploymentCache, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		client:    client,
		submitter: submitter,
		waiter:    waiter,
		cache:     cache,
		gasLimit:  DeployGasLimit,
		logger:    logger,
	}
}

// EnsureDeployed returns a live deployment of art on chainID, reusing a cached
// address when it still holds code and deploying otherwise.
func (d *Deployer) EnsureDeployed(ctx context.Context, art *ledger.Artifact, chainID int64) (Result, error) {
	codeHash := art.CodeHash()

	if d.cache != nil {
		if addr, ok := d.cachedAddress(ctx, chainID, codeHash); ok {
			d.logger.Info("reusing cached contract",
				slog.String("name", art.Name),
				slog.String("address", addr.Hex()),
			)
			return Result{Address: addr, Reused: true}, nil
		}
	}

	res, err := d.Deploy(ctx, art)
	if err != nil {
		return Result{}, err
	}

	if d.cache != nil {
		err := d.cache.SaveDeployment(ctx, storage.Deployment{
			ChainID:    chainID,
			CodeHash:   codeHash,
			Address:    res.Address.Hex(),
			TxHash:     res.TxHash.Hex(),
			DeployedAt: time.Now().UTC(),
		})
		if err != nil {
			// The contract is live; the next run will deploy again.
			d.logger.Warn("failed to cache deployment",
				slog.String("address", res.Address.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

// cachedAddress looks up a cached deployment and drops it if the chain no longer has its code.
func (d *Deployer) cachedAddress(ctx context.Context, chainID int64, codeHash string) (common.Address, bool) {
	cached, err := d.cache.LoadDeployment(ctx, chainID, codeHash)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			d.logger.Warn("failed to read deployment cache", slog.String("error", err.Error()))
		}
		return common.Address{}, false
	}

	addr := common.HexToAddress(cached.Address)
	exists, err := d.checkContractExists(ctx, addr)
	if err != nil {
		d.logger.Warn("failed to validate cached contract",
			slog.String("address", cached.Address),
			slog.String("error", err.Error()),
		)
		return common.Address{}, false
	}
	if !exists {
		d.logger.Info("cached contract no longer exists", slog.String("address", cached.Address))
		if err := d.cache.DeleteDeployment(ctx, chainID, codeHash); err != nil {
			d.logger.Warn("failed to drop stale deployment", slog.String("error", err.Error()))
		}
		return common.Address{}, false
	}
	return addr, true
}

// Deploy submits art's bytecode as a creation transaction and waits for it to be mined.
func (d *Deployer) Deploy(ctx context.Context, art *ledger.Artifact) (Result, error) {
	if !art.CanDeploy() {
		return Result{}, fmt.Errorf("deploy %s: %w", art.Name, ErrNoBytecode)
	}

	d.logger.Info("deploying contract",
		slog.String("name", art.Name),
		slog.String("from", d.submitter.From().Hex()),
	)

	hash, err := d.submitter.Submit(ctx, nil, art.Bytecode, d.gasLimit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send deployment of %s: %w", art.Name, err)
	}

	receipt, err := d.waiter.Wait(ctx, hash)
	if err != nil {
		return Result{}, fmt.Errorf("deployment of %s: %w", art.Name, err)
	}
	if receipt.Status != 1 {
		return Result{}, fmt.Errorf("deployment of %s (tx %s): %w", art.Name, hash.Hex(), ledger.ErrReverted)
	}
	if receipt.ContractAddress == "" || !common.IsHexAddress(receipt.ContractAddress) {
		return Result{}, fmt.Errorf("deployment of %s (tx %s): receipt has no contract address", art.Name, hash.Hex())
	}

	addr := common.HexToAddress(receipt.ContractAddress)
	exists, err := d.checkContractExists(ctx, addr)
	if err != nil {
		return Result{}, fmt.Errorf("failed to verify deployment of %s: %w", art.Name, err)
	}
	if !exists {
		return Result{}, fmt.Errorf("deployment of %s left no code at %s", art.Name, addr.Hex())
	}

	d.logger.Info("contract deployed",
		slog.String("name", art.Name),
		slog.String("address", addr.Hex()),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return Result{Address: addr, TxHash: hash}, nil
}

func (d *Deployer) checkContractExists(ctx context.Context, addr common.Address) (bool, error) {
	code, err := d.client.GetCode(ctx, addr.Hex())
	if err != nil {
		return false, err
	}
	return code != "" && code != "0x", nil
}
