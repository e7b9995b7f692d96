// Package storage persists ledger contract deployments so repeated runs
// against the same chain reuse one contract instead of deploying again.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no deployment is cached for a key.
var ErrNotFound = errors.New("deployment not cached")

// Deployment is a cached contract deployment, scoped by chain ID and the
// keccak hash of the deployed creation bytecode.
type Deployment struct {
	ChainID    int64     `db:"chain_id" json:"chainId"`
	CodeHash   string    `db:"code_hash" json:"codeHash"`
	Address    string    `db:"address" json:"address"`
	TxHash     string    `db:"tx_hash" json:"txHash"`
	DeployedAt time.Time `db:"deployed_at" json:"deployedAt"`
}

// DeploymentCache stores and retrieves contract deployments.
type DeploymentCache interface {
	SaveDeployment(ctx context.Context, d Deployment) error
	LoadDeployment(ctx context.Context, chainID int64, codeHash string) (*Deployment, error)
	DeleteDeployment(ctx context.Context, chainID int64, codeHash string) error
	ListDeployments(ctx context.Context, chainID int64) ([]Deployment, error)
	Close() error
}
