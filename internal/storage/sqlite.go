package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements DeploymentCache using SQLite.
type SQLiteStorage struct {
	db *sqlx.DB
}

var _ DeploymentCache = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (creating if needed) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL lets a second jointsim process read the cache while one deploys.
	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_foreign_keys=ON", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		chain_id INTEGER NOT NULL,
		code_hash TEXT NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT NOT NULL DEFAULT '',
		deployed_at DATETIME NOT NULL,
		PRIMARY KEY (chain_id, code_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_chain ON deployments(chain_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDeployment inserts or replaces the deployment for its (chain, code hash) key.
func (s *SQLiteStorage) SaveDeployment(ctx context.Context, d Deployment) error {
	if d.Address == "" {
		return errors.New("deployment address is required")
	}
	if d.DeployedAt.IsZero() {
		d.DeployedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO deployments (chain_id, code_hash, address, tx_hash, deployed_at)
		VALUES (:chain_id, :code_hash, :address, :tx_hash, :deployed_at)
		ON CONFLICT(chain_id, code_hash) DO UPDATE SET
			address = excluded.address,
			tx_hash = excluded.tx_hash,
			deployed_at = excluded.deployed_at
	`
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}
	return nil
}

// LoadDeployment returns ErrNotFound when nothing is cached for the key.
func (s *SQLiteStorage) LoadDeployment(ctx context.Context, chainID int64, codeHash string) (*Deployment, error) {
	var d Deployment
	query := `
		SELECT chain_id, code_hash, address, tx_hash, deployed_at
		FROM deployments WHERE chain_id = ? AND code_hash = ?
	`
	err := s.db.GetContext(ctx, &d, query, chainID, codeHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deployment: %w", err)
	}
	return &d, nil
}

// DeleteDeployment removes a cached deployment. Deleting a missing key is not an error.
func (s *SQLiteStorage) DeleteDeployment(ctx context.Context, chainID int64, codeHash string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM deployments WHERE chain_id = ? AND code_hash = ?`, chainID, codeHash)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}
	return nil
}

// ListDeployments returns every deployment cached for a chain, newest first.
func (s *SQLiteStorage) ListDeployments(ctx context.Context, chainID int64) ([]Deployment, error) {
	var out []Deployment
	query := `
		SELECT chain_id, code_hash, address, tx_hash, deployed_at
		FROM deployments WHERE chain_id = ?
		ORDER BY deployed_at DESC
	`
	if err := s.db.SelectContext(ctx, &out, query, chainID); err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
