package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "jointsim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadDeployment(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveDeployment(ctx, Deployment{
		ChainID:    1337,
		CodeHash:   "0xaa",
		Address:    "0x0000000000000000000000000000000000000001",
		TxHash:     "0xbeef",
		DeployedAt: at,
	}))

	got, err := s.LoadDeployment(ctx, 1337, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", got.Address)
	assert.Equal(t, "0xbeef", got.TxHash)
	assert.True(t, at.Equal(got.DeployedAt))
}

func TestLoadDeploymentScopedByChainAndCode(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 1, CodeHash: "0xaa", Address: "0x01"}))

	_, err := s.LoadDeployment(ctx, 2, "0xaa")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadDeployment(ctx, 1, "0xbb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDeploymentUpserts(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 1, CodeHash: "0xaa", Address: "0x01"}))
	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 1, CodeHash: "0xaa", Address: "0x02"}))

	got, err := s.LoadDeployment(ctx, 1, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "0x02", got.Address)

	all, err := s.ListDeployments(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveDeploymentRequiresAddress(t *testing.T) {
	s := createTestStorage(t)
	assert.Error(t, s.SaveDeployment(context.Background(), Deployment{ChainID: 1, CodeHash: "0xaa"}))
}

func TestDeleteDeployment(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 1, CodeHash: "0xaa", Address: "0x01"}))
	require.NoError(t, s.DeleteDeployment(ctx, 1, "0xaa"))
	require.NoError(t, s.DeleteDeployment(ctx, 1, "0xaa"))

	_, err := s.LoadDeployment(ctx, 1, "0xaa")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDeploymentsNewestFirst(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 5, CodeHash: "0x01", Address: "0xa", DeployedAt: base}))
	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 5, CodeHash: "0x02", Address: "0xb", DeployedAt: base.Add(time.Hour)}))
	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 6, CodeHash: "0x03", Address: "0xc", DeployedAt: base}))

	got, err := s.ListDeployments(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0xb", got[0].Address)
	assert.Equal(t, "0xa", got[1].Address)
}

func TestReopenKeepsDeployments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jointsim.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDeployment(ctx, Deployment{ChainID: 1, CodeHash: "0xaa", Address: "0x01"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadDeployment(ctx, 1, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "0x01", got.Address)
}

func TestNewSQLiteStorageRequiresPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.Error(t, err)
}
