package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateway-fm/jointsim/internal/ledger"
)

func TestParticipantName(t *testing.T) {
	assert.Equal(t, "User1", ParticipantName(1))
	assert.Equal(t, "User100", ParticipantName(100))
}

func TestProvisionerRegistersAll(t *testing.T) {
	ctx := context.Background()
	l := &countingLedger{Memory: ledger.NewMemory()}
	rec := &recorder{}

	res, err := NewProvisioner(l, 100, rec, discardLogger()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{Registered: 100}, res)
	assert.Equal(t, 100, l.Participants())
	assert.Equal(t, 100, l.registrations)
	assert.Equal(t, []Phase{PhaseProvision}, rec.started)

	for id := uint64(1); id <= 100; id++ {
		p, err := l.LookupParticipant(ctx, id)
		require.NoError(t, err)
		assert.True(t, p.Exists)
		assert.Equal(t, ParticipantName(id), p.Name)
	}
	p, err := l.LookupParticipant(ctx, 101)
	require.NoError(t, err)
	assert.False(t, p.Exists)
}

func TestProvisionerIdempotent(t *testing.T) {
	ctx := context.Background()
	l := &countingLedger{Memory: ledger.NewMemory()}
	for id := uint64(1); id <= 50; id++ {
		require.NoError(t, l.Memory.RegisterParticipant(ctx, id, ParticipantName(id)))
	}
	rec := &recorder{}

	res, err := NewProvisioner(l, 100, rec, discardLogger()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{Registered: 50, Existing: 50}, res)
	require.Len(t, rec.registered, 50)
	assert.Equal(t, uint64(51), rec.registered[0])
	assert.Equal(t, uint64(100), rec.registered[49])

	res, err = NewProvisioner(l, 100, nil, discardLogger()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{Existing: 100}, res)
	assert.Equal(t, 50, l.registrations)
	assert.Equal(t, 100, l.Participants())
}

func TestProvisionerErrorIsFatal(t *testing.T) {
	boom := errors.New("node unreachable")
	l := &countingLedger{Memory: ledger.NewMemory(), registerErr: boom}
	rec := &recorder{}

	res, err := NewProvisioner(l, 10, rec, discardLogger()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "register participant 1")
	assert.Zero(t, res.Registered)
	assert.ErrorIs(t, rec.finished[PhaseProvision], boom)
}

func TestProvisionerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &countingLedger{Memory: ledger.NewMemory()}
	_, err := NewProvisioner(l, 10, nil, discardLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, l.Participants())
}
