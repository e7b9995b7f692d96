package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	methods []string
	errs    []error
}

func (c *callLog) ObserveLedgerCall(method string, _ time.Duration, err error) {
	c.methods = append(c.methods, method)
	c.errs = append(c.errs, err)
}

func TestInstrumentReportsEveryCall(t *testing.T) {
	log := &callLog{}
	l := Instrument(NewMemory(), log)
	ctx := context.Background()

	_, err := l.LookupParticipant(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, l.RegisterParticipant(ctx, 1, "User1"))
	require.NoError(t, l.RegisterParticipant(ctx, 2, "User2"))
	_, err = l.LookupRelationship(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, l.CreateRelationship(ctx, 1, 2, 1))
	require.NoError(t, l.TransferUnit(ctx, 1, 2, 1))
	err = l.TransferUnit(ctx, 1, 2, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, []string{
		MethodUsers, MethodRegisterUser, MethodRegisterUser, MethodJointAccounts,
		MethodCreateAcc, MethodSendAmount, MethodSendAmount,
	}, log.methods)
	assert.ErrorIs(t, log.errs[len(log.errs)-1], ErrInsufficientBalance)
	assert.NoError(t, log.errs[0])
}

func TestInstrumentNilObserver(t *testing.T) {
	m := NewMemory()
	assert.Same(t, m, Instrument(m, nil))
}

func TestCallObserversFanOut(t *testing.T) {
	a, b := &callLog{}, &callLog{}
	CallObservers{a, b}.ObserveLedgerCall(MethodUsers, time.Millisecond, nil)
	assert.Equal(t, []string{MethodUsers}, a.methods)
	assert.Equal(t, []string{MethodUsers}, b.methods)
}
