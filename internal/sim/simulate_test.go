package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fundedPair(t *testing.T, n int, balance uint64) *countingLedger {
	t.Helper()
	l := newLedger(t, n)
	require.NoError(t, l.Memory.CreateRelationship(context.Background(), 1, 2, balance))
	return l
}

func TestSimulatorSeventyThreeOfHundred(t *testing.T) {
	l := fundedPair(t, 2, 73)
	rng := &scriptRand{ints: pairs([2]int{1, 2})}

	res, err := NewSimulator(l, SimulateConfig{Participants: 2, Rounds: 100, BatchSize: 100}, rng, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, res.Attempts)
	assert.Equal(t, 73, res.Successes)
	assert.Equal(t, 27, res.Insufficient)
	assert.Equal(t, []Sample{{Attempts: 100, Successes: 73, Ratio: 0.73}}, res.Series)
	assert.Equal(t, 73, l.transfers)
}

func TestSimulatorZeroBalanceSubmitsNothing(t *testing.T) {
	l := fundedPair(t, 2, 0)
	rng := &scriptRand{ints: pairs([2]int{1, 2})}
	rec := &recorder{}

	res, err := NewSimulator(l, SimulateConfig{Participants: 2, Rounds: 1, BatchSize: 100}, rng, rec, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, res.Successes)
	assert.Equal(t, 1, res.Insufficient)
	assert.Zero(t, l.transfers)
	require.Len(t, rec.attempts, 1)
	assert.Equal(t, OutcomeInsufficient, rec.attempts[0].Outcome)
	assert.Equal(t, []Sample{{Attempts: 1, Successes: 0, Ratio: 0}}, res.Series)
}

func TestSimulatorSkipsSelfPairs(t *testing.T) {
	l := fundedPair(t, 3, 10_000)
	// Every 20th round draws a self-pair: 50 of 1000 rounds are skipped.
	script := make([][2]int, 20)
	script[0] = [2]int{3, 3}
	for i := 1; i < 20; i++ {
		script[i] = [2]int{1, 2}
	}
	rng := &scriptRand{ints: pairs(script...)}

	res, err := NewSimulator(l, SimulateConfig{Participants: 3, Rounds: 1000, BatchSize: 100}, rng, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Rounds)
	assert.Equal(t, 50, res.Skipped)
	assert.Equal(t, 950, res.Attempts)
	assert.Equal(t, 950, res.Successes)

	require.Len(t, res.Series, 10)
	for i := 0; i < 9; i++ {
		assert.Equal(t, (i+1)*100, res.Series[i].Attempts)
	}
	assert.Equal(t, 950, res.Series[9].Attempts)
	assert.Equal(t, 1.0, res.Series[9].Ratio)
}

func TestSimulatorCountsErrors(t *testing.T) {
	l := fundedPair(t, 3, 100)
	boom := errors.New("eth_call timeout")
	l.lookupErr = func(a, b uint64) error {
		if a == 1 && b == 3 {
			return boom
		}
		return nil
	}
	rng := &scriptRand{ints: pairs([2]int{1, 2}, [2]int{1, 3}, [2]int{2, 3})}
	rec := &recorder{}

	res, err := NewSimulator(l, SimulateConfig{Participants: 3, Rounds: 30, BatchSize: 10}, rng, rec, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, res.Attempts)
	assert.Equal(t, 10, res.Successes)
	assert.Equal(t, 10, res.Failures)
	assert.Equal(t, 10, res.Insufficient)
	require.Len(t, res.Series, 3)
	assert.InDelta(t, 1.0/3, res.Series[2].Ratio, 1e-12)

	require.Len(t, rec.attempts, 30)
	assert.Equal(t, OutcomeError, rec.attempts[1].Outcome)
	assert.ErrorIs(t, rec.attempts[1].Err, boom)
	assert.Equal(t, 2, rec.attempts[1].Attempt)
}

func TestSimulatorTransferErrorCounted(t *testing.T) {
	l := fundedPair(t, 2, 5)
	l.transferErr = errors.New("transaction reverted")
	rng := &scriptRand{ints: pairs([2]int{1, 2})}

	res, err := NewSimulator(l, SimulateConfig{Participants: 2, Rounds: 3, BatchSize: 100}, rng, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, res.Failures)
	assert.Zero(t, res.Successes)
	assert.Equal(t, 3, l.transfers)
	assert.Equal(t, []Sample{{Attempts: 3, Successes: 0, Ratio: 0}}, res.Series)
}

func TestSimulatorCanceledKeepsPartialSeries(t *testing.T) {
	l := fundedPair(t, 2, 1_000)
	rng := &scriptRand{ints: pairs([2]int{1, 2})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{onAttempt: func(a TransferAttempt) {
		if a.Attempt == 150 {
			cancel()
		}
	}}

	res, err := NewSimulator(l, SimulateConfig{Participants: 2, Rounds: 1000, BatchSize: 100}, rng, rec, discardLogger()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 150, res.Attempts)
	require.Len(t, res.Series, 2)
	assert.Equal(t, 100, res.Series[0].Attempts)
	assert.Equal(t, 150, res.Series[1].Attempts)
	assert.ErrorIs(t, rec.finished[PhaseSimulate], context.Canceled)
}

func TestSimulatorNoAttempts(t *testing.T) {
	l := newLedger(t, 1)
	res, err := NewSimulator(l, SimulateConfig{Participants: 1, Rounds: 10}, &scriptRand{ints: []int{0}}, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Skipped)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, res.Series)
	assert.Zero(t, res.Ratio())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "insufficient", OutcomeInsufficient.String())
	assert.Equal(t, "error", OutcomeError.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
