package sim

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gateway-fm/jointsim/internal/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptRand replays fixed draws. Float64 and ExpFloat64 repeat their last value
// once exhausted; IntN cycles through ints.
type scriptRand struct {
	floats []float64
	ints   []int
	exps   []float64
	fi, ii int
	ei     int
}

func (r *scriptRand) Float64() float64 {
	v := r.floats[min(r.fi, len(r.floats)-1)]
	r.fi++
	return v
}

func (r *scriptRand) IntN(n int) int {
	v := r.ints[r.ii%len(r.ints)]
	r.ii++
	if v >= n {
		panic("scripted draw out of range")
	}
	return v
}

func (r *scriptRand) ExpFloat64() float64 {
	v := r.exps[min(r.ei, len(r.exps)-1)]
	r.ei++
	return v
}

// pairs scripts IntN so that each round draws the given (from, to) ids.
func pairs(p ...[2]int) []int {
	ints := make([]int, 0, 2*len(p))
	for _, pr := range p {
		ints = append(ints, pr[0]-1, pr[1]-1)
	}
	return ints
}

// countingLedger wraps a Memory ledger, counts mutations and injects lookup errors.
type countingLedger struct {
	*ledger.Memory
	registrations int
	creations     int
	transfers     int
	lookupErr     func(a, b uint64) error
	registerErr   error
	transferErr   error
}

func (c *countingLedger) RegisterParticipant(ctx context.Context, id uint64, name string) error {
	if c.registerErr != nil {
		return c.registerErr
	}
	c.registrations++
	return c.Memory.RegisterParticipant(ctx, id, name)
}

func (c *countingLedger) CreateRelationship(ctx context.Context, a, b, balance uint64) error {
	c.creations++
	return c.Memory.CreateRelationship(ctx, a, b, balance)
}

func (c *countingLedger) LookupRelationship(ctx context.Context, a, b uint64) (ledger.Relationship, error) {
	if c.lookupErr != nil {
		if err := c.lookupErr(a, b); err != nil {
			return ledger.Relationship{}, err
		}
	}
	return c.Memory.LookupRelationship(ctx, a, b)
}

func (c *countingLedger) TransferUnit(ctx context.Context, from, to, amount uint64) error {
	c.transfers++
	if c.transferErr != nil {
		return c.transferErr
	}
	return c.Memory.TransferUnit(ctx, from, to, amount)
}

func newLedger(t *testing.T, n int) *countingLedger {
	t.Helper()
	m := ledger.NewMemory()
	for id := uint64(1); id <= uint64(n); id++ {
		require.NoError(t, m.RegisterParticipant(context.Background(), id, ParticipantName(id)))
	}
	return &countingLedger{Memory: m}
}

// recorder is an Observer that keeps every event.
type recorder struct {
	NopObserver
	started    []Phase
	finished   map[Phase]error
	registered []uint64
	created    int
	attempts   []TransferAttempt
	samples    []Sample
	onAttempt  func(TransferAttempt)
}

func (r *recorder) PhaseStarted(p Phase) { r.started = append(r.started, p) }

func (r *recorder) PhaseFinished(p Phase, err error) {
	if r.finished == nil {
		r.finished = make(map[Phase]error)
	}
	r.finished[p] = err
}

func (r *recorder) ParticipantRegistered(id uint64) { r.registered = append(r.registered, id) }

func (r *recorder) RelationshipCreated(_, _, _ uint64) { r.created++ }

func (r *recorder) TransferAttempted(a TransferAttempt) {
	r.attempts = append(r.attempts, a)
	if r.onAttempt != nil {
		r.onAttempt(a)
	}
}

func (r *recorder) RatioSampled(s Sample) { r.samples = append(r.samples, s) }
