// Package status keeps a snapshot of the running simulation for the status API.
package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gateway-fm/jointsim/internal/ledger"
	"github.com/gateway-fm/jointsim/internal/metrics"
	"github.com/gateway-fm/jointsim/internal/report"
	"github.com/gateway-fm/jointsim/internal/sim"
	"github.com/gateway-fm/jointsim/pkg/types"
)

// Tracker is a sim.Observer and ledger.CallObserver that builds the status snapshot.
// Events arrive on the driver goroutine; readers take snapshots from any goroutine.
type Tracker struct {
	mu      sync.RWMutex
	state   types.RunMetrics
	series  []types.SeriesPoint
	latency *metrics.LatencyStats
	now     func() time.Time
}

var (
	_ sim.Observer        = (*Tracker)(nil)
	_ ledger.CallObserver = (*Tracker)(nil)
)

// NewTracker creates a tracker for a new run with a fresh run id.
func NewTracker(cfg types.RunConfig) *Tracker {
	return newTracker(cfg, time.Now)
}

func newTracker(cfg types.RunConfig, now func() time.Time) *Tracker {
	return &Tracker{
		state: types.RunMetrics{
			RunID:     uuid.NewString(),
			Status:    types.StatusIdle,
			StartedAt: now(),
			Config:    cfg,
		},
		latency: metrics.NewLatencyStats(),
		now:     now,
	}
}

// RunID returns the run identifier.
func (t *Tracker) RunID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.RunID
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() types.RunMetrics {
	t.mu.RLock()
	s := t.state
	t.mu.RUnlock()

	s.ElapsedMs = t.now().Sub(s.StartedAt).Milliseconds()
	if s.LastSample != nil {
		last := *s.LastSample
		s.LastSample = &last
	}
	s.Latency = t.latency.Snapshot()
	return s
}

// Series returns a copy of the success-ratio samples so far.
func (t *Tracker) Series() types.SeriesResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	points := make([]types.SeriesPoint, len(t.series))
	copy(points, t.series)
	return types.SeriesResponse{RunID: t.state.RunID, Points: points}
}

// Finish records the terminal state of the run.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case err == nil:
		t.state.Status = types.StatusCompleted
	case errors.Is(err, context.Canceled):
		t.state.Status = types.StatusCanceled
		t.state.Error = err.Error()
	default:
		t.state.Status = types.StatusError
		t.state.Error = err.Error()
	}
}

// PhaseStarted implements sim.Observer.
func (t *Tracker) PhaseStarted(phase sim.Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch phase {
	case sim.PhaseProvision:
		t.state.Status = types.StatusProvisioning
	case sim.PhaseFabricate:
		t.state.Status = types.StatusFabricating
	case sim.PhaseSimulate:
		t.state.Status = types.StatusSimulating
	}
}

// PhaseFinished implements sim.Observer. Only failures change the status here;
// the caller marks completion with Finish.
func (t *Tracker) PhaseFinished(_ sim.Phase, err error) {
	if err == nil {
		return
	}
	t.Finish(err)
}

// ParticipantRegistered implements sim.Observer.
func (t *Tracker) ParticipantRegistered(uint64) {
	t.mu.Lock()
	t.state.ParticipantsRegistered++
	t.mu.Unlock()
}

// RelationshipCreated implements sim.Observer.
func (t *Tracker) RelationshipCreated(_, _, balance uint64) {
	t.mu.Lock()
	t.state.RelationshipsCreated++
	t.state.BalanceCreated += balance
	t.mu.Unlock()
}

// TransferAttempted implements sim.Observer.
func (t *Tracker) TransferAttempted(a sim.TransferAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Attempts++
	switch a.Outcome {
	case sim.OutcomeSuccess:
		t.state.Successes++
	case sim.OutcomeInsufficient:
		t.state.Insufficient++
	case sim.OutcomeError:
		t.state.Failures++
	}
	t.state.Ratio = float64(t.state.Successes) / float64(t.state.Attempts)
}

// RatioSampled implements sim.Observer.
func (t *Tracker) RatioSampled(s sim.Sample) {
	p := types.SeriesPoint{
		Attempts:   s.Attempts,
		Successes:  s.Successes,
		Ratio:      s.Ratio,
		RatioExact: report.Ratio(s).String(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.series = append(t.series, p)
	t.state.LastSample = &p
}

// ObserveLedgerCall implements ledger.CallObserver.
func (t *Tracker) ObserveLedgerCall(_ string, d time.Duration, _ error) {
	t.latency.Add(float64(d.Microseconds()) / 1000)
}
