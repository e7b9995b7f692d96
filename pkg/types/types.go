// Package types contains public API types for the jointsim status server.
// These types form the external interface and must remain backwards-compatible.
package types

import "time"

// RunStatus represents the current state of a simulation run.
type RunStatus string

const (
	StatusIdle         RunStatus = "idle"
	StatusProvisioning RunStatus = "provisioning"
	StatusFabricating  RunStatus = "fabricating"
	StatusSimulating   RunStatus = "simulating"
	StatusCompleted    RunStatus = "completed"
	StatusCanceled     RunStatus = "canceled"
	StatusError        RunStatus = "error"
)

// Terminal reports whether the run has ended.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusError
}

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int             `json:"count"`
	Min     float64         `json:"min"`     // ms
	Max     float64         `json:"max"`     // ms
	Avg     float64         `json:"avg"`     // ms
	P50     float64         `json:"p50"`     // ms
	P90     float64         `json:"p90"`     // ms
	P99     float64         `json:"p99"`     // ms
	Buckets []LatencyBucket `json:"buckets"` // histogram
}

// RunConfig echoes the parameters a run was started with.
type RunConfig struct {
	Backend      string  `json:"backend"`
	NodeProfile  string  `json:"nodeProfile,omitempty"`
	Contract     string  `json:"contract,omitempty"`
	Participants int     `json:"participants"`
	Probability  float64 `json:"probability"`
	MeanBalance  float64 `json:"meanBalance"`
	Rounds       int     `json:"rounds"`
	BatchSize    int     `json:"batchSize"`
	Seed         uint64  `json:"seed"`
}

// SeriesPoint is one sample of the success-ratio series.
type SeriesPoint struct {
	Attempts   int     `json:"attempts"`
	Successes  int     `json:"successes"`
	Ratio      float64 `json:"ratio"`
	RatioExact string  `json:"ratioExact"` // decimal string, six places
}

// RunMetrics holds the live state of a run.
type RunMetrics struct {
	RunID     string    `json:"runId"`
	Status    RunStatus `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	ElapsedMs int64     `json:"elapsedMs"`
	Config    RunConfig `json:"config"`
	Error     string    `json:"error,omitempty"`

	// Provisioning and fabrication progress
	ParticipantsRegistered int    `json:"participantsRegistered"`
	RelationshipsCreated   int    `json:"relationshipsCreated"`
	BalanceCreated         uint64 `json:"balanceCreated"` // sum of initial balances

	// Simulation counters
	Attempts     int          `json:"attempts"`
	Successes    int          `json:"successes"`
	Insufficient int          `json:"insufficient"`
	Failures     int          `json:"failures"`
	Ratio        float64      `json:"ratio"`
	LastSample   *SeriesPoint `json:"lastSample,omitempty"`

	// Ledger call latency
	Latency *LatencyStats `json:"latency,omitempty"`
}

// SeriesResponse is the body of GET /v1/series.
type SeriesResponse struct {
	RunID  string        `json:"runId"`
	Points []SeriesPoint `json:"points"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	RunID  string `json:"runId"`
}

// Stream message types.
const (
	StreamStatus = "status"
	StreamSample = "sample"
)

// StreamMessage is pushed to WebSocket clients. Status messages carry a
// snapshot, sample messages one new point of the ratio series.
type StreamMessage struct {
	Type   string       `json:"type"`
	Status *RunMetrics  `json:"status,omitempty"`
	Sample *SeriesPoint `json:"sample,omitempty"`
}
