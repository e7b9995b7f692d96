package sim

import (
	"context"
	"log/slog"

	"github.com/gateway-fm/jointsim/internal/ledger"
)

// TransferAmount is the value moved by every simulated transfer.
const TransferAmount = 1

// Outcome classifies a counted transfer attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInsufficient
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInsufficient:
		return "insufficient"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// TransferAttempt is one counted round of the simulation.
type TransferAttempt struct {
	Attempt int // 1-based count of this attempt
	From    uint64
	To      uint64
	Balance uint64 // looked-up balance; zero when the lookup failed
	Outcome Outcome
	Err     error
}

// Sample is one point of the success-ratio series.
type Sample struct {
	Attempts  int     `json:"attempts"`
	Successes int     `json:"successes"`
	Ratio     float64 `json:"ratio"`
}

func newSample(successes, attempts int) Sample {
	return Sample{
		Attempts:  attempts,
		Successes: successes,
		Ratio:     float64(successes) / float64(attempts),
	}
}

// SimulateConfig configures the transfer simulation.
type SimulateConfig struct {
	Participants int
	Rounds       int
	BatchSize    int // attempts between ratio samples
}

// SimulateResult holds the counters and series of a simulation run.
type SimulateResult struct {
	Rounds       int // rounds drawn, including skipped self-pairs
	Skipped      int
	Attempts     int
	Successes    int
	Insufficient int
	Failures     int
	Series       []Sample
}

// Ratio returns the overall success ratio, or 0 before any attempt.
func (r SimulateResult) Ratio() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Attempts)
}

// Simulator drives random unit transfers and samples the success ratio.
type Simulator struct {
	ledger   ledger.Ledger
	cfg      SimulateConfig
	rng      Rand
	observer Observer
	logger   *slog.Logger
}

// NewSimulator creates a simulator.
func NewSimulator(l ledger.Ledger, cfg SimulateConfig, rng Rand, observer Observer, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Simulator{
		ledger:   l,
		cfg:      cfg,
		rng:      rng,
		observer: observerOrNop(observer),
		logger:   logger,
	}
}

// Run executes the configured rounds. Ledger errors are logged and counted as
// failed attempts. When ctx is canceled the run stops before the next round and
// returns the partial result, including its final sample, with ctx.Err().
func (s *Simulator) Run(ctx context.Context) (res SimulateResult, err error) {
	s.observer.PhaseStarted(PhaseSimulate)
	defer func() { s.observer.PhaseFinished(PhaseSimulate, err) }()

	n := s.cfg.Participants
	for round := 0; round < s.cfg.Rounds; round++ {
		if err = ctx.Err(); err != nil {
			break
		}
		res.Rounds++

		from := uint64(s.rng.IntN(n)) + 1
		to := uint64(s.rng.IntN(n)) + 1
		if from == to {
			res.Skipped++
			continue
		}

		attempt := s.attempt(ctx, from, to)
		if attempt.Err != nil && ctx.Err() != nil {
			// Interrupted mid-attempt; the round is not counted.
			err = ctx.Err()
			res.Rounds--
			break
		}

		res.Attempts++
		attempt.Attempt = res.Attempts
		switch attempt.Outcome {
		case OutcomeSuccess:
			res.Successes++
		case OutcomeInsufficient:
			res.Insufficient++
		case OutcomeError:
			res.Failures++
		}
		s.observer.TransferAttempted(attempt)

		if res.Attempts%s.cfg.BatchSize == 0 {
			s.sample(&res)
		}
	}

	if res.Attempts%s.cfg.BatchSize != 0 {
		s.sample(&res)
	}

	s.logger.Info("simulation complete",
		slog.Int("rounds", res.Rounds),
		slog.Int("skipped", res.Skipped),
		slog.Int("attempts", res.Attempts),
		slog.Int("successes", res.Successes),
		slog.Int("insufficient", res.Insufficient),
		slog.Int("failures", res.Failures),
		slog.Float64("ratio", res.Ratio()),
	)
	return res, err
}

func (s *Simulator) attempt(ctx context.Context, from, to uint64) TransferAttempt {
	a := TransferAttempt{From: from, To: to}
	log := s.logger.With(slog.Uint64("from", from), slog.Uint64("to", to))

	rel, err := s.ledger.LookupRelationship(ctx, from, to)
	if err != nil {
		a.Outcome, a.Err = OutcomeError, err
		log.Warn("transfer failed", slog.String("error", err.Error()))
		return a
	}
	a.Balance = rel.Balance
	log.Info("attempting transfer", slog.Uint64("balance", rel.Balance))

	if rel.Balance < TransferAmount {
		a.Outcome = OutcomeInsufficient
		log.Info("insufficient balance")
		return a
	}

	if err := s.ledger.TransferUnit(ctx, from, to, TransferAmount); err != nil {
		a.Outcome, a.Err = OutcomeError, err
		log.Warn("transfer failed", slog.String("error", err.Error()))
		return a
	}

	a.Outcome = OutcomeSuccess
	log.Info("transfer succeeded")
	return a
}

func (s *Simulator) sample(res *SimulateResult) {
	sample := newSample(res.Successes, res.Attempts)
	res.Series = append(res.Series, sample)
	s.observer.RatioSampled(sample)
	s.logger.Info("success ratio",
		slog.Int("attempts", sample.Attempts),
		slog.Float64("ratio", sample.Ratio),
	)
}
