package sim

import (
	"context"
	"log/slog"

	"github.com/gateway-fm/jointsim/internal/ledger"
)

// Config holds the parameters of a full run.
type Config struct {
	Participants int
	Probability  float64
	MeanBalance  float64
	Rounds       int
	BatchSize    int
}

// DefaultConfig returns the standard population and run size.
func DefaultConfig() Config {
	return Config{
		Participants: 100,
		Probability:  0.1,
		MeanBalance:  10,
		Rounds:       1000,
		BatchSize:    100,
	}
}

// Report collects the results of every phase that ran.
type Report struct {
	Provision ProvisionResult
	Fabricate FabricateResult
	Simulate  SimulateResult
}

// RunAll runs provisioning, fabrication and simulation in sequence.
// Provisioning and fabrication errors abort the run; a canceled simulation
// still returns its partial result.
func RunAll(ctx context.Context, l ledger.Ledger, cfg Config, rng Rand, observer Observer, logger *slog.Logger) (Report, error) {
	var (
		report Report
		err    error
	)

	report.Provision, err = NewProvisioner(l, cfg.Participants, observer, logger).Run(ctx)
	if err != nil {
		return report, err
	}

	report.Fabricate, err = NewFabricator(l, FabricateConfig{
		Participants: cfg.Participants,
		Probability:  cfg.Probability,
		MeanBalance:  cfg.MeanBalance,
	}, rng, observer, logger).Run(ctx)
	if err != nil {
		return report, err
	}

	report.Simulate, err = NewSimulator(l, SimulateConfig{
		Participants: cfg.Participants,
		Rounds:       cfg.Rounds,
		BatchSize:    cfg.BatchSize,
	}, rng, observer, logger).Run(ctx)
	return report, err
}
