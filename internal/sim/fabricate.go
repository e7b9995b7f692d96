package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gateway-fm/jointsim/internal/ledger"
)

// FabricateConfig configures relationship fabrication.
type FabricateConfig struct {
	Participants int
	Probability  float64 // chance an unordered pair is considered
	MeanBalance  float64 // mean of the exponential initial balance
}

// DegreeSummary describes the relationship graph seen by a fabrication run.
type DegreeSummary struct {
	Relationships int
	MaxDegree     int
	MeanDegree    float64
	Isolated      int
}

// FabricateResult summarizes a fabrication run.
type FabricateResult struct {
	Pairs    int // unordered pairs visited
	Selected int // pairs that passed the Bernoulli draw
	Created  int
	Existing int
	Degrees  DegreeSummary
}

// Fabricator creates funded relationships over a Bernoulli-thinned set of pairs.
type Fabricator struct {
	ledger   ledger.Ledger
	cfg      FabricateConfig
	rng      Rand
	observer Observer
	logger   *slog.Logger
}

// NewFabricator creates a fabricator.
func NewFabricator(l ledger.Ledger, cfg FabricateConfig, rng Rand, observer Observer, logger *slog.Logger) *Fabricator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fabricator{
		ledger:   l,
		cfg:      cfg,
		rng:      rng,
		observer: observerOrNop(observer),
		logger:   logger,
	}
}

// InitialBalance truncates an exponential sample toward zero.
func InitialBalance(sample, mean float64) uint64 {
	v := sample * mean
	if v <= 0 {
		return 0
	}
	return uint64(v)
}

// Run visits pairs (i, j), i < j, in lexicographic order. A selected pair without a
// relationship gets one with a truncated Exp(mean) balance. The first ledger error stops the run.
func (f *Fabricator) Run(ctx context.Context) (res FabricateResult, err error) {
	f.observer.PhaseStarted(PhaseFabricate)
	defer func() { f.observer.PhaseFinished(PhaseFabricate, err) }()

	n := uint64(f.cfg.Participants)
	degree := make([]int, n+1)

	for i := uint64(1); i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			if err := ctx.Err(); err != nil {
				res.Degrees = summarize(degree, res.Created+res.Existing)
				return res, err
			}
			res.Pairs++

			if f.rng.Float64() >= f.cfg.Probability {
				continue
			}
			res.Selected++

			rel, err := f.ledger.LookupRelationship(ctx, i, j)
			if err != nil {
				return res, fmt.Errorf("lookup relationship %d-%d: %w", i, j, err)
			}
			degree[i]++
			degree[j]++
			if rel.Exists {
				res.Existing++
				continue
			}

			balance := InitialBalance(f.rng.ExpFloat64(), f.cfg.MeanBalance)
			if err := f.ledger.CreateRelationship(ctx, i, j, balance); err != nil {
				return res, fmt.Errorf("create relationship %d-%d: %w", i, j, err)
			}
			res.Created++
			f.observer.RelationshipCreated(i, j, balance)
			f.logger.Info("created relationship",
				slog.Uint64("a", i),
				slog.Uint64("b", j),
				slog.Uint64("balance", balance),
			)
		}
	}

	res.Degrees = summarize(degree, res.Created+res.Existing)
	f.logger.Info("fabrication complete",
		slog.Int("pairs", res.Pairs),
		slog.Int("selected", res.Selected),
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
		slog.Int("max_degree", res.Degrees.MaxDegree),
		slog.Float64("mean_degree", res.Degrees.MeanDegree),
		slog.Int("isolated", res.Degrees.Isolated),
	)
	return res, nil
}

// summarize builds a DegreeSummary from per-participant degrees (index 0 unused).
func summarize(degree []int, relationships int) DegreeSummary {
	s := DegreeSummary{Relationships: relationships}
	participants := len(degree) - 1
	if participants <= 0 {
		return s
	}
	for _, d := range degree[1:] {
		s.MaxDegree = max(s.MaxDegree, d)
		if d == 0 {
			s.Isolated++
		}
	}
	s.MeanDegree = float64(2*relationships) / float64(participants)
	return s
}
