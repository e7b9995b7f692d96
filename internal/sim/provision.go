// Package sim runs the three simulation phases against a ledger:
// participant provisioning, relationship fabrication and transfer simulation.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gateway-fm/jointsim/internal/ledger"
)

// ParticipantName is the display name registered for id.
func ParticipantName(id uint64) string {
	return fmt.Sprintf("User%d", id)
}

// ProvisionResult summarizes a provisioning run.
type ProvisionResult struct {
	Registered int
	Existing   int
}

// Provisioner ensures participants 1..N are registered.
type Provisioner struct {
	ledger       ledger.Ledger
	participants uint64
	observer     Observer
	logger       *slog.Logger
}

// NewProvisioner creates a provisioner for participants 1..n.
func NewProvisioner(l ledger.Ledger, n int, observer Observer, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		ledger:       l,
		participants: uint64(n),
		observer:     observerOrNop(observer),
		logger:       logger,
	}
}

// Run registers every missing participant in ascending id order.
// The first ledger error stops the run.
func (p *Provisioner) Run(ctx context.Context) (res ProvisionResult, err error) {
	p.observer.PhaseStarted(PhaseProvision)
	defer func() { p.observer.PhaseFinished(PhaseProvision, err) }()

	for id := uint64(1); id <= p.participants; id++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		existing, err := p.ledger.LookupParticipant(ctx, id)
		if err != nil {
			return res, fmt.Errorf("lookup participant %d: %w", id, err)
		}
		if existing.Exists {
			res.Existing++
			continue
		}

		if err := p.ledger.RegisterParticipant(ctx, id, ParticipantName(id)); err != nil {
			return res, fmt.Errorf("register participant %d: %w", id, err)
		}
		res.Registered++
		p.observer.ParticipantRegistered(id)
		p.logger.Info("registered participant",
			slog.Uint64("participant", id),
			slog.String("name", ParticipantName(id)),
		)
	}

	p.logger.Info("provisioning complete",
		slog.Int("registered", res.Registered),
		slog.Int("existing", res.Existing),
	)
	return res, nil
}
