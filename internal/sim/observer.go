package sim

// Phase names a simulation phase.
type Phase string

const (
	PhaseProvision Phase = "provision"
	PhaseFabricate Phase = "fabricate"
	PhaseSimulate  Phase = "simulate"
)

// Observer receives progress events from the phases. Calls are made from the
// driver goroutine; implementations that share state with other goroutines must lock.
type Observer interface {
	PhaseStarted(phase Phase)
	PhaseFinished(phase Phase, err error)
	ParticipantRegistered(id uint64)
	RelationshipCreated(a, b, balance uint64)
	TransferAttempted(attempt TransferAttempt)
	RatioSampled(sample Sample)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) PhaseStarted(Phase) {}
func (NopObserver) PhaseFinished(Phase, error) {}
func (NopObserver) ParticipantRegistered(uint64) {}
func (NopObserver) RelationshipCreated(_, _, _ uint64) {}
func (NopObserver) TransferAttempted(TransferAttempt) {}
func (NopObserver) RatioSampled(Sample) {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) PhaseStarted(phase Phase) {
	for _, ob := range o {
		ob.PhaseStarted(phase)
	}
}

func (o Observers) PhaseFinished(phase Phase, err error) {
	for _, ob := range o {
		ob.PhaseFinished(phase, err)
	}
}

func (o Observers) ParticipantRegistered(id uint64) {
	for _, ob := range o {
		ob.ParticipantRegistered(id)
	}
}

func (o Observers) RelationshipCreated(a, b, balance uint64) {
	for _, ob := range o {
		ob.RelationshipCreated(a, b, balance)
	}
}

func (o Observers) TransferAttempted(attempt TransferAttempt) {
	for _, ob := range o {
		ob.TransferAttempted(attempt)
	}
}

func (o Observers) RatioSampled(sample Sample) {
	for _, ob := range o {
		ob.RatioSampled(sample)
	}
}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}
