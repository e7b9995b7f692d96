package ledger

import "context"

// Pacer blocks until the next submission may go out.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Throttled paces the mutating calls of a Ledger. Lookups are not paced.
type Throttled struct {
	Ledger
	pacer Pacer
}

// Throttle wraps l so that every submission first waits on p. A nil p returns l unchanged.
func Throttle(l Ledger, p Pacer) Ledger {
	if p == nil {
		return l
	}
	return &Throttled{Ledger: l, pacer: p}
}

func (t *Throttled) RegisterParticipant(ctx context.Context, id uint64, name string) error {
	if err := t.pacer.Wait(ctx); err != nil {
		return err
	}
	return t.Ledger.RegisterParticipant(ctx, id, name)
}

func (t *Throttled) CreateRelationship(ctx context.Context, a, b, balance uint64) error {
	if err := t.pacer.Wait(ctx); err != nil {
		return err
	}
	return t.Ledger.CreateRelationship(ctx, a, b, balance)
}

func (t *Throttled) TransferUnit(ctx context.Context, from, to, amount uint64) error {
	if err := t.pacer.Wait(ctx); err != nil {
		return err
	}
	return t.Ledger.TransferUnit(ctx, from, to, amount)
}
