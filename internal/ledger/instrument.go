package ledger

import (
	"context"
	"time"
)

// Instrumented reports the latency and outcome of every call on a Ledger
// under the contract method name it corresponds to.
type Instrumented struct {
	next     Ledger
	observer CallObserver
}

var _ Ledger = (*Instrumented)(nil)

// Instrument wraps l. A nil observer returns l unchanged.
func Instrument(l Ledger, observer CallObserver) Ledger {
	if observer == nil {
		return l
	}
	return &Instrumented{next: l, observer: observer}
}

func (i *Instrumented) observe(method string, start time.Time, err error) {
	i.observer.ObserveLedgerCall(method, time.Since(start), err)
}

func (i *Instrumented) LookupParticipant(ctx context.Context, id uint64) (p Participant, err error) {
	start := time.Now()
	defer func() { i.observe(MethodUsers, start, err) }()
	return i.next.LookupParticipant(ctx, id)
}

func (i *Instrumented) RegisterParticipant(ctx context.Context, id uint64, name string) (err error) {
	start := time.Now()
	defer func() { i.observe(MethodRegisterUser, start, err) }()
	return i.next.RegisterParticipant(ctx, id, name)
}

func (i *Instrumented) LookupRelationship(ctx context.Context, a, b uint64) (r Relationship, err error) {
	start := time.Now()
	defer func() { i.observe(MethodJointAccounts, start, err) }()
	return i.next.LookupRelationship(ctx, a, b)
}

func (i *Instrumented) CreateRelationship(ctx context.Context, a, b, balance uint64) (err error) {
	start := time.Now()
	defer func() { i.observe(MethodCreateAcc, start, err) }()
	return i.next.CreateRelationship(ctx, a, b, balance)
}

func (i *Instrumented) TransferUnit(ctx context.Context, from, to, amount uint64) (err error) {
	start := time.Now()
	defer func() { i.observe(MethodSendAmount, start, err) }()
	return i.next.TransferUnit(ctx, from, to, amount)
}
