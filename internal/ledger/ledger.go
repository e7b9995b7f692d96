// Package ledger is the surface of the joint-account ledger the simulator drives.
//
// Two backends implement Ledger: Contract talks to a deployed JointAccountDApp over
// JSON-RPC, and Memory keeps the same state in-process for dry runs and tests.
// Every mutating call returns only after the change is confirmed.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrParticipantExists is returned when registering an id that is already registered.
	ErrParticipantExists = errors.New("participant already registered")
	// ErrUnknownParticipant is returned when a relationship references an unregistered id.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrRelationshipExists is returned when a relationship for the pair already exists.
	ErrRelationshipExists = errors.New("relationship already exists")
	// ErrSelfRelationship is returned when both ends of a relationship are the same participant.
	ErrSelfRelationship = errors.New("relationship endpoints must differ")
	// ErrInsufficientBalance is returned when a transfer exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrReverted is returned when a submitted transaction was mined with status 0.
	ErrReverted = errors.New("transaction reverted")
	// ErrConfirmationTimeout is returned when no receipt arrives before the confirmation deadline.
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
)

// Participant is a registered ledger user.
type Participant struct {
	ID     uint64
	Name   string
	Exists bool
}

// Relationship is the joint account between two participants as seen from A.
// Balance is what A can currently send to B.
type Relationship struct {
	A       uint64
	B       uint64
	Balance uint64
	Exists  bool
}

// Ledger is the set of operations the simulation phases need.
type Ledger interface {
	// LookupParticipant reports whether id is registered. Read-only.
	LookupParticipant(ctx context.Context, id uint64) (Participant, error)

	// RegisterParticipant registers id under name and blocks until confirmed.
	RegisterParticipant(ctx context.Context, id uint64, name string) error

	// LookupRelationship returns the relationship between a and b. Read-only.
	// A missing relationship is reported with Exists=false and no error.
	LookupRelationship(ctx context.Context, a, b uint64) (Relationship, error)

	// CreateRelationship creates the a-b relationship with an initial balance and blocks until confirmed.
	CreateRelationship(ctx context.Context, a, b, balance uint64) error

	// TransferUnit moves amount along the from-to relationship and blocks until confirmed.
	TransferUnit(ctx context.Context, from, to, amount uint64) error
}
