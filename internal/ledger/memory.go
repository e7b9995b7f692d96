package ledger

import (
	"context"
	"fmt"
	"sync"
)

type edge struct {
	from, to uint64
}

// Memory is an in-process ledger with the same rules as the JointAccountDApp contract.
// Creating a relationship funds both directions with the initial balance; a transfer
// moves units from the sender's side of the relationship to the receiver's side.
type Memory struct {
	mu           sync.RWMutex
	participants map[uint64]string
	balances     map[edge]uint64
	ops          uint64
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		participants: make(map[uint64]string),
		balances:     make(map[edge]uint64),
	}
}

// LookupParticipant implements Ledger.
func (m *Memory) LookupParticipant(ctx context.Context, id uint64) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.participants[id]
	return Participant{ID: id, Name: name, Exists: ok}, nil
}

// RegisterParticipant implements Ledger.
func (m *Memory) RegisterParticipant(ctx context.Context, id uint64, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.participants[id]; ok {
		return fmt.Errorf("register %d: %w", id, ErrParticipantExists)
	}
	m.participants[id] = name
	m.ops++
	return nil
}

// LookupRelationship implements Ledger.
func (m *Memory) LookupRelationship(ctx context.Context, a, b uint64) (Relationship, error) {
	if err := ctx.Err(); err != nil {
		return Relationship{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance, ok := m.balances[edge{a, b}]
	return Relationship{A: a, B: b, Balance: balance, Exists: ok}, nil
}

// CreateRelationship implements Ledger.
func (m *Memory) CreateRelationship(ctx context.Context, a, b, balance uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("create %d-%d: %w", a, b, ErrSelfRelationship)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireParticipants(a, b); err != nil {
		return fmt.Errorf("create %d-%d: %w", a, b, err)
	}
	if _, ok := m.balances[edge{a, b}]; ok {
		return fmt.Errorf("create %d-%d: %w", a, b, ErrRelationshipExists)
	}
	m.balances[edge{a, b}] = balance
	m.balances[edge{b, a}] = balance
	m.ops++
	return nil
}

// TransferUnit implements Ledger.
func (m *Memory) TransferUnit(ctx context.Context, from, to, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireParticipants(from, to); err != nil {
		return fmt.Errorf("transfer %d->%d: %w", from, to, err)
	}
	out := edge{from, to}
	balance, ok := m.balances[out]
	if !ok || balance < amount {
		return fmt.Errorf("transfer %d->%d: %w", from, to, ErrInsufficientBalance)
	}
	m.balances[out] = balance - amount
	m.balances[edge{to, from}] += amount
	m.ops++
	return nil
}

func (m *Memory) requireParticipants(ids ...uint64) error {
	for _, id := range ids {
		if _, ok := m.participants[id]; !ok {
			return fmt.Errorf("participant %d: %w", id, ErrUnknownParticipant)
		}
	}
	return nil
}

// Participants returns the number of registered participants.
func (m *Memory) Participants() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.participants)
}

// Relationships returns the number of unordered relationships.
func (m *Memory) Relationships() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.balances) / 2
}

// TotalBalance returns the sum of all directional balances. Transfers conserve it.
func (m *Memory) TotalBalance() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	for _, b := range m.balances {
		total += b
	}
	return total
}

// Mutations returns the number of confirmed state changes.
func (m *Memory) Mutations() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ops
}
