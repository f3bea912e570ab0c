// Package intent holds the collection of limit-order intents and the
// per-creator index, and enforces id allocation and lifecycle transitions.
package intent

import (
	"fmt"
	"math/big"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
)

// Store keeps all intents keyed by their monotonically increasing id. Like
// the vault ledger it is not internally synchronized; the settlement engine
// serializes every state-changing call.
type Store struct {
	intents map[uint64]*model.Intent
	byUser  map[model.Address][]uint64
	nextID  uint64
}

func NewStore() *Store {
	return &Store{
		intents: make(map[uint64]*model.Intent),
		byUser:  make(map[model.Address][]uint64),
	}
}

// Insert assigns the next id, stores the intent, and appends it to the
// creator's index. Ids start at 0 and are never reused.
func (s *Store) Insert(in *model.Intent) uint64 {
	id := s.nextID
	s.nextID++

	stored := in.Clone()
	stored.ID = id
	s.intents[id] = stored
	s.byUser[stored.Creator] = append(s.byUser[stored.Creator], id)
	return id
}

// Get returns a copy of the intent, or false if the id was never allocated.
func (s *Store) Get(id uint64) (*model.Intent, bool) {
	in, ok := s.intents[id]
	if !ok {
		return nil, false
	}
	return in.Clone(), true
}

// UpdateStatus transitions an Active intent to a terminal status. A call on
// an already-terminal intent is rejected, never silently ignored: this guard
// is what makes a racing second executor lose cleanly.
func (s *Store) UpdateStatus(id uint64, status model.IntentStatus, executor *model.Address, actualBuyAmount *big.Int) error {
	in, ok := s.intents[id]
	if !ok {
		return fmt.Errorf("intent %d: %w", id, errs.ErrIntentNotFound)
	}

	switch in.Status {
	case model.IntentExecuted:
		return fmt.Errorf("intent %d: %w", id, errs.ErrIntentAlreadyExecuted)
	case model.IntentCancelled:
		return fmt.Errorf("intent %d: %w", id, errs.ErrIntentCancelled)
	}

	if status == model.IntentActive {
		return fmt.Errorf("intent %d: transition to Active not allowed", id)
	}

	in.Status = status
	if executor != nil {
		e := *executor
		in.Executor = &e
	}
	if actualBuyAmount != nil {
		in.ActualBuyAmount = new(big.Int).Set(actualBuyAmount)
	}
	return nil
}

// ListForUser returns the creator's intent ids in creation order.
func (s *Store) ListForUser(user model.Address) []uint64 {
	ids := s.byUser[user]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// NextID returns the id the next Insert will assign.
func (s *Store) NextID() uint64 {
	return s.nextID
}

// ActiveCount returns the number of intents currently in the Active state.
func (s *Store) ActiveCount() int {
	n := 0
	for _, in := range s.intents {
		if in.Status == model.IntentActive {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all intents, for persistence and state export.
func (s *Store) Snapshot() []*model.Intent {
	out := make([]*model.Intent, 0, len(s.intents))
	for _, in := range s.intents {
		out = append(out, in.Clone())
	}
	return out
}

// Restore installs a persisted intent during startup recovery and advances
// the id counter past it.
func (s *Store) Restore(in *model.Intent) {
	stored := in.Clone()
	s.intents[stored.ID] = stored
	s.byUser[stored.Creator] = append(s.byUser[stored.Creator], stored.ID)
	if stored.ID >= s.nextID {
		s.nextID = stored.ID + 1
	}
}
