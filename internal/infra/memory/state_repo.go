package memory

import (
	"context"
	"sync"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps conversation state in process memory. States are cloned
// on the way in and out so callers never share a pointer with the store.
type StateRepo struct {
	mu     sync.Mutex
	states map[int64]*model.ConversationState
}

// NewStateRepo returns a store backed by a fresh map.
func NewStateRepo() *StateRepo {
	return NewStateRepoWithMap(nil)
}

// NewStateRepoWithMap uses backing as the store. Tests can pre-seed it.
func NewStateRepoWithMap(backing map[int64]*model.ConversationState) *StateRepo {
	if backing == nil {
		backing = make(map[int64]*model.ConversationState)
	}
	return &StateRepo{states: backing}
}

func (s *StateRepo) SetState(ctx context.Context, userID int64, state *model.ConversationState) error {
	if state == nil {
		return s.ClearState(ctx, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state.Clone()
	return nil
}

func (s *StateRepo) GetState(ctx context.Context, userID int64) (*model.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

func (s *StateRepo) ClearState(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// Len reports how many users have an active flow.
func (s *StateRepo) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
