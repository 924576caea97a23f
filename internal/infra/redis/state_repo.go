package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps conversation state in Redis as JSON. A zero ttl keeps
// abandoned flows until they are overwritten.
type StateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewStateRepo(client RedisClient, ttl time.Duration) *StateRepo {
	if ttl < 0 {
		ttl = 0
	}
	return &StateRepo{client: client, ttl: ttl}
}

func (s *StateRepo) stateKey(userID int64) string {
	return fmt.Sprintf("conv_state:%d", userID)
}

func (s *StateRepo) SetState(ctx context.Context, userID int64, state *model.ConversationState) error {
	if state == nil {
		return s.ClearState(ctx, userID)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(userID), data, s.ttl)
}

// GetState returns (nil, nil) when no flow is stored.
func (s *StateRepo) GetState(ctx context.Context, userID int64) (*model.ConversationState, error) {
	data, err := s.client.Get(ctx, s.stateKey(userID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state model.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	return &state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.stateKey(userID))
}
