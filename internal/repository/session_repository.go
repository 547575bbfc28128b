package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"megatrack/internal/model"
)

// sessionKey is the global slot for the signed-in user.
const sessionKey = "megatrack_user"

// SessionRepository remembers who is signed in between runs.
type SessionRepository struct {
	kv *KVRepository
}

func NewSessionRepository(kv *KVRepository) *SessionRepository {
	return &SessionRepository{kv: kv}
}

// Save records user as the current session.
func (r *SessionRepository) Save(ctx context.Context, user model.User) error {
	if user.ID() == "" {
		return fmt.Errorf("save session: %w", model.ErrNoIdentity)
	}
	user.Email = user.ID()
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.kv.Put(ctx, sessionKey, string(data))
}

// Current returns the signed-in user, or nil when there is none.
// A damaged session slot is treated as signed out.
func (r *SessionRepository) Current(ctx context.Context) (*model.User, error) {
	raw, ok, err := r.kv.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID() == "" {
		return nil, nil
	}
	return &user, nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	return r.kv.Delete(ctx, sessionKey)
}
