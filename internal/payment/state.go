package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Outcome classifies the result of the latest charge attempt.
type Outcome string

const (
	OutcomeUnset            Outcome = ""
	OutcomeApproved         Outcome = "approved"
	OutcomePendingChallenge Outcome = "pending-challenge"
	OutcomeDeclined         Outcome = "declined"
	OutcomeFailed           Outcome = "failed"
)

// AuthorizationState is the per-checkout-session scratch data bridging the
// charge request and the 3-D Secure callback. ChallengeURL and ChallengeData
// are set iff Outcome is pending-challenge; PaymentID is set for every
// outcome except failed.
type AuthorizationState struct {
	PaymentID       string    `json:"paymentId,omitempty"`
	ChallengeURL    string    `json:"challengeUrl,omitempty"`
	ChallengeData   string    `json:"challengeData,omitempty"`
	LocalOrderID    uuid.UUID `json:"localOrderId,omitempty"`
	ExternalOrderID string    `json:"externalOrderId,omitempty"`
	Outcome         Outcome   `json:"outcome,omitempty"`
}

// StateStore persists AuthorizationState keyed by checkout session.
type StateStore interface {
	Save(ctx context.Context, sessionID string, state AuthorizationState) error
	Load(ctx context.Context, sessionID string) (AuthorizationState, bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// RedisStateStore stores authorization state as JSON under a session-scoped
// key with a TTL, so abandoned checkouts expire on their own.
type RedisStateStore struct {
	R   *redis.Client
	TTL time.Duration
}

func stateKey(sessionID string) string {
	return "authstate:" + sessionID
}

// Save overwrites the session's state wholesale.
func (s RedisStateStore) Save(ctx context.Context, sessionID string, state AuthorizationState) error {
	if s.R == nil {
		return errors.New("state store: redis client not configured")
	}
	if sessionID == "" {
		return errors.New("state store: session id is required")
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("state store: encode: %w", err)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return s.R.Set(ctx, stateKey(sessionID), encoded, ttl).Err()
}

// Load returns the session's state; the second return reports presence.
func (s RedisStateStore) Load(ctx context.Context, sessionID string) (AuthorizationState, bool, error) {
	if s.R == nil {
		return AuthorizationState{}, false, errors.New("state store: redis client not configured")
	}
	raw, err := s.R.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return AuthorizationState{}, false, nil
	}
	if err != nil {
		return AuthorizationState{}, false, err
	}
	var state AuthorizationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return AuthorizationState{}, false, fmt.Errorf("state store: decode: %w", err)
	}
	return state, true, nil
}

// Clear removes the session's state.
func (s RedisStateStore) Clear(ctx context.Context, sessionID string) error {
	if s.R == nil {
		return errors.New("state store: redis client not configured")
	}
	return s.R.Del(ctx, stateKey(sessionID)).Err()
}
