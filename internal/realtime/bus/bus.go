package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Invalidation tells every instance to drop cached memory models for a user.
// A nil TopicID drops every cached scope of that user.
type Invalidation struct {
	UserID  uuid.UUID  `json:"user_id"`
	TopicID *uuid.UUID `json:"topic_id,omitempty"`
	// Origin identifies the publishing instance so it can skip its own echo.
	Origin string `json:"origin"`
}

type Bus interface {
	Publish(ctx context.Context, msg Invalidation) error
	StartForwarder(ctx context.Context, onMsg func(m Invalidation)) error
	Close() error
}

var (
	errNoCallback = errors.New("onMsg callback required")
	errClosed     = errors.New("bus closed")
)

func encode(msg Invalidation) ([]byte, error) {
	if msg.UserID == uuid.Nil {
		return nil, fmt.Errorf("invalidation requires user_id")
	}
	return json.Marshal(msg)
}

func decode(raw []byte) (Invalidation, error) {
	var msg Invalidation
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Invalidation{}, err
	}
	if msg.UserID == uuid.Nil {
		return Invalidation{}, fmt.Errorf("invalidation missing user_id")
	}
	return msg, nil
}
