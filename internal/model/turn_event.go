package model

import "time"

// TurnEvent is published to the queue after a chat turn has been committed.
type TurnEvent struct {
	UserID     uint      `json:"user_id"`
	PoetName   string    `json:"poet_name"`
	OccurredAt time.Time `json:"occurred_at"`
}
