package model

import "time"

// PoetStat is maintained asynchronously by the turn-stats worker.
type PoetStat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PoetName   string    `gorm:"size:64;not null;uniqueIndex" json:"poet_name"`
	TurnCount  int64     `gorm:"not null" json:"turn_count"`
	LastChatAt time.Time `json:"last_chat_at"`
}
