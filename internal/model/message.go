package model

import "time"

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	PoetName  string    `gorm:"size:64;not null;index" json:"poet_name"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
}
