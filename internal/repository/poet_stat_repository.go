package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/model"
)

type PoetStatRepository struct {
	db *gorm.DB
}

func NewPoetStatRepository(db *gorm.DB) *PoetStatRepository {
	return &PoetStatRepository{db: db}
}

func (r *PoetStatRepository) RecordTurn(poetName string, at time.Time) error {
	stat := model.PoetStat{PoetName: poetName, TurnCount: 1, LastChatAt: at}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "poet_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"turn_count":   gorm.Expr("turn_count + 1"),
			"last_chat_at": at,
		}),
	}).Create(&stat).Error
	if err != nil {
		return fmt.Errorf("record chat turn failed: %w", err)
	}
	return nil
}
