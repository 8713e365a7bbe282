package models

import (
	"time"
)

type Achievement struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	AccountID  uint      `json:"account_id" gorm:"not null;uniqueIndex:idx_account_achievement"`
	Name       string    `json:"name" gorm:"not null;uniqueIndex:idx_account_achievement"`
	UnlockedAt time.Time `json:"unlocked_at" gorm:"not null"`
}
