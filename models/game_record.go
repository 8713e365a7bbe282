package models

import (
	"time"
)

type GameRecord struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	MatchID         string    `json:"match_id" gorm:"uniqueIndex;not null"`
	DurationSeconds int       `json:"duration_seconds" gorm:"not null"`
	WinnerID        string    `json:"winner_id"` // empty when nobody scored
	EndReason       string    `json:"end_reason" gorm:"not null"`
	PlayedAt        time.Time `json:"played_at" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`

	// Relationships
	Participants []GameParticipant `json:"participants,omitempty" gorm:"foreignKey:GameRecordID"`
}

type GameParticipant struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	GameRecordID uint   `json:"game_record_id" gorm:"not null;index"`
	Username     string `json:"username" gorm:"not null"`
	Score        int    `json:"score" gorm:"not null"`
	Claims       int    `json:"claims" gorm:"not null"`
	LuckyNumbers int    `json:"lucky_numbers" gorm:"not null"`
	PowerUpsUsed int    `json:"power_ups_used" gorm:"not null"`
}

// FinalScores maps usernames to their final score.
func (r *GameRecord) FinalScores() map[string]int {
	scores := make(map[string]int, len(r.Participants))
	for _, p := range r.Participants {
		scores[p.Username] = p.Score
	}
	return scores
}
