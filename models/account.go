package models

import (
	"time"

	"numberrush/game"

	"gorm.io/gorm"
)

type Account struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	Username            string         `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash        string         `json:"-" gorm:"not null"`
	GamesWon            int            `json:"games_won" gorm:"not null;default:0"`
	GamesLost           int            `json:"games_lost" gorm:"not null;default:0"`
	TotalScore          int            `json:"total_score" gorm:"not null;default:0"`
	RankScore           int            `json:"rank_score" gorm:"not null;default:0;index"`
	ConsecutiveWins     int            `json:"consecutive_wins" gorm:"not null;default:0"`
	BestConsecutiveWins int            `json:"best_consecutive_wins" gorm:"not null;default:0"`
	LuckyNumbersFound   int            `json:"lucky_numbers_found" gorm:"not null;default:0"`
	BestTimeSeconds     int            `json:"best_time_seconds" gorm:"not null;default:0"` // 0 until the first win
	TotalPlaySeconds    int            `json:"total_play_seconds" gorm:"not null;default:0"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Achievements []Achievement `json:"achievements,omitempty" gorm:"foreignKey:AccountID"`
}

// Stats projects the persisted aggregates for ranking.
func (a *Account) Stats() game.Stats {
	return game.Stats{
		GamesWon:            a.GamesWon,
		GamesLost:           a.GamesLost,
		TotalScore:          a.TotalScore,
		ConsecutiveWins:     a.ConsecutiveWins,
		BestConsecutiveWins: a.BestConsecutiveWins,
		LuckyNumbersFound:   a.LuckyNumbersFound,
		BestTime:            time.Duration(a.BestTimeSeconds) * time.Second,
		TotalTime:           time.Duration(a.TotalPlaySeconds) * time.Second,
	}
}

// SetStats writes ranking aggregates back onto the account.
func (a *Account) SetStats(s game.Stats) {
	a.GamesWon = s.GamesWon
	a.GamesLost = s.GamesLost
	a.TotalScore = s.TotalScore
	a.ConsecutiveWins = s.ConsecutiveWins
	a.BestConsecutiveWins = s.BestConsecutiveWins
	a.LuckyNumbersFound = s.LuckyNumbersFound
	a.BestTimeSeconds = int(s.BestTime / time.Second)
	a.TotalPlaySeconds = int(s.TotalTime / time.Second)
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		Username:          a.Username,
		RankScore:         a.RankScore,
		GamesWon:          a.GamesWon,
		GamesLost:         a.GamesLost,
		TotalScore:        a.TotalScore,
		LuckyNumbersFound: a.LuckyNumbersFound,
	}
}

// AccountSummary is the leaderboard view of an account.
type AccountSummary struct {
	Username          string `json:"username"`
	RankScore         int    `json:"rank_score"`
	GamesWon          int    `json:"games_won"`
	GamesLost         int    `json:"games_lost"`
	TotalScore        int    `json:"total_score"`
	LuckyNumbersFound int    `json:"lucky_numbers_found"`
}
