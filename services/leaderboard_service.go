package services

import (
	"context"

	"numberrush/models"
	"numberrush/protocol"
)

const DefaultLeaderboardSize = 10

type LeaderboardService struct {
	gateway Gateway
}

func NewLeaderboardService(gateway Gateway) *LeaderboardService {
	return &LeaderboardService{gateway: gateway}
}

// Top returns the best ranked accounts with their positions.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]protocol.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	summaries, err := s.gateway.LoadLeaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	return rankEntries(summaries), nil
}

func rankEntries(summaries []models.AccountSummary) []protocol.LeaderboardEntry {
	entries := make([]protocol.LeaderboardEntry, 0, len(summaries))
	for i, s := range summaries {
		entries = append(entries, protocol.LeaderboardEntry{
			Rank:              i + 1,
			Username:          s.Username,
			RankScore:         s.RankScore,
			GamesWon:          s.GamesWon,
			GamesLost:         s.GamesLost,
			TotalScore:        s.TotalScore,
			LuckyNumbersFound: s.LuckyNumbersFound,
		})
	}
	return entries
}
