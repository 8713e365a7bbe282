package game

import (
	"math"
	"sort"
	"time"
)

// Stats are the lifetime aggregates ranking and achievements are computed
// from.
type Stats struct {
	GamesWon            int
	GamesLost           int
	TotalScore          int
	ConsecutiveWins     int
	BestConsecutiveWins int
	LuckyNumbersFound   int
	BestTime            time.Duration // zero until the first win
	TotalTime           time.Duration
}

func (s Stats) GamesPlayed() int { return s.GamesWon + s.GamesLost }

func (s Stats) WinRate() float64 {
	if s.GamesPlayed() == 0 {
		return 0
	}
	return float64(s.GamesWon) / float64(s.GamesPlayed())
}

func (s Stats) AverageScore() float64 {
	if s.GamesPlayed() == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.GamesPlayed())
}

func (s Stats) AverageTime() time.Duration {
	if s.GamesPlayed() == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.GamesPlayed())
}

// MatchResult is one player's outcome of a finished match.
type MatchResult struct {
	Won          bool
	Score        int
	LuckyNumbers int
	Duration     time.Duration
}

// Apply folds a match result into the aggregates.
func (s Stats) Apply(r MatchResult) Stats {
	s.TotalScore += r.Score
	s.TotalTime += r.Duration
	s.LuckyNumbersFound += r.LuckyNumbers
	if r.Won {
		s.GamesWon++
		s.ConsecutiveWins++
		if s.ConsecutiveWins > s.BestConsecutiveWins {
			s.BestConsecutiveWins = s.ConsecutiveWins
		}
		if s.BestTime == 0 || r.Duration < s.BestTime {
			s.BestTime = r.Duration
		}
	} else {
		s.GamesLost++
		s.ConsecutiveWins = 0
	}
	return s
}

const (
	rankWeightWinRate     = 0.4
	rankWeightAvgScore    = 0.3
	rankWeightLucky       = 0.2
	rankWeightConsistency = 0.1
)

// RankScore combines win rate, average score, lucky numbers and
// consistency into the leaderboard ordering key.
func RankScore(s Stats) int {
	score := s.WinRate()*1000*rankWeightWinRate +
		s.AverageScore()*10*rankWeightAvgScore +
		float64(s.LuckyNumbersFound)*50*rankWeightLucky +
		consistency(s)*rankWeightConsistency
	return int(score)
}

func consistency(s Stats) float64 {
	avg := s.AverageTime()
	if avg == 0 || s.BestTime == 0 {
		return 0
	}
	return math.Min(1000, float64(s.BestTime)/float64(avg)*500)
}

const (
	AchievementFirstVictory   = "First Victory"
	AchievementLuckyCollector = "Lucky Collector"
	AchievementLuckyMaster    = "Lucky Master"
	AchievementSpeedDemon     = "Speed Demon"
	AchievementVeteran        = "Veteran"
	AchievementChampion       = "Champion"
	AchievementWinningStreak  = "Winning Streak"
)

const (
	LuckyCollectorThreshold = 5
	LuckyMasterThreshold    = 10
	SpeedDemonTime          = 180 * time.Second
	VeteranGamesThreshold   = 50
	ChampionWinsThreshold   = 25
	WinningStreakThreshold  = 5
)

// Earned lists every achievement whose threshold the aggregates meet.
func Earned(s Stats) []string {
	var out []string
	if s.GamesWon >= 1 {
		out = append(out, AchievementFirstVictory)
	}
	if s.LuckyNumbersFound >= LuckyCollectorThreshold {
		out = append(out, AchievementLuckyCollector)
	}
	if s.LuckyNumbersFound >= LuckyMasterThreshold {
		out = append(out, AchievementLuckyMaster)
	}
	if s.BestTime > 0 && s.BestTime <= SpeedDemonTime {
		out = append(out, AchievementSpeedDemon)
	}
	if s.GamesPlayed() >= VeteranGamesThreshold {
		out = append(out, AchievementVeteran)
	}
	if s.GamesWon >= ChampionWinsThreshold {
		out = append(out, AchievementChampion)
	}
	if s.BestConsecutiveWins >= WinningStreakThreshold {
		out = append(out, AchievementWinningStreak)
	}
	return out
}

// Unlocked returns the earned achievements not already in owned, sorted.
func Unlocked(s Stats, owned []string) []string {
	have := make(map[string]struct{}, len(owned))
	for _, a := range owned {
		have[a] = struct{}{}
	}
	var out []string
	for _, a := range Earned(s) {
		if _, ok := have[a]; !ok {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
