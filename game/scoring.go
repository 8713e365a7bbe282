package game

import (
	"sort"
	"time"
)

// Points scores a successful claim of number. streak is the player's
// consecutive-claim counter before this claim and sinceLast the time since
// their previous claim; a first claim (streak 0) earns neither the speed
// bonus nor the consecutive multiplier.
func Points(rules Rules, number int, sinceLast time.Duration, streak int) int {
	points := rules.BasePoints
	if IsLucky(number, rules.GridSize) {
		points += rules.LuckyBonus
	}
	if streak > 0 && sinceLast < rules.SpeedWindow {
		points += rules.SpeedBonus
	}
	if streak > 0 {
		points *= rules.ConsecutiveFactor
	}
	return points
}

// Standing is a player's final position input for winner selection.
type Standing struct {
	PlayerID  string
	Score     int
	ReachedAt time.Time // when the final score was reached
	JoinOrder int
}

// Winner picks the highest score; ties go to whoever reached that score
// first, then to the earliest joiner. Nobody wins with a score of zero.
func Winner(standings []Standing) (string, bool) {
	if len(standings) == 0 {
		return "", false
	}
	ranked := Rank(standings)
	if ranked[0].Score <= 0 {
		return "", false
	}
	return ranked[0].PlayerID, true
}

// Rank orders standings best first using the winner tie-break.
func Rank(standings []Standing) []Standing {
	ranked := make([]Standing, len(standings))
	copy(ranked, standings)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.ReachedAt.Equal(b.ReachedAt) {
			return a.ReachedAt.Before(b.ReachedAt)
		}
		return a.JoinOrder < b.JoinOrder
	})
	return ranked
}
