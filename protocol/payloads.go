package protocol

type ClaimAttempt struct {
	Number int `json:"number"`
}

type PowerUpActivate struct {
	Type string `json:"type"`
}

type LeaderboardRequest struct {
	Limit int `json:"limit"`
}

type JoinAck struct {
	MatchID        string `json:"matchId"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
	AssignedColor  string `json:"assignedColor"`
}

type RosterChange struct {
	PlayerID       string `json:"playerId"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
}

type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Start struct {
	MatchID         string         `json:"matchId"`
	GridSize        int            `json:"gridSize"`
	DurationSeconds int            `json:"durationSeconds"`
	InitialTarget   int            `json:"initialTarget"`
	Players         []PlayerInfo   `json:"players"`
	InitialNumbers  []int          `json:"initialNumbers"`
	PowerUps        map[string]int `json:"powerUps"`
}

type ClaimResult struct {
	Number     int    `json:"number"`
	ClaimerID  string `json:"claimerId"`
	NextTarget int    `json:"nextTarget"`
	NewScore   int    `json:"newScore"`
	Points     int    `json:"points"`
}

type ClaimRejected struct {
	Number int    `json:"number"`
	Reason string `json:"reason"`
}

type PowerUpDenied struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type PowerUpGranted struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type PowerUpEffect struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	DurationMs int64  `json:"durationMs"`
	Numbers    []int  `json:"numbers,omitempty"`
}

type TimeUpdate struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

type MatchOver struct {
	WinnerID        string         `json:"winnerId"`
	FinalScores     map[string]int `json:"finalScores"`
	DurationSeconds int            `json:"durationSeconds"`
	Reason          string         `json:"reason"`
}

type LeaderboardEntry struct {
	Rank              int    `json:"rank"`
	Username          string `json:"username"`
	RankScore         int    `json:"rankScore"`
	GamesWon          int    `json:"gamesWon"`
	GamesLost         int    `json:"gamesLost"`
	TotalScore        int    `json:"totalScore"`
	LuckyNumbersFound int    `json:"luckyNumbersFound"`
}

type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type AchievementUnlocked struct {
	Achievements []string `json:"achievements"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
