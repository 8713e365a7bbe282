package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"numberrush/game"
	"numberrush/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestGormGateway(t *testing.T, usernames ...string) *GormGateway {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "numberrush.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	g := NewGormGateway(db, nil)
	if err := g.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, name := range usernames {
		if _, err := g.Register(context.Background(), name, "password-"+name); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return g
}

func TestGormGatewayRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	g := newTestGormGateway(t, "Alice")

	account, err := g.Authenticate(ctx, " alice ", "password-Alice")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if account.Username != "alice" {
		t.Fatalf("username = %q, want normalized", account.Username)
	}
	if _, err := g.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := g.Authenticate(ctx, "nobody", "password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
	if _, err := g.Register(ctx, "ALICE", "other-password"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if _, err := g.LoadAccount(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("load unknown err = %v", err)
	}
}

func TestGormGatewayDuplicateInsertIsUsernameTaken(t *testing.T) {
	g := newTestGormGateway(t, "alice")

	// Skips the existence check, as a sign-up racing another one would.
	err := g.createAccount(context.Background(), &models.Account{Username: "alice", PasswordHash: "hash"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestGormGatewayRecordMatchOnce(t *testing.T) {
	ctx := context.Background()
	g := newTestGormGateway(t)

	newRecord := func() *models.GameRecord {
		return &models.GameRecord{
			MatchID:         "match-1",
			DurationSeconds: 60,
			WinnerID:        "alice",
			EndReason:       "all_claimed",
			PlayedAt:        time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Participants: []models.GameParticipant{
				{Username: "alice", Score: 12, Claims: 5, LuckyNumbers: 2},
				{Username: "bob", Score: 4, Claims: 3},
			},
		}
	}

	inserted, err := g.RecordMatch(ctx, newRecord())
	if err != nil || !inserted {
		t.Fatalf("first record = (%v, %v), want (true, nil)", inserted, err)
	}
	inserted, err = g.RecordMatch(ctx, newRecord())
	if err != nil || inserted {
		t.Fatalf("second record = (%v, %v), want (false, nil)", inserted, err)
	}

	var records, participants int64
	g.db.Model(&models.GameRecord{}).Count(&records)
	g.db.Model(&models.GameParticipant{}).Count(&participants)
	if records != 1 || participants != 2 {
		t.Fatalf("records = %d, participants = %d, want 1 and 2", records, participants)
	}

	var stored models.GameRecord
	if err := g.db.Preload("Participants").Where("match_id = ?", "match-1").First(&stored).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if scores := stored.FinalScores(); scores["alice"] != 12 || scores["bob"] != 4 {
		t.Fatalf("final scores = %v", scores)
	}
}

func TestGormGatewayAchievementsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	g := newTestGormGateway(t, "alice")

	if err := g.UpdateAchievements(ctx, "alice", []string{game.AchievementFirstVictory}); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if err := g.UpdateAchievements(ctx, "alice", []string{game.AchievementFirstVictory}); err != nil {
		t.Fatalf("repeated grant: %v", err)
	}
	if err := g.UpdateAchievements(ctx, "alice", []string{game.AchievementFirstVictory, game.AchievementSpeedDemon}); err != nil {
		t.Fatalf("mixed grant: %v", err)
	}

	names, err := g.LoadAchievements(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(names) != 2 || names[0] != game.AchievementFirstVictory || names[1] != game.AchievementSpeedDemon {
		t.Fatalf("achievements = %v", names)
	}

	var rows int64
	g.db.Model(&models.Achievement{}).Count(&rows)
	if rows != 2 {
		t.Fatalf("achievement rows = %d, want 2", rows)
	}
	if err := g.UpdateAchievements(ctx, "nobody", []string{game.AchievementVeteran}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown account err = %v", err)
	}
}

func TestGormGatewayStatsAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	g := newTestGormGateway(t, "alice", "bob", "carol", "dave")

	for name, score := range map[string]int{"alice": 100, "bob": 300, "carol": 300, "dave": 50} {
		if err := g.UpdateRankScore(ctx, name, score); err != nil {
			t.Fatalf("rank %s: %v", name, err)
		}
	}
	if err := g.UpdateAccountStats(ctx, "carol", game.Stats{GamesWon: 2, TotalScore: 40}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if err := g.UpdateRankScore(ctx, "nobody", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown rank err = %v", err)
	}

	carol, err := g.LoadAccount(ctx, "carol")
	if err != nil {
		t.Fatalf("load carol: %v", err)
	}
	if carol.GamesWon != 2 || carol.TotalScore != 40 || carol.RankScore != 300 {
		t.Fatalf("carol = %+v", carol)
	}

	top, err := g.LoadLeaderboard(ctx, 3)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"carol", "bob", "alice"}
	if len(top) != len(want) {
		t.Fatalf("leaderboard = %+v, want %v", top, want)
	}
	for i, name := range want {
		if top[i].Username != name {
			t.Fatalf("leaderboard[%d] = %s, want %s", i, top[i].Username, name)
		}
	}

	all, err := g.LoadLeaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("leaderboard without limit: %v", err)
	}
	if len(all) != 4 || all[3].Username != "dave" {
		t.Fatalf("full leaderboard = %+v", all)
	}
}
