package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"numberrush/game"
	"numberrush/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	leaderboardCacheKey = "leaderboard"
	leaderboardCacheTTL = 30 * time.Second
	MaxLeaderboardSize  = 100
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidAccount     = errors.New("username and password are required")
)

// Gateway is the persistence boundary for accounts, match history and
// achievements.
type Gateway interface {
	Authenticate(ctx context.Context, username, password string) (*models.Account, error)
	Register(ctx context.Context, username, password string) (*models.Account, error)
	LoadAccount(ctx context.Context, username string) (*models.Account, error)
	LoadLeaderboard(ctx context.Context, limit int) ([]models.AccountSummary, error)
	// RecordMatch stores a finished match once. It reports false when the
	// match was already recorded.
	RecordMatch(ctx context.Context, record *models.GameRecord) (bool, error)
	UpdateAccountStats(ctx context.Context, username string, stats game.Stats) error
	UpdateRankScore(ctx context.Context, username string, rankScore int) error
	LoadAchievements(ctx context.Context, username string) ([]string, error)
	UpdateAchievements(ctx context.Context, username string, names []string) error
}

type GormGateway struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewGormGateway builds a gateway on db. redis may be nil, which disables
// the leaderboard cache.
func NewGormGateway(db *gorm.DB, redis *redis.Client) *GormGateway {
	return &GormGateway{
		db:    db,
		redis: redis,
	}
}

// Migrate creates or updates the tables the gateway uses.
func (g *GormGateway) Migrate() error {
	return g.db.AutoMigrate(
		&models.Account{},
		&models.Achievement{},
		&models.GameRecord{},
		&models.GameParticipant{},
	)
}

func (g *GormGateway) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	var account models.Account
	if err := g.db.WithContext(ctx).Where("username = ?", normalizeUsername(username)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &account, nil
}

func (g *GormGateway) Register(ctx context.Context, username, password string) (*models.Account, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrInvalidAccount
	}

	taken, err := g.usernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.Account{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := g.createAccount(ctx, &account); err != nil {
		return nil, err
	}

	log.Printf("Registered account %s", username)
	return &account, nil
}

func (g *GormGateway) usernameExists(ctx context.Context, username string) (bool, error) {
	var existing int64
	if err := g.db.WithContext(ctx).Model(&models.Account{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return existing > 0, nil
}

// createAccount inserts account. A concurrent sign-up that took the name
// after the existence check surfaces as ErrUsernameTaken.
func (g *GormGateway) createAccount(ctx context.Context, account *models.Account) error {
	err := g.db.WithContext(ctx).Create(account).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	if taken, checkErr := g.usernameExists(ctx, account.Username); checkErr == nil && taken {
		return ErrUsernameTaken
	}
	return fmt.Errorf("failed to create account: %w", err)
}

// LoadAccount returns the account with its achievements.
func (g *GormGateway) LoadAccount(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := g.db.WithContext(ctx).Preload("Achievements").Where("username = ?", normalizeUsername(username)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

// LoadLeaderboard returns the top accounts by rank score, read through a
// short-lived Redis cache.
func (g *GormGateway) LoadLeaderboard(ctx context.Context, limit int) ([]models.AccountSummary, error) {
	if limit <= 0 || limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	if cached, ok := g.cachedLeaderboard(ctx); ok {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	var accounts []models.Account
	err := g.db.WithContext(ctx).
		Order("rank_score DESC").
		Order("games_won DESC").
		Order("username ASC").
		Limit(MaxLeaderboardSize).
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	summaries := make([]models.AccountSummary, 0, len(accounts))
	for i := range accounts {
		summaries = append(summaries, accounts[i].Summary())
	}
	g.cacheLeaderboard(ctx, summaries)

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (g *GormGateway) cachedLeaderboard(ctx context.Context) ([]models.AccountSummary, bool) {
	if g.redis == nil {
		return nil, false
	}
	data, err := g.redis.Get(ctx, leaderboardCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Redis error getting leaderboard: %v", err)
		}
		return nil, false
	}
	var summaries []models.AccountSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		log.Printf("Failed to unmarshal cached leaderboard: %v", err)
		return nil, false
	}
	return summaries, true
}

func (g *GormGateway) cacheLeaderboard(ctx context.Context, summaries []models.AccountSummary) {
	if g.redis == nil {
		return
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		log.Printf("Error marshaling leaderboard: %v", err)
		return
	}
	if err := g.redis.Set(ctx, leaderboardCacheKey, data, leaderboardCacheTTL).Err(); err != nil {
		log.Printf("Redis error caching leaderboard: %v", err)
	}
}

func (g *GormGateway) RecordMatch(ctx context.Context, record *models.GameRecord) (bool, error) {
	inserted := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participants := record.Participants
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}},
			DoNothing: true,
		}).Omit("Participants").Create(record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		for i := range participants {
			participants[i].GameRecordID = record.ID
		}
		if len(participants) > 0 {
			if err := tx.Create(&participants).Error; err != nil {
				return err
			}
		}
		record.Participants = participants
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record match %s: %w", record.MatchID, err)
	}
	return inserted, nil
}

func (g *GormGateway) UpdateAccountStats(ctx context.Context, username string, stats game.Stats) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", normalizeUsername(username)).
			First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("failed to lock account: %w", err)
		}

		account.SetStats(stats)
		return tx.Model(&account).Select(
			"games_won", "games_lost", "total_score", "consecutive_wins", "best_consecutive_wins",
			"lucky_numbers_found", "best_time_seconds", "total_play_seconds",
		).Updates(&account).Error
	})
}

func (g *GormGateway) UpdateRankScore(ctx context.Context, username string, rankScore int) error {
	result := g.db.WithContext(ctx).Model(&models.Account{}).
		Where("username = ?", normalizeUsername(username)).
		Update("rank_score", rankScore)
	if result.Error != nil {
		return fmt.Errorf("failed to update rank score: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	if g.redis != nil {
		if err := g.redis.Del(ctx, leaderboardCacheKey).Err(); err != nil {
			log.Printf("Redis error invalidating leaderboard: %v", err)
		}
	}
	return nil
}

func (g *GormGateway) LoadAchievements(ctx context.Context, username string) ([]string, error) {
	var names []string
	err := g.db.WithContext(ctx).Model(&models.Achievement{}).
		Joins("JOIN accounts ON accounts.id = achievements.account_id").
		Where("accounts.username = ?", normalizeUsername(username)).
		Order("achievements.name").
		Pluck("achievements.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	return names, nil
}

// UpdateAchievements grants names to the account. Already held achievements
// are left untouched.
func (g *GormGateway) UpdateAchievements(ctx context.Context, username string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	var account models.Account
	if err := g.db.WithContext(ctx).Select("id").Where("username = ?", normalizeUsername(username)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	now := time.Now()
	rows := make([]models.Achievement, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.Achievement{AccountID: account.ID, Name: name, UnlockedAt: now})
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to store achievements: %w", err)
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
