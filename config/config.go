package config

import (
	"fmt"
	"time"

	"numberrush/game"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	BindAddress string        `env:"BIND_ADDRESS" envDefault:"localhost"`
	DBHost      string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string        `env:"DB_PORT" envDefault:"5432"`
	DBUser      string        `env:"DB_USER" envDefault:"numberrush"`
	DBPassword  string        `env:"DB_PASSWORD" envDefault:"numberrush123"`
	DBName      string        `env:"DB_NAME" envDefault:"numberrush"`
	RedisHost   string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort   string        `env:"REDIS_PORT" envDefault:"6379"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	Game GameConfig
}

// GameConfig mirrors game.Rules so each rule can be overridden from the
// environment.
type GameConfig struct {
	GridSize           int           `env:"GRID_SIZE" envDefault:"100"`
	MinPlayers         int           `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers         int           `env:"MAX_PLAYERS" envDefault:"4"`
	MatchDuration      time.Duration `env:"MATCH_DURATION" envDefault:"120s"`
	TimeUpdateInterval time.Duration `env:"TIME_UPDATE_INTERVAL" envDefault:"5s"`
	TargetOnly         bool          `env:"TARGET_ONLY" envDefault:"true"`
	BasePoints         int           `env:"BASE_POINTS" envDefault:"1"`
	LuckyBonus         int           `env:"LUCKY_BONUS" envDefault:"5"`
	SpeedBonus         int           `env:"SPEED_BONUS" envDefault:"2"`
	SpeedWindow        time.Duration `env:"SPEED_WINDOW" envDefault:"1s"`
	ConsecutiveFactor  int           `env:"CONSECUTIVE_FACTOR" envDefault:"2"`
	BonusInterval      int           `env:"BONUS_INTERVAL" envDefault:"10"`
	InitialCharges     int           `env:"INITIAL_CHARGES" envDefault:"3"`
	PriorityCooldown   time.Duration `env:"PRIORITY_COOLDOWN" envDefault:"30s"`
	BlockCooldown      time.Duration `env:"BLOCK_COOLDOWN" envDefault:"45s"`
	PriorityDuration   time.Duration `env:"PRIORITY_DURATION" envDefault:"30s"`
	BlockDuration      time.Duration `env:"BLOCK_DURATION" envDefault:"15s"`
	BlockCount         int           `env:"BLOCK_COUNT" envDefault:"5"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Rules().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Rules converts the game settings into engine rules.
func (c *Config) Rules() game.Rules {
	g := c.Game
	return game.Rules{
		GridSize:           g.GridSize,
		MinPlayers:         g.MinPlayers,
		MaxPlayers:         g.MaxPlayers,
		MatchDuration:      g.MatchDuration,
		TimeUpdateInterval: g.TimeUpdateInterval,
		TargetOnly:         g.TargetOnly,
		BasePoints:         g.BasePoints,
		LuckyBonus:         g.LuckyBonus,
		SpeedBonus:         g.SpeedBonus,
		SpeedWindow:        g.SpeedWindow,
		ConsecutiveFactor:  g.ConsecutiveFactor,
		BonusInterval:      g.BonusInterval,
		InitialCharges:     g.InitialCharges,
		PriorityCooldown:   g.PriorityCooldown,
		BlockCooldown:      g.BlockCooldown,
		PriorityDuration:   g.PriorityDuration,
		BlockDuration:      g.BlockDuration,
		BlockCount:         g.BlockCount,
	}
}

func (c *Config) Addr() string {
	return c.BindAddress + ":" + c.Port
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
