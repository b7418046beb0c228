package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppID        int32
	AppHash      string
	BotToken     string
	SessionFile  string
	OwnerID      int64
	SudoUsers    []int64
	SupportUsers []int64

	DBPath     string
	StrictGban bool
	BanSticker string

	LogLevel      string
	LogStreamPort string

	GbanConcurrency int
	GbanRate        float64
	AdminCacheTTL   time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	appID, err := getInt32("APP_ID", 0)
	if err != nil {
		return nil, err
	}
	ownerID, err := getInt64("OWNER_ID", 0)
	if err != nil {
		return nil, err
	}
	sudo, err := getIDList("SUDO_USERS")
	if err != nil {
		return nil, err
	}
	support, err := getIDList("SUPPORT_USERS")
	if err != nil {
		return nil, err
	}
	strict, err := getBool("STRICT_GBAN", true)
	if err != nil {
		return nil, err
	}
	concurrency, err := getInt64("GBAN_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	rate, err := getFloat("GBAN_RATE", 20)
	if err != nil {
		return nil, err
	}
	ttl, err := getDuration("ADMIN_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppID:           appID,
		AppHash:         getString("APP_HASH", ""),
		BotToken:        getString("BOT_TOKEN", ""),
		SessionFile:     getString("SESSION_FILE", "session.dat"),
		OwnerID:         ownerID,
		SudoUsers:       sudo,
		SupportUsers:    support,
		DBPath:          getString("DB_PATH", "database.db"),
		StrictGban:      strict,
		BanSticker:      getString("BAN_STICKER", ""),
		LogLevel:        strings.ToLower(getString("LOG_LEVEL", "info")),
		LogStreamPort:   getString("LOG_STREAM_PORT", ""),
		GbanConcurrency: int(concurrency),
		GbanRate:        rate,
		AdminCacheTTL:   ttl,
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL: unknown level %q", cfg.LogLevel)
	}
	if cfg.GbanConcurrency <= 0 {
		cfg.GbanConcurrency = 1
	}
	if cfg.GbanRate <= 0 {
		cfg.GbanRate = 20
	}

	// the owner is always sudo
	if cfg.OwnerID != 0 && !slices.Contains(cfg.SudoUsers, cfg.OwnerID) {
		cfg.SudoUsers = append(cfg.SudoUsers, cfg.OwnerID)
	}

	return cfg, nil
}

// ValidateClient reports the settings needed to log in as a bot.
func (c *Config) ValidateClient() error {
	var missing []string
	if c.AppID == 0 {
		missing = append(missing, "APP_ID")
	}
	if c.AppHash == "" {
		missing = append(missing, "APP_HASH")
	}
	if c.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.OwnerID == 0 {
		missing = append(missing, "OWNER_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsSudo(userID int64) bool {
	return slices.Contains(c.SudoUsers, userID)
}

func (c *Config) IsSupport(userID int64) bool {
	return slices.Contains(c.SupportUsers, userID)
}

// Staff returns sudo and support users, sudo first, without duplicates.
func (c *Config) Staff() []int64 {
	out := make([]int64, 0, len(c.SudoUsers)+len(c.SupportUsers))
	for _, id := range append(slices.Clone(c.SudoUsers), c.SupportUsers...) {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func getString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt64(key string, fallback int64) (int64, error) {
	return getInt(key, fallback, 64)
}

func getInt32(key string, fallback int32) (int32, error) {
	value, err := getInt(key, int64(fallback), 32)
	return int32(value), err
}

func getInt(key string, fallback int64, bitSize int) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getIDList(key string) ([]int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
