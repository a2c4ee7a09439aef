package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service. It is built once at
// startup and injected into components; nothing mutates it afterwards.
type Config struct {
	App      AppConfig
	Discord  DiscordConfig
	SiteDB   PostgresConfig
	ModDB    PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Review   ReviewConfig
	Leveling LevelingConfig
	API      APIConfig
}

// AppConfig controls service level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// DiscordConfig holds the bot token plus every guild, role and channel the
// service touches. IDs are kept as strings, matching discordgo's snowflake
// representation.
type DiscordConfig struct {
	Token         string
	CommandPrefix string

	MainGuildID   string
	ReviewGuildID string

	// Main guild roles.
	MemberRoleID       string
	BotRoleID          string
	DeveloperRoleID    string
	CertifiedDevRoleID string
	CertifiedBotRoleID string
	PremiumRoleID      string

	// Review guild roles.
	TestingBotRoleID string
	ModeratorRoleID  string

	// Channels.
	AdminLogChannelID     string
	SiteLogChannelID      string
	ErrorChannelID        string
	AnnounceChannelID     string
	ApprovalChannelID     string
	BotAlertChannelID     string
	EmojiSuggestChannelID string

	// Categories in the review guild that never belong to a candidate.
	ReservedCategoryIDs []string

	// Channels/categories excluded from message XP.
	XPIgnoredChannelIDs  []string
	XPIgnoredCategoryIDs []string
}

// PostgresConfig holds DB connection values for one logical store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Pretty bool
}

// ReviewConfig tunes the review lifecycle.
type ReviewConfig struct {
	PromptTimeoutSeconds  int
	StaleAfterHours       int
	SweepIntervalMinutes  int
	PresenceIntervalMin   int
	StatusSyncIntervalMin int
	SiteBaseURL           string
}

// LevelingConfig tunes the message-XP system.
type LevelingConfig struct {
	CooldownSeconds int
	MinXP           int
	MaxXP           int
}

// APIConfig configures the internal website-facing HTTP API.
type APIConfig struct {
	Host      string
	Port      string
	JWTSecret string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN must be set")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "blist-review-service"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			Token:         token,
			CommandPrefix: getEnv("COMMAND_PREFIX", "b!"),

			MainGuildID:   os.Getenv("MAIN_GUILD_ID"),
			ReviewGuildID: os.Getenv("REVIEW_GUILD_ID"),

			MemberRoleID:       os.Getenv("MEMBER_ROLE_ID"),
			BotRoleID:          os.Getenv("BOT_ROLE_ID"),
			DeveloperRoleID:    os.Getenv("DEVELOPER_ROLE_ID"),
			CertifiedDevRoleID: os.Getenv("CERTIFIED_DEV_ROLE_ID"),
			CertifiedBotRoleID: os.Getenv("CERTIFIED_BOT_ROLE_ID"),
			PremiumRoleID:      os.Getenv("PREMIUM_ROLE_ID"),

			TestingBotRoleID: os.Getenv("TESTING_BOT_ROLE_ID"),
			ModeratorRoleID:  os.Getenv("MODERATOR_ROLE_ID"),

			AdminLogChannelID:     os.Getenv("ADMIN_LOG_CHANNEL_ID"),
			SiteLogChannelID:      os.Getenv("SITE_LOG_CHANNEL_ID"),
			ErrorChannelID:        os.Getenv("ERROR_CHANNEL_ID"),
			AnnounceChannelID:     os.Getenv("ANNOUNCE_CHANNEL_ID"),
			ApprovalChannelID:     os.Getenv("APPROVAL_CHANNEL_ID"),
			BotAlertChannelID:     os.Getenv("BOT_ALERT_CHANNEL_ID"),
			EmojiSuggestChannelID: os.Getenv("EMOJI_SUGGEST_CHANNEL_ID"),

			ReservedCategoryIDs:  splitIDs(os.Getenv("RESERVED_CATEGORY_IDS")),
			XPIgnoredChannelIDs:  splitIDs(os.Getenv("XP_IGNORED_CHANNEL_IDS")),
			XPIgnoredCategoryIDs: splitIDs(os.Getenv("XP_IGNORED_CATEGORY_IDS")),
		},
		SiteDB: loadPostgres("SITE", "migrations/site"),
		ModDB:  loadPostgres("MOD", "migrations/moderation"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
		Review: ReviewConfig{
			PromptTimeoutSeconds:  getEnvAsInt("REVIEW_PROMPT_TIMEOUT_SECONDS", 30),
			StaleAfterHours:       getEnvAsInt("REVIEW_STALE_AFTER_HOURS", 2),
			SweepIntervalMinutes:  getEnvAsInt("REVIEW_SWEEP_INTERVAL_MINUTES", 60),
			PresenceIntervalMin:   getEnvAsInt("PRESENCE_INTERVAL_MINUTES", 1),
			StatusSyncIntervalMin: getEnvAsInt("STATUS_SYNC_INTERVAL_MINUTES", 60),
			SiteBaseURL:           getEnv("SITE_BASE_URL", "https://blist.xyz"),
		},
		Leveling: LevelingConfig{
			CooldownSeconds: getEnvAsInt("LEVELING_COOLDOWN_SECONDS", 60),
			MinXP:           getEnvAsInt("LEVELING_MIN_XP", 5),
			MaxXP:           getEnvAsInt("LEVELING_MAX_XP", 10),
		},
		API: APIConfig{
			Host:      getEnv("API_HOST", "0.0.0.0"),
			Port:      getEnv("API_PORT", "8080"),
			JWTSecret: getEnv("API_JWT_SECRET", "dev-secret"),
		},
	}

	return cfg, nil
}

func loadPostgres(prefix, migrationsDir string) PostgresConfig {
	return PostgresConfig{
		DSN:            os.Getenv(prefix + "_POSTGRES_DSN"),
		MaxConns:       int32(getEnvAsInt(prefix+"_POSTGRES_MAX_CONNS", 10)),
		MinConns:       int32(getEnvAsInt(prefix+"_POSTGRES_MIN_CONNS", 2)),
		RunMigrations:  getEnvAsBool(prefix+"_POSTGRES_RUN_MIGRATIONS", true),
		MigrationsDir:  migrationsDir,
		ConnMaxIdleSec: int32(getEnvAsInt(prefix+"_POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
		ConnMaxLifeSec: int32(getEnvAsInt(prefix+"_POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
	}
}

// Addr returns the HTTP bind address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// PromptTimeout returns the interactive reason-prompt timeout.
func (r ReviewConfig) PromptTimeout() time.Duration {
	if r.PromptTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.PromptTimeoutSeconds) * time.Second
}

// StaleAfter returns the workspace age after which the sweep posts reminders.
func (r ReviewConfig) StaleAfter() time.Duration {
	return time.Duration(r.StaleAfterHours) * time.Hour
}

// Cooldown returns the per-user XP cooldown window.
func (l LevelingConfig) Cooldown() time.Duration {
	return time.Duration(l.CooldownSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
