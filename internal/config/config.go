package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/support-bot/internal/domain"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	AI       AIConfig
	Tickets  TicketConfig
	Memory   MemoryConfig
	Storage  StorageConfig
}

// AppConfig controls the operator HTTP API.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	HTTPEnabled           bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	Operators             []domain.Operator
}

// DiscordConfig holds gateway credentials and the server layout.
type DiscordConfig struct {
	Token                string
	GuildID              string
	BotUserID            string
	CommandPrefix        string
	CommunityName        string
	TicketCategories     map[domain.TicketType]string
	AICategoryIDs        []string
	TicketManagerRoleID  string
	AppealManagerRoleID  string
	StaffRoleID          string
	LogsChannelID        string
	FAQChannelID         string
	InfoChannelID        string
	SuggestionsChannelID string
	OwnerIDs             []string
}

// AIConfig configures the completion provider and conversation limits.
type AIConfig struct {
	APIKey              string
	URL                 string
	Model               string
	MaxTokens           int
	Temperature         float64
	TimeoutSeconds      int
	MaxWarnings         int
	KnowledgeTTLSeconds int
	OpsEnabled          bool
}

// TicketConfig configures lifecycle jobs.
type TicketConfig struct {
	InactivityHours      int
	SweepIntervalMinutes int
	TranscriptLimit      int
}

// MemoryConfig configures the global memory log retention.
type MemoryConfig struct {
	RetentionDays        int
	MaxEntries           int
	PruneIntervalMinutes int
}

// StorageConfig points at an S3 compatible bucket for transcript archives. An empty Endpoint disables archiving.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	operators, err := parseOperators(os.Getenv("ADMIN_OPERATORS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_OPERATORS: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	supportCategory := getEnv("DISCORD_SUPPORT_CATEGORY_ID", "1436498409153626213")
	ccCategory := getEnv("DISCORD_CC_CATEGORY_ID", "1436498445216256031")
	appealCategory := getEnv("DISCORD_APPEAL_CATEGORY_ID", "1436498528544227428")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			HTTPEnabled:           getEnvAsBool("HTTP_ENABLED", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			LockTTLSeconds: getEnvAsInt("REDIS_LOCK_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			Operators:             operators,
		},
		Discord: DiscordConfig{
			Token:         os.Getenv("DISCORD_TOKEN"),
			GuildID:       os.Getenv("DISCORD_GUILD_ID"),
			BotUserID:     os.Getenv("DISCORD_BOT_USER_ID"),
			CommandPrefix: getEnv("DISCORD_COMMAND_PREFIX", "!"),
			CommunityName: getEnv("COMMUNITY_NAME", "Spiritual Battlegrounds"),
			TicketCategories: map[domain.TicketType]string{
				domain.TicketTypeSupport:        supportCategory,
				domain.TicketTypeContentCreator: ccCategory,
				domain.TicketTypeAppeal:         appealCategory,
				domain.TicketTypeReport:         getEnv("DISCORD_REPORT_CATEGORY_ID", "1436498495153635512"),
			},
			AICategoryIDs:        getEnvAsList("DISCORD_AI_CATEGORY_IDS", []string{supportCategory, ccCategory, appealCategory}),
			TicketManagerRoleID:  getEnv("DISCORD_TICKET_MANAGER_ROLE_ID", "1383270362707656774"),
			AppealManagerRoleID:  getEnv("DISCORD_APPEAL_MANAGER_ROLE_ID", "1423157373295525979"),
			StaffRoleID:          os.Getenv("DISCORD_STAFF_ROLE_ID"),
			LogsChannelID:        getEnv("DISCORD_TICKET_LOGS_CHANNEL_ID", "1420538005936013403"),
			FAQChannelID:         getEnv("DISCORD_FAQ_CHANNEL_ID", "1409301002070397120"),
			InfoChannelID:        getEnv("DISCORD_INFO_CHANNEL_ID", "1415330559974183024"),
			SuggestionsChannelID: getEnv("DISCORD_SUGGESTIONS_CHANNEL_ID", "1409310962103877752"),
			OwnerIDs:             getEnvAsList("DISCORD_OWNER_IDS", []string{"523693281541095424", "1327460512858116154"}),
		},
		AI: AIConfig{
			APIKey:              firstEnv("AI_API_KEY", "HUGGINGFACE_API_KEY"),
			URL:                 getEnv("AI_API_URL", "https://router.huggingface.co/v1/chat/completions"),
			Model:               getEnv("AI_MODEL", "meta-llama/Llama-3.2-3B-Instruct:fastest"),
			MaxTokens:           getEnvAsInt("AI_MAX_TOKENS", 400),
			Temperature:         getEnvAsFloat("AI_TEMPERATURE", 0.7),
			TimeoutSeconds:      getEnvAsInt("AI_TIMEOUT_SECONDS", 30),
			MaxWarnings:         getEnvAsInt("AI_MAX_WARNINGS", 1),
			KnowledgeTTLSeconds: getEnvAsInt("AI_KNOWLEDGE_TTL_SECONDS", 300),
			OpsEnabled:          getEnvAsBool("AI_OPS_ENABLED", true),
		},
		Tickets: TicketConfig{
			InactivityHours:      getEnvAsInt("TICKET_INACTIVITY_HOURS", 24),
			SweepIntervalMinutes: getEnvAsInt("TICKET_SWEEP_INTERVAL_MINUTES", 60),
			TranscriptLimit:      getEnvAsInt("TICKET_TRANSCRIPT_LIMIT", 500),
		},
		Memory: MemoryConfig{
			RetentionDays:        getEnvAsInt("MEMORY_RETENTION_DAYS", 30),
			MaxEntries:           getEnvAsInt("MEMORY_MAX_ENTRIES", 10000),
			PruneIntervalMinutes: getEnvAsInt("MEMORY_PRUNE_INTERVAL_MINUTES", 60),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("TRANSCRIPT_S3_ENDPOINT"),
			AccessKey: os.Getenv("TRANSCRIPT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("TRANSCRIPT_S3_SECRET_KEY"),
			Bucket:    getEnv("TRANSCRIPT_S3_BUCKET", "ticket-transcripts"),
			UseSSL:    getEnvAsBool("TRANSCRIPT_S3_USE_SSL", true),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockTTL returns the lease duration for distributed ticket locks.
func (r RedisConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// Timeout returns the completion request timeout.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// KnowledgeTTL returns how long the knowledge excerpt is cached.
func (a AIConfig) KnowledgeTTL() time.Duration {
	return time.Duration(a.KnowledgeTTLSeconds) * time.Second
}

// InactivityTimeout returns the idle age after which tickets are auto-closed.
func (t TicketConfig) InactivityTimeout() time.Duration {
	return time.Duration(t.InactivityHours) * time.Hour
}

// SweepInterval returns how often the inactivity sweep runs.
func (t TicketConfig) SweepInterval() time.Duration {
	return time.Duration(t.SweepIntervalMinutes) * time.Minute
}

// Retention returns the maximum age of memory log entries.
func (m MemoryConfig) Retention() time.Duration {
	return time.Duration(m.RetentionDays) * 24 * time.Hour
}

// PruneInterval returns how often memory retention runs.
func (m MemoryConfig) PruneInterval() time.Duration {
	return time.Duration(m.PruneIntervalMinutes) * time.Minute
}

// Enabled reports whether transcript archiving is configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// IsAICategory reports whether categoryID hosts AI handled tickets.
func (d DiscordConfig) IsAICategory(categoryID string) bool {
	for _, id := range d.AICategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// PrivilegedRoleIDs lists roles allowed to ping and to run manager commands.
func (d DiscordConfig) PrivilegedRoleIDs() []string {
	return []string{d.TicketManagerRoleID, d.AppealManagerRoleID}
}

// parseOperators reads "name:role:bcrypt-hash" entries separated by ';'.
func parseOperators(raw string) ([]domain.Operator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []domain.Operator
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed operator entry %q", entry)
		}
		role, ok := domain.ParseOperatorRole(parts[1])
		if !ok {
			return nil, fmt.Errorf("unknown operator role %q", parts[1])
		}
		out = append(out, domain.Operator{Username: parts[0], Role: role, PasswordHash: parts[2]})
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
