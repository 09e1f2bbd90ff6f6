package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 通知キューの種別
const (
	NotifyQueueInProcess = "inprocess"
	NotifyQueueRedis     = "redis"
)

// メール送信方式
const (
	MailerLog  = "log"
	MailerSMTP = "smtp"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Application
	AppName  string
	LogLevel string

	// Database
	DatabaseURL string

	// External source
	ExternalSourceURL       string
	ExternalSourceTimeout   time.Duration
	ExternalSourceMaxSize   int64
	ExternalSourceSSRFGuard bool

	// Mail
	Mailer          string
	MailHost        string
	MailPort        int
	MailUsername    string
	MailPassword    string
	MailEncryption  string
	MailFromAddress string
	MailSendTimeout time.Duration

	// Notification
	NotifyQueue string
	RedisURL    string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitCreate  int

	// Seed
	SeedFile string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込むが、設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	// 旧名 JOBBERWOCKY_EXTRA_SOURCE_URL も受け付ける
	cfg.ExternalSourceURL = getEnvString("EXTERNAL_SOURCE_URL", os.Getenv("JOBBERWOCKY_EXTRA_SOURCE_URL"))
	if cfg.ExternalSourceURL == "" {
		missing = append(missing, "EXTERNAL_SOURCE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppName = getEnvString("APP_NAME", "Jobberwocky")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ExternalSourceTimeout = getEnvDuration("EXTERNAL_SOURCE_TIMEOUT", 10*time.Second)
	cfg.ExternalSourceMaxSize = getEnvInt64("EXTERNAL_SOURCE_MAX_SIZE", 5242880)
	cfg.ExternalSourceSSRFGuard = getEnvBool("EXTERNAL_SOURCE_SSRF_GUARD", false)
	cfg.Mailer = strings.ToLower(getEnvString("MAIL_MAILER", MailerLog))
	cfg.MailHost = getEnvString("MAIL_HOST", "localhost")
	cfg.MailPort = getEnvInt("MAIL_PORT", 587)
	cfg.MailUsername = getEnvString("MAIL_USERNAME", "")
	cfg.MailPassword = getEnvString("MAIL_PASSWORD", "")
	cfg.MailEncryption = strings.ToLower(getEnvString("MAIL_ENCRYPTION", "tls"))
	cfg.MailFromAddress = getEnvString("MAIL_FROM_ADDRESS", "hello@example.com")
	cfg.MailSendTimeout = getEnvDuration("MAIL_SEND_TIMEOUT", 10*time.Second)
	cfg.NotifyQueue = strings.ToLower(getEnvString("NOTIFY_QUEUE", NotifyQueueInProcess))
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCreate = getEnvInt("RATE_LIMIT_CREATE", 30)
	cfg.SeedFile = getEnvString("SEED_FILE", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は列挙値と依存関係のある設定の整合性を検証する。
func (c *Config) validate() error {
	switch c.Mailer {
	case MailerLog, MailerSMTP:
	default:
		return fmt.Errorf("unsupported MAIL_MAILER: %q (allowed: log, smtp)", c.Mailer)
	}

	switch c.NotifyQueue {
	case NotifyQueueInProcess:
	case NotifyQueueRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when NOTIFY_QUEUE=redis")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_QUEUE: %q (allowed: inprocess, redis)", c.NotifyQueue)
	}

	return nil
}

// loadDotEnv は.envファイルが存在する場合のみ読み込む。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
