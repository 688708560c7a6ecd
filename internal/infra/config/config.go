package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Enabled     bool
	SMTPServer  string   `validate:"required_if=Enabled true"`
	SMTPPort    int      `validate:"gt=0,lte=65535"`
	Username    string   `validate:"required_if=Enabled true"`
	Password    string   `validate:"required_if=Enabled true"`
	From        string   `validate:"omitempty,email"`
	To          []string `validate:"required_if=Enabled true,dive,email"`
	AttachTable bool
}

// WebhookConfig configures the WeCom / DingTalk group robot channel.
type WebhookConfig struct {
	Enabled bool
	URL     string `validate:"required_if=Enabled true,omitempty,url"`
	Flavor  string `validate:"oneof=wecom dingtalk"`
	Secret  string // DingTalk signing secret, optional
}

// SMSConfig configures the HTTP SMS gateway channel.
type SMSConfig struct {
	Enabled  bool
	APIURL   string   `validate:"required_if=Enabled true,omitempty,url"`
	APIKey   string   `validate:"required_if=Enabled true"`
	Phones   []string `validate:"required_if=Enabled true"`
	Region   string   `validate:"len=2"`
	Template string   `validate:"oneof=summary single_item multiple_items simple"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled bool
	Token   string `validate:"required_if=Enabled true"`
	ChatID  int64  `validate:"required_if=Enabled true"`
}

// PubSubConfig configures publishing run outcomes to a Google Cloud Pub/Sub topic.
type PubSubConfig struct {
	Enabled   bool
	ProjectID string `validate:"required_if=Enabled true"`
	Topic     string `validate:"required_if=Enabled true"`
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	ExcelFile          string `validate:"required"`
	ExcelSheet         string // Empty means the first sheet
	BackupDir          string `validate:"required"`
	BackupKeep         int    `validate:"gte=0"` // 0 keeps every backup
	BackupGCSBucket    string
	BackupGCSPrefix    string
	ColumnKeywordsFile string

	UpdateStrategy     string `validate:"oneof=recompute decrement"`
	DecrementModeUntil time.Time
	Timezone           string
	Location           *time.Location `validate:"required"`

	LogLevel    string `validate:"oneof=trace debug info warn warning error fatal panic"`
	Environment string

	CronSpec           string `validate:"required"`
	RunOnStart         bool
	HTTPAddr           string // Empty disables the HTTP API
	HTTPAllowedOrigins []string

	JournalDriver string `validate:"oneof=sqlite postgres none"`
	JournalPath   string `validate:"required_if=JournalDriver sqlite"`
	DatabaseURL   string `validate:"required_if=JournalDriver postgres"`

	RedisAddress  string // Empty keeps the run guard in-process
	RedisPassword string
	RunLockTTL    time.Duration `validate:"gt=0"`

	NotifyTimeout  time.Duration `validate:"gt=0"`
	NotifyAllClear bool

	Email    EmailConfig
	Webhook  WebhookConfig
	SMS      SMSConfig
	Telegram TelegramConfig
	PubSub   PubSubConfig
}

var validate = validator.New()

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.ExcelFile = getEnv("EXCEL_FILE", "yxc.xlsx")
	cfg.ExcelSheet = os.Getenv("EXCEL_SHEET")
	cfg.BackupDir = getEnv("BACKUP_DIR", "backups")
	if cfg.BackupKeep, err = getInt("BACKUP_KEEP", 30); err != nil {
		return nil, err
	}
	cfg.BackupGCSBucket = os.Getenv("BACKUP_GCS_BUCKET")
	cfg.BackupGCSPrefix = getEnv("BACKUP_GCS_PREFIX", "backups")
	cfg.ColumnKeywordsFile = os.Getenv("COLUMN_KEYWORDS_FILE")

	cfg.UpdateStrategy = strings.ToLower(getEnv("UPDATE_STRATEGY", "recompute"))
	if until := os.Getenv("DECREMENT_MODE_UNTIL"); until != "" {
		cfg.DecrementModeUntil, err = time.Parse("2006-01-02", until)
		if err != nil {
			return nil, fmt.Errorf("invalid DECREMENT_MODE_UNTIL (want YYYY-MM-DD): %w", err)
		}
	}
	cfg.Timezone = getEnv("TIMEZONE", "Local")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	cfg.CronSpec = getEnv("CRON_SPEC", "0 7 * * *") // Default: 07:00 daily
	if cfg.RunOnStart, err = getBool("RUN_ON_START", false); err != nil {
		return nil, err
	}
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	cfg.HTTPAllowedOrigins = splitList(getEnv("HTTP_ALLOWED_ORIGINS", "*"))

	cfg.JournalDriver = strings.ToLower(getEnv("JOURNAL_DRIVER", "sqlite"))
	cfg.JournalPath = getEnv("JOURNAL_PATH", "data/journal.db")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.RedisAddress = os.Getenv("REDIS_ADDRESS")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RunLockTTL, err = getDuration("RUN_LOCK_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyAllClear, err = getBool("NOTIFY_ALL_CLEAR", true); err != nil {
		return nil, err
	}

	// Email
	if cfg.Email.Enabled, err = getBool("EMAIL_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.Email.SMTPServer = getEnv("SMTP_SERVER", "smtp.163.com")
	if cfg.Email.SMTPPort, err = getInt("SMTP_PORT", 465); err != nil {
		return nil, err
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.From = getEnv("FROM_EMAIL", cfg.Email.Username)
	cfg.Email.To = splitList(getEnv("TO_EMAILS", os.Getenv("TO_EMAIL")))
	if cfg.Email.AttachTable, err = getBool("EMAIL_ATTACH_TABLE", false); err != nil {
		return nil, err
	}

	// Webhook
	if cfg.Webhook.Enabled, err = getBool("WECHAT_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.Webhook.URL = os.Getenv("WECHAT_WEBHOOK_URL")
	cfg.Webhook.Flavor = strings.ToLower(getEnv("WEBHOOK_FLAVOR", "wecom"))
	cfg.Webhook.Secret = os.Getenv("DINGTALK_SECRET")

	// SMS
	if cfg.SMS.Enabled, err = getBool("SMS_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.SMS.APIURL = os.Getenv("SMS_API_URL")
	cfg.SMS.APIKey = os.Getenv("SMS_API_KEY")
	cfg.SMS.Phones = splitList(os.Getenv("SMS_PHONE_NUMBER"))
	cfg.SMS.Region = strings.ToUpper(getEnv("SMS_REGION", "CN"))
	cfg.SMS.Template = getEnv("SMS_TEMPLATE", "summary")

	// Telegram
	if cfg.Telegram.Enabled, err = getBool("TELEGRAM_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		cfg.Telegram.ChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	// Pub/Sub
	if cfg.PubSub.Enabled, err = getBool("PUBSUB_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.PubSub.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	cfg.PubSub.Topic = os.Getenv("PUBSUB_TOPIC")

	return cfg, nil
}

// Validate checks field constraints and the rules that span several fields.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %s", describe(verrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.UpdateStrategy == "decrement" && c.DecrementModeUntil.IsZero() {
		return fmt.Errorf("invalid configuration: UPDATE_STRATEGY=decrement requires DECREMENT_MODE_UNTIL")
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", ve.Namespace(), ve.Tag()))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// splitList splits a comma separated value, dropping empty items. It returns nil for an empty input.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
