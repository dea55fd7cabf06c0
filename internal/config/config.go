package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config keeps runtime settings for the scheduler daemon.
type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-default:"taskpulse.db"`
	Timezone    string `yaml:"timezone" env:"TIMEZONE" env-default:"UTC"`
	BatchSize   int    `yaml:"batch_size" env:"BATCH_SIZE" env-default:"100"`

	Recurrence RecurrenceConfig `yaml:"recurrence"`
	Digest     DigestConfig     `yaml:"digest"`
	Redis      RedisConfig      `yaml:"redis"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Log        LogConfig        `yaml:"log"`

	TelegramToken string `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
}

type RecurrenceConfig struct {
	Interval   time.Duration `yaml:"interval" env:"RECURRENCE_INTERVAL" env-default:"1h"`
	ClaimLease time.Duration `yaml:"claim_lease" env:"RECURRENCE_CLAIM_LEASE" env-default:"15m"`
}

type DigestConfig struct {
	DailyAt       string  `yaml:"daily_at" env:"DAILY_DIGEST_AT" env-default:"09:00"`
	WeeklyDay     string  `yaml:"weekly_day" env:"WEEKLY_DIGEST_DAY" env-default:"monday"`
	DueReminderAt string  `yaml:"due_reminder_at" env:"DUE_REMINDER_AT" env-default:"08:00"`
	RatePerSec    float64 `yaml:"rate_per_sec" env:"MAIL_RATE_PER_SEC" env-default:"5"`
	QueueSize     int     `yaml:"queue_size" env:"MAIL_QUEUE_SIZE" env-default:"256"`
	// SendTimeout bounds one Telegram API call.
	SendTimeout time.Duration `yaml:"send_timeout" env:"MAIL_SEND_TIMEOUT" env-default:"10s"`
}

type RedisConfig struct {
	// URL is optional; without it digests go through the in-process queue.
	URL           string `yaml:"url" env:"REDIS_URL"`
	MailQueueKey  string `yaml:"mail_queue_key" env:"MAIL_QUEUE_KEY" env-default:"taskpulse:mail"`
	EventsChannel string `yaml:"events_channel" env:"EVENTS_CHANNEL" env-default:"taskpulse:events"`
}

type SMTPConfig struct {
	Address  string `yaml:"address" env:"SMTP_ADDRESS"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	Domain   string `yaml:"domain" env:"SMTP_DOMAIN"`
	From     string `yaml:"from" env:"MAILER_FROM"`
	// Timeout bounds one SMTP session.
	Timeout time.Duration `yaml:"timeout" env:"SMTP_TIMEOUT" env-default:"10s"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Load reads configuration from CONFIG_FILE (if set) and environment variables.
func Load() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Recurrence.Interval <= 0 {
		return fmt.Errorf("RECURRENCE_INTERVAL must be positive")
	}
	if c.Recurrence.ClaimLease <= 0 {
		return fmt.Errorf("RECURRENCE_CLAIM_LEASE must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	for name, v := range map[string]string{
		"DAILY_DIGEST_AT": c.Digest.DailyAt,
		"DUE_REMINDER_AT": c.Digest.DueReminderAt,
	} {
		if _, _, err := ParseClock(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := ParseWeekday(c.Digest.WeeklyDay); err != nil {
		return fmt.Errorf("WEEKLY_DIGEST_DAY: %w", err)
	}
	if c.Digest.SendTimeout <= 0 {
		c.Digest.SendTimeout = 10 * time.Second
	}
	if c.SMTP.Timeout <= 0 {
		c.SMTP.Timeout = 10 * time.Second
	}
	if c.SMTP.From == "" && c.SMTP.Domain != "" {
		c.SMTP.From = "noreply@" + c.SMTP.Domain
	}
	return nil
}

// Location returns the configured default zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses an HH:MM wall-clock time.
func ParseClock(timeStr string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", timeStr)
	}
	return hour, minute, nil
}

// ParseWeekday accepts english day names ("monday", "Mon") or 0-6.
func ParseWeekday(raw string) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday %d out of range", n)
		}
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}
