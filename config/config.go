package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

var (
	ErrMissingMailFrom     = errors.New("MAIL_FROM is required")
	ErrMissingMySQLDSN     = errors.New("MYSQL_DSN is required")
	ErrMissingTopicAPIURL  = errors.New("TOPIC_API_URL is required")
	ErrMissingResendAPIKey = errors.New("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
	ErrInvalidSiteBaseURL  = errors.New("SITE_BASE_URL must be an absolute http(s) URL")
)

type Config struct {
	HTTPHost string
	HTTPPort string

	MySQLDSN     string
	MySQLMaxOpen int
	MySQLMaxIdle int
	MySQLMaxLife time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueStream           string
	QueueGroup            string
	QueueDeadLetterStream string
	QueueBatchSize        int
	QueueBlock            time.Duration
	QueueMaxDeliveries    int
	QueueClaimIdle        time.Duration
	QueueReclaimInterval  time.Duration

	EmailProvider      string
	MailFrom           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	ResendAPIKey       string
	SendConcurrency    int
	SendTimeout        time.Duration

	SiteBaseURL         string
	TopicAPIURL         string
	TopicRequestTimeout time.Duration
	TopicRetryBaseDelay time.Duration
	TopicRetryMaxDelay  time.Duration

	FanoutSchedule    string
	FanoutConcurrency int
	FanoutLock        bool
	FanoutLockTTL     time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var p parser
	cfg := &Config{
		HTTPHost: getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		MySQLDSN:     getEnv("MYSQL_DSN", ""),
		MySQLMaxOpen: p.getInt("MYSQL_MAX_OPEN", 10),
		MySQLMaxIdle: p.getInt("MYSQL_MAX_IDLE", 5),
		MySQLMaxLife: p.getDuration("MYSQL_MAX_LIFETIME", 30*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.getInt("REDIS_DB", 0),

		QueueStream:           getEnv("QUEUE_STREAM", "mailinglist:emails"),
		QueueGroup:            getEnv("QUEUE_GROUP", "mailinglist-consumers"),
		QueueDeadLetterStream: getEnv("QUEUE_DEAD_LETTER_STREAM", "mailinglist:emails:dead"),
		QueueBatchSize:        p.getInt("QUEUE_BATCH_SIZE", 10),
		QueueBlock:            p.getDuration("QUEUE_BLOCK", 5*time.Second),
		QueueMaxDeliveries:    p.getInt("QUEUE_MAX_DELIVERIES", 3),
		QueueClaimIdle:        p.getDuration("QUEUE_CLAIM_IDLE", 5*time.Minute),
		QueueReclaimInterval:  p.getDuration("QUEUE_RECLAIM_INTERVAL", time.Minute),

		EmailProvider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "ses")),
		MailFrom:           getEnv("MAIL_FROM", ""),
		AWSRegion:          getEnv("AWS_REGION", "eu-west-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		SendConcurrency:    p.getInt("SEND_CONCURRENCY", 4),
		SendTimeout:        p.getDuration("SEND_TIMEOUT", 30*time.Second),

		SiteBaseURL:         strings.TrimRight(getEnv("SITE_BASE_URL", "https://speechtopics.markhamilton.dev"), "/"),
		TopicAPIURL:         getEnv("TOPIC_API_URL", ""),
		TopicRequestTimeout: p.getDuration("TOPIC_REQUEST_TIMEOUT", 10*time.Second),
		TopicRetryBaseDelay: p.getDuration("TOPIC_RETRY_BASE_DELAY", 500*time.Millisecond),
		TopicRetryMaxDelay:  p.getDuration("TOPIC_RETRY_MAX_DELAY", 5*time.Second),

		FanoutSchedule:    getEnv("FANOUT_SCHEDULE", "0 8 * * *"),
		FanoutConcurrency: p.getInt("FANOUT_CONCURRENCY", 16),
		FanoutLock:        p.getBool("FANOUT_LOCK", true),
		FanoutLockTTL:     p.getDuration("FANOUT_LOCK_TTL", 23*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateMailer checks the settings the consumer needs to render and send emails.
func (c *Config) ValidateMailer() error {
	if strings.TrimSpace(c.MailFrom) == "" {
		return ErrMissingMailFrom
	}
	if c.EmailProvider == "resend" && c.ResendAPIKey == "" {
		return ErrMissingResendAPIKey
	}
	u, err := url.Parse(c.SiteBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSiteBaseURL
	}
	return nil
}

// ValidateFanout checks the settings the scheduled fan-out needs.
func (c *Config) ValidateFanout() error {
	if c.MySQLDSN == "" {
		return ErrMissingMySQLDSN
	}
	if c.TopicAPIURL == "" {
		return ErrMissingTopicAPIURL
	}
	if _, err := ParseSchedule(c.FanoutSchedule); err != nil {
		return fmt.Errorf("invalid FANOUT_SCHEDULE %q: %w", c.FanoutSchedule, err)
	}
	return nil
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleParser returns the parser for standard five-field cron expressions
// and descriptors such as @daily.
func ScheduleParser() cron.Parser {
	return scheduleParser
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects typed parse errors so Load can report all of them at once.
type parser struct {
	errs []error
}

func (p *parser) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (p *parser) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func (p *parser) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}
