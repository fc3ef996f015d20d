package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUEUE_BATCH_SIZE", "")
	t.Setenv("TOPIC_RETRY_BASE_DELAY", "")
	t.Setenv("SITE_BASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QueueBatchSize != 10 {
		t.Fatalf("expected batch size 10, got %d", cfg.QueueBatchSize)
	}
	if cfg.TopicRetryBaseDelay != 500*time.Millisecond {
		t.Fatalf("unexpected retry base delay: %s", cfg.TopicRetryBaseDelay)
	}
	if cfg.SiteBaseURL != "https://speechtopics.markhamilton.dev" {
		t.Fatalf("unexpected site base url: %s", cfg.SiteBaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUEUE_BATCH_SIZE", "25")
	t.Setenv("SEND_TIMEOUT", "3s")
	t.Setenv("FANOUT_LOCK", "false")
	t.Setenv("EMAIL_PROVIDER", "NOOP")
	t.Setenv("SITE_BASE_URL", "https://example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QueueBatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.QueueBatchSize)
	}
	if cfg.SendTimeout != 3*time.Second {
		t.Fatalf("expected send timeout 3s, got %s", cfg.SendTimeout)
	}
	if cfg.FanoutLock {
		t.Fatalf("expected fanout lock disabled")
	}
	if cfg.EmailProvider != "noop" {
		t.Fatalf("expected lowercased provider, got %s", cfg.EmailProvider)
	}
	if cfg.SiteBaseURL != "https://example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.SiteBaseURL)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("QUEUE_BATCH_SIZE", "many")
	t.Setenv("SEND_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateMailer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{name: "missing from", cfg: Config{SiteBaseURL: "https://example.com"}, err: ErrMissingMailFrom},
		{name: "resend without key", cfg: Config{MailFrom: "a@b.com", EmailProvider: "resend", SiteBaseURL: "https://example.com"}, err: ErrMissingResendAPIKey},
		{name: "bad base url", cfg: Config{MailFrom: "a@b.com", SiteBaseURL: "example.com"}, err: ErrInvalidSiteBaseURL},
		{name: "valid", cfg: Config{MailFrom: "a@b.com", EmailProvider: "ses", SiteBaseURL: "https://example.com"}, err: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.cfg.ValidateMailer(); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestValidateFanout(t *testing.T) {
	t.Parallel()

	cfg := Config{MySQLDSN: "dsn", TopicAPIURL: "https://example.com/topic", FanoutSchedule: "0 8 * * *"}
	if err := cfg.ValidateFanout(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.FanoutSchedule = "every morning"
	if err := cfg.ValidateFanout(); err == nil {
		t.Fatalf("expected schedule error")
	}

	cfg.FanoutSchedule = "@daily"
	if err := cfg.ValidateFanout(); err != nil {
		t.Fatalf("expected descriptor to parse, got %v", err)
	}

	cfg.TopicAPIURL = ""
	if err := cfg.ValidateFanout(); !errors.Is(err, ErrMissingTopicAPIURL) {
		t.Fatalf("expected ErrMissingTopicAPIURL, got %v", err)
	}
}
