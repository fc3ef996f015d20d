package topic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxAttempts is the total number of fetch attempts per tick.
const MaxAttempts = 3

const maxBodySize = 64 << 10

var (
	ErrFetchFailed = errors.New("content fetch failed")
	ErrEmptyTopic  = errors.New("empty topic body")
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

type Config struct {
	URL            string
	RequestTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client fetches the topic of the day from the content API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logrus.FieldLogger
}

// NewClient builds a content API client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the trimmed topic text. It makes at most MaxAttempts requests
// and wraps ErrFetchFailed with the last cause when all of them fail.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		topic, err := c.fetchOnce(ctx)
		if err == nil {
			return topic, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		c.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": MaxAttempts,
		}).WithError(err).Warn("Topic fetch failed")

		if attempt == MaxAttempts {
			break
		}
		if err := wait(ctx, c.backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrFetchFailed, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	topic := strings.TrimSpace(string(body))
	if topic == "" {
		return "", ErrEmptyTopic
	}
	return topic, nil
}

// backoff returns a full-jitter delay for the given attempt, capped at MaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	if c.cfg.BaseDelay <= 0 {
		return 0
	}
	d := c.cfg.BaseDelay << (attempt - 1)
	if d <= 0 || d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	return rand.N(d + 1)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
