package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Renderer turns queued messages into provider-ready emails. It holds no
// mutable state and is safe for concurrent use.
type Renderer struct {
	from    string
	baseURL string
	now     func() time.Time
}

type Option func(*Renderer)

// WithClock overrides the clock used for date-stamped subjects.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a renderer that sends from the given address and links to baseURL.
func New(from, baseURL string, opts ...Option) *Renderer {
	r := &Renderer{
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the email for msg.
func (r *Renderer) Render(msg queue.Message) (entity.RenderedEmail, error) {
	switch m := msg.(type) {
	case queue.Subscribe:
		return r.renderSubscribe(m)
	case queue.DailyTopic:
		return r.renderDailyTopic(m)
	default:
		return entity.RenderedEmail{}, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

func (r *Renderer) renderSubscribe(m queue.Subscribe) (entity.RenderedEmail, error) {
	data := subscribeData{
		VerifyURL:      r.link("/mailinglist/verify", m.Email, m.Code),
		UnsubscribeURL: r.link("/mailinglist/unsubscribe", m.Email, m.Code),
		SiteURL:        r.baseURL,
	}

	var html, text bytes.Buffer
	if err := subscribeHTML.Execute(&html, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render subscribe html: %w", err)
	}
	if err := subscribeText.Execute(&text, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render subscribe text: %w", err)
	}

	return entity.RenderedEmail{
		To:      m.Email,
		From:    r.from,
		Subject: subscribeSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func (r *Renderer) renderDailyTopic(m queue.DailyTopic) (entity.RenderedEmail, error) {
	data := dailyTopicData{
		Topic:          m.Topic,
		UnsubscribeURL: r.link("/mailinglist/unsubscribe", m.Email, m.Code),
		SiteURL:        r.baseURL,
	}

	var html, text bytes.Buffer
	if err := dailyTopicHTML.Execute(&html, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render daily topic html: %w", err)
	}
	if err := dailyTopicText.Execute(&text, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render daily topic text: %w", err)
	}

	return entity.RenderedEmail{
		To:      m.Email,
		From:    r.from,
		Subject: dailyTopicSubject + formatDay(r.now()),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// link builds <base><path>?email=<email>&code=<code> with escaped values.
func (r *Renderer) link(path, email, code string) string {
	return r.baseURL + path + "?email=" + queryEscape(email) + "&code=" + queryEscape(code)
}

// queryEscape escapes a query value but keeps '@', which is legal in a query
// and keeps addresses readable.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%40", "@")
}
