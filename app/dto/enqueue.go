package dto

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrUnknownKind   = errors.New("unknown message kind")
)

type EnqueueRequest struct {
	Email string `query:"email" form:"email" json:"email"`
	Code  string `query:"code" form:"code" json:"code"`
	Topic string `query:"topic" form:"topic" json:"topic"`
}

// FromEchoContext binds and normalizes a request from Echo.
func FromEchoContext(ctx echo.Context) (EnqueueRequest, error) {
	var req EnqueueRequest
	if err := ctx.Bind(&req); err != nil {
		return EnqueueRequest{}, err
	}
	// Echo only binds query parameters for GET, HEAD and DELETE.
	req.fillFrom(ctx.QueryParams())
	req.normalize()
	return req, nil
}

// Validate checks that every field the message kind needs is present and
// names all missing ones.
func (r *EnqueueRequest) Validate(kind queue.Kind) error {
	var missing []string
	switch kind {
	case queue.KindSubscribe:
		missing = appendMissing(missing, "email", r.Email)
		missing = appendMissing(missing, "code", r.Code)
	case queue.KindDailyTopic:
		missing = appendMissing(missing, "email", r.Email)
		missing = appendMissing(missing, "code", r.Code)
		missing = appendMissing(missing, "topic", r.Topic)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return nil
}

// ToMessage validates the request and builds the queue message for kind.
func (r *EnqueueRequest) ToMessage(kind queue.Kind) (queue.Message, error) {
	if err := r.Validate(kind); err != nil {
		return nil, err
	}
	if kind == queue.KindSubscribe {
		return queue.Subscribe{Email: r.Email, Code: r.Code}, nil
	}
	return queue.DailyTopic{Email: r.Email, Code: r.Code, Topic: r.Topic}, nil
}

func (r *EnqueueRequest) fillFrom(values url.Values) {
	if r.Email == "" {
		r.Email = values.Get("email")
	}
	if r.Code == "" {
		r.Code = values.Get("code")
	}
	if r.Topic == "" {
		r.Topic = values.Get("topic")
	}
}

// normalize trims whitespace for all fields.
func (r *EnqueueRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Code = strings.TrimSpace(r.Code)
	r.Topic = strings.TrimSpace(r.Topic)
}

func appendMissing(missing []string, name, value string) []string {
	if value == "" {
		return append(missing, name)
	}
	return missing
}
