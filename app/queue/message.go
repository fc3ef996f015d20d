package queue

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultStreamName           = "mailinglist:emails"
	DefaultConsumerGroup        = "mailinglist-consumers"
	DefaultDeadLetterStreamName = "mailinglist:emails:dead"
)

var ErrMalformedMessage = errors.New("malformed queue message")

type Kind string

const (
	KindSubscribe  Kind = "subscribe"
	KindDailyTopic Kind = "dailytopic"
)

const (
	fieldType  = "type"
	fieldEmail = "email"
	fieldCode  = "code"
	fieldTopic = "topic"
)

// Message is one unit of work on the email stream. Only Subscribe and
// DailyTopic implement it.
type Message interface {
	Kind() Kind
	Recipient() string
	isMessage()
}

// Subscribe asks the consumer to send a verification email.
type Subscribe struct {
	Email string
	Code  string
}

func (Subscribe) Kind() Kind          { return KindSubscribe }
func (m Subscribe) Recipient() string { return m.Email }
func (Subscribe) isMessage()          {}

// DailyTopic asks the consumer to send the topic of the day to one subscriber.
type DailyTopic struct {
	Email string
	Code  string
	Topic string
}

func (DailyTopic) Kind() Kind          { return KindDailyTopic }
func (m DailyTopic) Recipient() string { return m.Email }
func (DailyTopic) isMessage()          {}

// Delivery is a message read from the stream together with its delivery metadata.
type Delivery struct {
	ID        string
	Timestamp time.Time
	Attempts  int
	Message   Message
}

// Encode flattens a message into stream entry values.
func Encode(msg Message) (map[string]interface{}, error) {
	switch m := msg.(type) {
	case Subscribe:
		return map[string]interface{}{
			fieldType:  string(KindSubscribe),
			fieldEmail: m.Email,
			fieldCode:  m.Code,
		}, nil
	case DailyTopic:
		return map[string]interface{}{
			fieldType:  string(KindDailyTopic),
			fieldEmail: m.Email,
			fieldCode:  m.Code,
			fieldTopic: m.Topic,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrMalformedMessage, msg)
	}
}

// Decode rebuilds a message from stream entry values. Every field the variant
// declares must be present and no other field is accepted.
func Decode(values map[string]interface{}) (Message, error) {
	kind, err := stringValue(values, fieldType)
	if err != nil {
		return nil, err
	}

	var declared []string
	switch Kind(kind) {
	case KindSubscribe:
		declared = []string{fieldEmail, fieldCode}
	case KindDailyTopic:
		declared = []string{fieldEmail, fieldCode, fieldTopic}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, kind)
	}

	if err := checkFields(values, declared); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(declared))
	for _, name := range declared {
		v, err := stringValue(values, name)
		if err != nil {
			return nil, err
		}
		fields[name] = v
	}

	switch Kind(kind) {
	case KindSubscribe:
		return Subscribe{Email: fields[fieldEmail], Code: fields[fieldCode]}, nil
	default:
		return DailyTopic{Email: fields[fieldEmail], Code: fields[fieldCode], Topic: fields[fieldTopic]}, nil
	}
}

// TimestampFromID returns the enqueue time encoded in a stream entry ID.
func TimestampFromID(id string) time.Time {
	ms, _, _ := strings.Cut(id, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}

func stringValue(values map[string]interface{}, name string) (string, error) {
	raw, ok := values[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedMessage, name)
	}
	v, ok := raw.(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: empty %s", ErrMalformedMessage, name)
	}
	return v, nil
}

func checkFields(values map[string]interface{}, declared []string) error {
	allowed := map[string]struct{}{fieldType: {}}
	for _, name := range declared {
		allowed[name] = struct{}{}
	}

	var extra []string
	for name := range values {
		if _, ok := allowed[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("%w: unexpected fields %s", ErrMalformedMessage, strings.Join(extra, ", "))
	}
	return nil
}
