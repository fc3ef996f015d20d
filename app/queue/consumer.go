package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

var errNoResult = errors.New("batch handler returned no result")

// BatchHandler processes a batch of deliveries and reports one Result per delivery.
type BatchHandler interface {
	HandleBatch(ctx context.Context, batch []Delivery) []Result
}

// Result is the outcome of handling one delivery. A nil Err acknowledges it.
type Result struct {
	ID  string
	Err error
}

// DeliveryRecorder stores delivery outcomes.
type DeliveryRecorder interface {
	Record(ctx context.Context, rec entity.DeliveryRecord) error
}

type ConsumerConfig struct {
	Stream           string
	Group            string
	DeadLetterStream string
	BatchSize        int
	Block            time.Duration
	MaxDeliveries    int
	ClaimIdle        time.Duration
	ReclaimInterval  time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.Stream == "" {
		c.Stream = DefaultStreamName
	}
	if c.Group == "" {
		c.Group = DefaultConsumerGroup
	}
	if c.DeadLetterStream == "" {
		c.DeadLetterStream = DefaultDeadLetterStreamName
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 3
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = time.Minute
	}
	return c
}

type ConsumerOption func(*Consumer)

// WithLogger sets the logger used by the consumer.
func WithLogger(l logrus.FieldLogger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRecorder records dead-lettered deliveries.
func WithRecorder(r DeliveryRecorder) ConsumerOption {
	return func(c *Consumer) {
		c.recorder = r
	}
}

type Consumer struct {
	client       *redis.Client
	handler      BatchHandler
	consumerName string
	cfg          ConsumerConfig
	recorder     DeliveryRecorder
	log          logrus.FieldLogger
	lastReclaim  time.Time
}

// NewConsumer constructs a Redis stream consumer that hands batches to handler.
func NewConsumer(client *redis.Client, handler BatchHandler, consumerName string, cfg ConsumerConfig, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:       client,
		handler:      handler,
		consumerName: consumerName,
		cfg:          cfg.withDefaults(),
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts the consumer loop and blocks until context cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	log := c.log.WithFields(logrus.Fields{"consumer": c.consumerName, "stream": c.cfg.Stream})
	log.Info("Consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Consumer shutting down")
			return nil
		default:
		}

		if time.Since(c.lastReclaim) >= c.cfg.ReclaimInterval {
			c.reclaim(ctx)
			c.lastReclaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.consumerName,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    int64(c.cfg.BatchSize),
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No messages available within block timeout.
				continue
			}
			if ctx.Err() != nil {
				log.Info("Consumer shutting down")
				return nil
			}
			log.WithError(err).Error("XReadGroup failed")
			sleep(ctx, time.Second)
			continue
		}

		for _, stream := range streams {
			c.processBatch(ctx, stream.Messages, nil)
		}
	}
}

// reclaim takes over entries that stayed pending longer than ClaimIdle,
// which is how failed sends get redelivered.
func (c *Consumer) reclaim(ctx context.Context) {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.consumerName,
			MinIdle:  c.cfg.ClaimIdle,
			Start:    start,
			Count:    int64(c.cfg.BatchSize),
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Error("XAutoClaim failed")
			}
			return
		}

		if len(msgs) > 0 {
			c.processBatch(ctx, msgs, c.deliveryCounts(ctx, msgs))
		}
		if len(msgs) == 0 || next == "" || next == "0-0" {
			return
		}
		start = next
	}
}

// deliveryCounts looks up how many times each pending entry has been delivered.
func (c *Consumer) deliveryCounts(ctx context.Context, msgs []redis.XMessage) map[string]int {
	counts := make(map[string]int, len(msgs))
	for _, msg := range msgs {
		pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: c.cfg.Stream,
			Group:  c.cfg.Group,
			Start:  msg.ID,
			End:    msg.ID,
			Count:  1,
		}).Result()
		if err != nil || len(pending) == 0 {
			continue
		}
		counts[msg.ID] = int(pending[0].RetryCount)
	}
	return counts
}

// processBatch decodes entries, hands them to the handler, then acks successes
// and dead-letters entries that ran out of deliveries. Failed entries below the
// limit stay pending.
func (c *Consumer) processBatch(ctx context.Context, msgs []redis.XMessage, attempts map[string]int) {
	batch := make([]Delivery, 0, len(msgs))
	values := make(map[string]map[string]interface{}, len(msgs))

	for _, msg := range msgs {
		n := 1
		if a, ok := attempts[msg.ID]; ok && a > 0 {
			n = a
		}

		decoded, err := Decode(msg.Values)
		if err != nil {
			c.log.WithFields(logrus.Fields{"message_id": msg.ID}).WithError(err).Error("Dropping malformed message")
			c.deadLetter(ctx, msg.ID, msg.Values, n, nil, err)
			continue
		}

		d := Delivery{
			ID:        msg.ID,
			Timestamp: TimestampFromID(msg.ID),
			Attempts:  n,
			Message:   decoded,
		}
		c.log.WithFields(logrus.Fields{
			"message_id": d.ID,
			"enqueued":   d.Timestamp.Format(time.RFC3339),
			"attempt":    d.Attempts,
			"kind":       d.Message.Kind(),
			"recipient":  d.Message.Recipient(),
		}).Info("Processing message")

		batch = append(batch, d)
		values[d.ID] = msg.Values
	}

	if len(batch) == 0 {
		return
	}

	outcome := make(map[string]error, len(batch))
	handled := make(map[string]bool, len(batch))
	for _, r := range c.handler.HandleBatch(ctx, batch) {
		outcome[r.ID] = r.Err
		handled[r.ID] = true
	}

	for _, d := range batch {
		err := outcome[d.ID]
		if !handled[d.ID] {
			err = errNoResult
		}

		if err == nil {
			if ackErr := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, d.ID).Err(); ackErr != nil {
				c.log.WithField("message_id", d.ID).WithError(ackErr).Error("XAck failed")
			}
			continue
		}

		log := c.log.WithFields(logrus.Fields{"message_id": d.ID, "attempt": d.Attempts}).WithError(err)
		if d.Attempts >= c.cfg.MaxDeliveries {
			log.Error("Delivery attempts exhausted, dead-lettering message")
			c.deadLetter(ctx, d.ID, values[d.ID], d.Attempts, d.Message, err)
			continue
		}
		log.Warn("Delivery failed, message stays pending for redelivery")
	}
}

// deadLetter copies an entry to the dead-letter stream and acks the original.
func (c *Consumer) deadLetter(ctx context.Context, id string, values map[string]interface{}, attempts int, msg Message, cause error) {
	dead := make(map[string]interface{}, len(values)+3)
	for k, v := range values {
		dead[k] = v
	}
	dead["source_id"] = id
	dead["attempts"] = strconv.Itoa(attempts)
	dead["error"] = cause.Error()

	log := c.log.WithField("message_id", id)
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DeadLetterStream, Values: dead}).Err(); err != nil {
		// Leave the entry pending rather than lose it.
		log.WithError(err).Error("Dead-letter XAdd failed")
		return
	}
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		log.WithError(err).Error("XAck failed")
	}

	if c.recorder == nil {
		return
	}
	rec := entity.DeliveryRecord{
		MessageID: id,
		Status:    entity.DeliveryStatusDeadLettered,
		Attempts:  attempts,
		LastError: cause.Error(),
	}
	if msg != nil {
		rec.Kind = string(msg.Kind())
		rec.Recipient = msg.Recipient()
	} else {
		rec.Kind, _ = values[fieldType].(string)
		rec.Recipient, _ = values[fieldEmail].(string)
	}
	if err := c.recorder.Record(ctx, rec); err != nil {
		log.WithError(err).Warn("Recording dead-lettered delivery failed")
	}
}

// ensureGroup creates the stream and consumer group if missing.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.cfg.Group, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
