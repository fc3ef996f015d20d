package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	client *redis.Client
	stream string
}

// NewProducer constructs a Redis stream producer for the given stream.
func NewProducer(client *redis.Client, stream string) *Producer {
	if stream == "" {
		stream = DefaultStreamName
	}
	return &Producer{client: client, stream: stream}
}

// Publish appends one message to the stream and returns its entry ID.
func (p *Producer) Publish(ctx context.Context, msg Message) (string, error) {
	values, err := Encode(msg)
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to %s: %w", p.stream, err)
	}
	return id, nil
}
