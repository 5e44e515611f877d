package queue

import (
	"context"

	"aispam/internal/domain"
)

// Handler processes one record. A nil return acknowledges it.
type Handler func(ctx context.Context, msg domain.Message) error

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.VerdictEvent) error
	Close() error
}
