package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"aispam/internal/domain"
	"aispam/internal/queue"
	"aispam/internal/service"
)

var ErrInterrupted = errors.New("classification interrupted by transport failure")

type Classifier interface {
	Classify(ctx context.Context, text, organizationHost, resourceClass string) []service.Outcome
}

type Broadcaster interface {
	Broadcast(msg string)
}

type Consumer struct {
	consumer    queue.Consumer
	classifier  Classifier
	broadcaster Broadcaster
	publisher   queue.Publisher
	logger      *slog.Logger
}

// NewConsumer wires a queue to the classification service. b may be nil.
func NewConsumer(c queue.Consumer, cl Classifier, b Broadcaster, logger *slog.Logger) *Consumer {
	return &Consumer{
		consumer:    c,
		classifier:  cl,
		broadcaster: b,
		logger:      logger.With("component", "worker"),
	}
}

// WithPublisher sends a verdict event for every fully classified record.
// A failed publish leaves the record unacknowledged.
func (w *Consumer) WithPublisher(p queue.Publisher) *Consumer {
	w.publisher = p
	return w
}

func (w *Consumer) Start(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.handleMessage)
}

func (w *Consumer) handleMessage(ctx context.Context, msg domain.Message) error {
	w.logger.Debug("received", "id", msg.ID, "resource_class", msg.ResourceClass)

	outcomes := w.classifier.Classify(ctx, msg.Text, msg.OrganizationHost, string(msg.ResourceClass))
	if outcomes == nil {
		w.logger.Info("skipped blank content", "id", msg.ID)
		return nil
	}

	reports := service.Report(outcomes)
	for _, r := range reports {
		if r.Error != "" {
			w.logger.Error("classify", "id", msg.ID, "strategy", r.Strategy, "kind", r.ErrorKind, "error", r.Error)
			continue
		}
		w.logger.Info("classified", "id", msg.ID, "strategy", r.Strategy, "label", r.Label, "score", *r.Score)
	}

	ev := domain.VerdictEvent{ID: msg.ID, ResourceClass: msg.ResourceClass, Strategies: reports}
	if w.broadcaster != nil {
		if data, err := json.Marshal(ev); err == nil {
			w.broadcaster.Broadcast(string(data))
		}
	}

	// An interrupted record is redelivered, so it is published on the retry.
	if service.Interrupted(outcomes) {
		return ErrInterrupted
	}

	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, ev); err != nil {
			w.logger.Error("publish verdict", "id", msg.ID, "error", err)
			return fmt.Errorf("publish verdict %s: %w", msg.ID, err)
		}
	}
	return nil
}
