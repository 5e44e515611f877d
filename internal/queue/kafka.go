package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"aispam/internal/domain"
)

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return newKafkaPublisher(producer, topic), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends one verdict event keyed by the id of the record it describes.
func (k *KafkaPublisher) Publish(_ context.Context, ev domain.VerdictEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.ID),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}

type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	logger  *slog.Logger
	handler Handler

	// retryDelay is the pause before a new session after a record failed.
	retryDelay time.Duration
	failed     atomic.Bool
}

func NewKafkaConsumer(brokers []string, groupID, topic string, logger *slog.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &KafkaConsumer{
		group:      group,
		topic:      topic,
		logger:     logger.With("component", "kafka", "topic", topic),
		retryDelay: 5 * time.Second,
	}, nil
}

func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	c.handler = handler

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				return err
			}
			if !c.backoff(ctx) {
				return nil
			}
		}
	}
}

// backoff waits retryDelay if the last session ended on a failed record.
// It returns false when ctx is done first.
func (c *KafkaConsumer) backoff(ctx context.Context) bool {
	if !c.failed.Swap(false) {
		return true
	}
	c.logger.Info("redelivering after failed record", "delay", c.retryDelay)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryDelay):
		return true
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

func (c *KafkaConsumer) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (c *KafkaConsumer) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var message domain.Message
		if err := json.Unmarshal(msg.Value, &message); err != nil {
			c.logger.Error("dropping undecodable record", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			session.MarkMessage(msg, "")
			continue
		}

		// Offsets are cumulative, so nothing after a failed record may be
		// marked. Ending the claim lets the next session redeliver it.
		if err := c.handler(session.Context(), message); err != nil {
			c.logger.Warn("record left unacknowledged", "id", message.ID, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			c.failed.Store(true)
			return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}

		session.MarkMessage(msg, "")
	}
	return nil
}
