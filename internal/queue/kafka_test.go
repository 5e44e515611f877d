package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"

	"aispam/internal/domain"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32                       { return nil }
func (s *fakeSession) MemberID() string                                 { return "member" }
func (s *fakeSession) GenerationID() int32                              { return 1 }
func (s *fakeSession) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *fakeSession) Commit()                                          {}
func (s *fakeSession) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "moderation" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestKafkaConsumer_ConsumeClaim_MarksHandledAndUndecodable(t *testing.T) {
	t.Parallel()

	var handled []domain.Message
	c := &KafkaConsumer{
		topic:  "moderation",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler: func(_ context.Context, msg domain.Message) error {
			handled = append(handled, msg)
			if msg.ID == "fail" {
				return errors.New("transport down")
			}
			return nil
		},
	}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 3)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"id":"ok","text":"hello","resource_class":"Decidim::Comments::Comment"}`)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`not json`)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"id":"fail","text":"hi"}`)}
	close(claim.msgs)

	session := &fakeSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, claim); err == nil {
		t.Fatal("expected handler failure to end the claim")
	}

	if len(handled) != 2 {
		t.Fatalf("expected 2 handled records, got %d", len(handled))
	}
	if handled[0].Text != "hello" || handled[0].ResourceClass != domain.ResourceComment {
		t.Errorf("unexpected decoded record %+v", handled[0])
	}
	if len(session.marked) != 2 || session.marked[0] != 1 || session.marked[1] != 2 {
		t.Errorf("expected offsets 1 and 2 marked, got %v", session.marked)
	}
}

func TestKafkaConsumer_ConsumeClaim_StopsAtFailedRecord(t *testing.T) {
	t.Parallel()

	transportDown := errors.New("transport down")
	var handled []string
	c := &KafkaConsumer{
		topic:  "moderation",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler: func(_ context.Context, msg domain.Message) error {
			handled = append(handled, msg.ID)
			if msg.ID == "fail" {
				return transportDown
			}
			return nil
		},
	}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 3)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"id":"fail","text":"hi"}`)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`{"id":"ok","text":"hello"}`)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`not json`)}
	close(claim.msgs)

	session := &fakeSession{ctx: context.Background()}
	err := c.ConsumeClaim(session, claim)
	if !errors.Is(err, transportDown) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(session.marked) != 0 {
		t.Errorf("expected no offset marked past the failed record, got %v", session.marked)
	}
	if len(handled) != 1 {
		t.Errorf("expected consumption to stop at the failed record, handled %v", handled)
	}
	if !c.failed.Load() {
		t.Error("expected the failure to schedule a delayed redelivery")
	}
}

func TestKafkaConsumer_Backoff(t *testing.T) {
	t.Parallel()

	c := &KafkaConsumer{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), retryDelay: time.Millisecond}
	if !c.backoff(context.Background()) {
		t.Error("expected no wait without a failed record")
	}

	c.failed.Store(true)
	if !c.backoff(context.Background()) {
		t.Error("expected backoff to return after the delay")
	}
	if c.failed.Load() {
		t.Error("expected backoff to clear the failure flag")
	}

	c.retryDelay = time.Hour
	c.failed.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.backoff(ctx) {
		t.Error("expected backoff to stop on a cancelled context")
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "verdicts" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "42" {
			return errors.New("unexpected key")
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev domain.VerdictEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		if len(ev.Strategies) != 1 || ev.Strategies[0].Label != "SPAM" {
			return errors.New("unexpected payload " + string(value))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaPublisher(producer, "verdicts")
	defer p.Close()

	ev := domain.VerdictEvent{
		ID:            "42",
		ResourceClass: domain.ResourceComment,
		Strategies:    []domain.StrategyReport{{Strategy: "third_party_user", Label: "SPAM"}},
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Publish(context.Background(), ev); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
}
