// README: Ride status change events published to Kafka after the owning transaction commits.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"isuride/internal/types"
)

// RideStatusChanged is emitted once per appended ride status.
type RideStatusChanged struct {
	RideID  types.ID  `json:"ride_id"`
	UserID  types.ID  `json:"user_id"`
	ChairID *types.ID `json:"chair_id,omitempty"`
	Status  string    `json:"status"`
	Trigger string    `json:"trigger"`
	At      time.Time `json:"at"`
}

// Publisher is best effort: failures are logged, never returned to the caller
// whose transaction already committed.
type Publisher interface {
	RideStatusChanged(ctx context.Context, ev RideStatusChanged)
	Close() error
}

type Nop struct{}

func (Nop) RideStatusChanged(context.Context, RideStatusChanged) {}
func (Nop) Close() error                                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	log     *zap.Logger
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log, timeout: 2 * time.Second}
}

// New returns a Kafka publisher, or Nop when no brokers are configured.
func New(brokers []string, topic string, log *zap.Logger) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic, log)
}

// RideStatusChanged keys messages by ride id so one ride's events stay ordered
// within a partition.
func (p *KafkaPublisher) RideStatusChanged(ctx context.Context, ev RideStatusChanged) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal ride event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RideID), Value: b}); err != nil {
		p.log.Warn("publish ride event",
			zap.String("ride_id", string(ev.RideID)),
			zap.String("status", ev.Status),
			zap.Error(err),
		)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
