package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventStatsRefreshRequested = "SellerStatsRefreshRequested"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatsRefreshEvent asks the dashboard to recompute a seller's aggregates.
type StatsRefreshEvent struct {
	SellerID    string    `json:"seller_id"`
	OrderID     string    `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// StatsPublisher emits one refresh event per seller after an order is placed.
type StatsPublisher struct {
	writer messageWriter
	log    *zap.Logger
	now    func() time.Time
}

func NewStatsPublisher(topic string, log *zap.Logger, brokers ...string) *StatsPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newStatsPublisher(w, log)
}

func newStatsPublisher(w messageWriter, log *zap.Logger) *StatsPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsPublisher{writer: w, log: log, now: time.Now}
}

// Refresh publishes the event keyed by seller id so that all events of a
// seller land on one partition.
func (p *StatsPublisher) Refresh(ctx context.Context, sellerID, orderID string) error {
	payload, err := json.Marshal(StatsRefreshEvent{
		SellerID:    sellerID,
		OrderID:     orderID,
		RequestedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal stats refresh event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(sellerID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventStatsRefreshRequested)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish stats refresh for seller %s: %w", sellerID, err)
	}
	p.log.Debug("stats refresh published", zap.String("seller_id", sellerID), zap.String("order_id", orderID))
	return nil
}

func (p *StatsPublisher) Close() error {
	return p.writer.Close()
}
