package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Refresher recomputes and caches a seller's dashboard aggregate.
type Refresher interface {
	Refresh(ctx context.Context, sellerID, orderID string) error
}

// StatsConsumer applies seller stats refresh events to the stats cache.
type StatsConsumer struct {
	refresher Refresher
	reader    messageReader
	log       *zap.Logger
}

func NewStatsConsumer(refresher Refresher, topic, groupID string, log *zap.Logger, brokers ...string) *StatsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newStatsConsumer(refresher, reader, log)
}

func newStatsConsumer(refresher Refresher, reader messageReader, log *zap.Logger) *StatsConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsConsumer{refresher: refresher, reader: reader, log: log}
}

func (c *StatsConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *StatsConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *StatsConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("error reading message", zap.Error(err))
		return
	}

	var event publisher.StatsRefreshEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.Error("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if event.SellerID == "" {
		c.log.Warn("stats refresh event without seller id", zap.Int64("offset", m.Offset))
		return
	}

	if err := c.refresher.Refresh(ctx, event.SellerID, event.OrderID); err != nil {
		c.log.Error("failed to refresh seller stats", zap.String("seller_id", event.SellerID), zap.String("order_id", event.OrderID), zap.Error(err))
		return
	}
	c.log.Debug("seller stats refreshed from event", zap.String("seller_id", event.SellerID), zap.String("order_id", event.OrderID))
}
