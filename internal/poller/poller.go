package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventOrderPlaced = "order_placed"

const maxClearBackoff = 30 * time.Second

// MessageReader is the part of *kafka.Reader the poller uses. Offsets are
// committed explicitly, once a message has been handled.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartClearer empties a user's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) (*domain.CartView, error)
}

type OrderEvent struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

// Poller empties carts once their orders are placed.
type Poller struct {
	reader  MessageReader
	carts   CartClearer
	backoff time.Duration
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(reader MessageReader, carts CartClearer) *Poller {
	return &Poller{reader: reader, carts: carts, backoff: time.Second}
}

// Run consumes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.FromCtx(ctx).Error("error reading order event", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		logger.L().Warn("error closing kafka reader", zap.Error(err))
	}
}

// poll handles one message. Bad payloads are logged and committed so they
// never block the partition. A cart that cannot be cleared is retried until
// it succeeds; its offset is committed only then, so a restart redelivers it.
func (p *Poller) poll(ctx context.Context) error {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		return err
	}

	log := logger.FromCtx(ctx).With(zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition))

	if userID, ok := p.decode(log, m); ok {
		if err := p.clear(ctx, log, userID); err != nil {
			return err
		}
		log.Info("cleared cart after order", zap.String("user_id", userID))
	}

	if err := p.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

// decode reports the user whose cart the message asks to clear.
func (p *Poller) decode(log *zap.Logger, m kafka.Message) (string, bool) {
	var event OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Warn("skipping malformed order event", zap.Error(err))
		return "", false
	}
	event.UserID = strings.TrimSpace(event.UserID)
	if event.UserID == "" {
		log.Warn("skipping order event without user_id")
		return "", false
	}
	if event.Event != "" && event.Event != EventOrderPlaced {
		log.Debug("ignoring order event", zap.String("event", event.Event))
		return "", false
	}
	return event.UserID, true
}

// clear retries with a doubling backoff. It only gives up when ctx is done.
func (p *Poller) clear(ctx context.Context, log *zap.Logger, userID string) error {
	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		_, err := p.carts.ClearCart(ctx, userID)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("failed to clear cart, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxClearBackoff)
	}
}
