// Package events broadcasts real-time stock and order updates to
// subscribers. Delivery is best effort.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	StockUpdated       = "stockUpdated"
	NewNotification    = "newNotification"
	NewOrder           = "newOrder"
	OrderStatusUpdated = "orderStatusUpdated"
	PaymentSuccess     = "paymentSuccess"
)

type Event struct {
	Type       string    `json:"type"`
	TenantID   int64     `json:"tenant_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// ErrQueueFull is returned when the broadcast buffer has no room. The event
// is dropped.
var ErrQueueFull = errors.New("event queue full")

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
	maxBatch            = 100
)

// KafkaPublisher writes one JSON message per event, keyed by tenant so a
// tenant's events stay ordered on one partition. Publish only enqueues; a
// background loop hands messages to the writer.
type KafkaPublisher struct {
	writer       kafkaMessageWriter
	now          func() time.Time
	log          *zap.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka delivery failed", zap.String("topic", topic), zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return newKafkaPublisherWith(writer, time.Now, log, defaultQueueSize)
}

func newKafkaPublisherWith(w kafkaMessageWriter, now func() time.Time, log *zap.Logger, queueSize int) *KafkaPublisher {
	k := &KafkaPublisher{
		writer:       w,
		now:          now,
		log:          log,
		writeTimeout: defaultWriteTimeout,
		queue:        make(chan kafka.Message, queueSize),
		done:         make(chan struct{}),
	}
	go k.run()
	return k
}

// Publish never waits on the broker. It fails only when the event cannot be
// encoded, the buffer is full, or the publisher is closed.
func (k *KafkaPublisher) Publish(_ context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = k.now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:     []byte(strconv.FormatInt(e.TenantID, 10)),
		Value:   body,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(e.Type)}},
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return fmt.Errorf("publish %s event: publisher closed", e.Type)
	}
	select {
	case k.queue <- msg:
		return nil
	default:
		return fmt.Errorf("publish %s event: %w", e.Type, ErrQueueFull)
	}
}

func (k *KafkaPublisher) run() {
	defer close(k.done)
	for msg := range k.queue {
		batch := []kafka.Message{msg}
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-k.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), k.writeTimeout)
		if err := k.writer.WriteMessages(ctx, batch...); err != nil {
			k.log.Warn("kafka publish failed", zap.Int("messages", len(batch)), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events, flushes what is queued and closes the writer.
func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.queue)
	k.mu.Unlock()

	<-k.done
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Debug("event",
		zap.String("type", e.Type),
		zap.Int64("tenant_id", e.TenantID),
		zap.Any("payload", e.Payload),
	)
	return nil
}
