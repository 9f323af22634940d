package events

import (
	"context"
	"encoding/json"

	"github.com/example/minimart/pkg/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes order events asynchronously. Publication is
// fire-and-forget: a broker outage never affects the placement outcome.
type Producer struct {
	writer  *kafka.Writer
	inbox   chan kafka.Message
	done    chan struct{}
	logger  *zap.Logger
	service string
}

func NewProducer(brokers []string, topic string, buffer int, service string, logger *zap.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buffer),
		done:    make(chan struct{}),
		logger:  logger,
		service: service,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.writer.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	close(p.inbox)
	for m := range p.inbox {
		p.write(m)
	}
	_ = p.writer.Close()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.writer.WriteMessages(context.Background(), m); err != nil {
		p.logger.Warn("Failed to publish event", zap.Error(err))
	}
}

// Publish enqueues an envelope; it drops the event with a warning when the
// buffer is full rather than blocking the request path.
func (p *Producer) Publish(env *Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("Failed to marshal event", zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   PartitionKey(env.CorrelationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Warn("Event buffer full, dropping event",
			zap.String("event_type", env.EventType),
			zap.String("correlation_id", env.CorrelationID))
	}
}

// WaitClosed blocks until buffered events are flushed after ctx cancellation.
func (p *Producer) WaitClosed() { <-p.done }

// OrderPlaced publishes an OrderPlaced event for a committed order.
func (p *Producer) OrderPlaced(orderID, userID string, itemCount int, totalAmount float64) {
	env, err := NewEnvelope(EventOrderPlaced, p.service, orderID, OrderPlacedPayload{
		OrderID:     orderID,
		UserID:      userID,
		ItemCount:   itemCount,
		TotalAmount: totalAmount,
	})
	if err != nil {
		p.logger.Warn("Failed to build event", zap.Error(err))
		return
	}
	p.Publish(env)
}

func (p *Producer) OrderStatusChanged(orderID string, status string) {
	env, err := NewEnvelope(EventOrderStatusChanged, p.service, orderID, OrderStatusChangedPayload{
		OrderID: orderID,
		Status:  models.Status(status),
	})
	if err != nil {
		p.logger.Warn("Failed to build event", zap.Error(err))
		return
	}
	p.Publish(env)
}
