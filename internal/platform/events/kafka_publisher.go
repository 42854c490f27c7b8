package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/meridian-goods/api/internal/services"
)

// Publisher emits order and payment domain events to a Kafka topic. A
// publisher built without brokers is a no-op so local setups run without
// a broker.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a Kafka-backed publisher; an empty broker list disables it.
func NewPublisher(brokers []string, topic string) *Publisher {
	cleaned := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if b := strings.TrimSpace(broker); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	if len(cleaned) == 0 || strings.TrimSpace(topic) == "" {
		return &Publisher{}
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cleaned...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Enabled reports whether events will actually be written.
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type orderEventEnvelope struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	PaymentStatus  string         `json:"paymentStatus,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PublishOrderEvent writes an order event keyed by order id.
func (p *Publisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if !p.Enabled() {
		return nil
	}
	return p.publish(ctx, event.OrderID, orderEventEnvelope{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		PaymentStatus:  event.PaymentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt,
		Metadata:       event.Metadata,
	})
}

type paymentEventEnvelope struct {
	Type              string    `json:"type"`
	OrderID           string    `json:"orderId"`
	OrderNumber       string    `json:"orderNumber,omitempty"`
	PaymentID         string    `json:"paymentId"`
	ProviderPaymentID string    `json:"providerPaymentId,omitempty"`
	Status            string    `json:"status"`
	Source            string    `json:"source,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// PublishPaymentEvent writes a payment event keyed by order id so payment and
// order events for one order stay in partition order.
func (p *Publisher) PublishPaymentEvent(ctx context.Context, event services.PaymentEvent) error {
	if !p.Enabled() {
		return nil
	}
	return p.publish(ctx, event.OrderID, paymentEventEnvelope{
		Type:              event.Type,
		OrderID:           event.OrderID,
		OrderNumber:       event.OrderNumber,
		PaymentID:         event.PaymentID,
		ProviderPaymentID: event.ProviderPaymentID,
		Status:            event.Status,
		Source:            event.Source,
		OccurredAt:        event.OccurredAt,
	})
}

func (p *Publisher) publish(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
}
