// Package events publishes order lifecycle events after their transaction
// commits. Publishers are best-effort: a failed publish is reported to the
// caller but never undoes the committed change.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope sent to every sink.
type Event struct {
	ID         uuid.UUID       `json:"eventId"`
	Type       string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// New wraps payload in an envelope with a fresh ID.
func New(eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    b,
	}, nil
}

// Key returns the partition/routing key for evt: the order ID when the
// payload carries one.
func (e Event) Key() string {
	var p struct {
		OrderID int32 `json:"orderId"`
	}
	if err := json.Unmarshal(e.Payload, &p); err == nil && p.OrderID != 0 {
		return fmt.Sprint(p.OrderID)
	}
	return e.ID.String()
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, evt Event) error

func (f PublisherFunc) Publish(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ── Payloads ──

// OrderItem is one line in an OrderCreated payload.
type OrderItem struct {
	MenuID   int32  `json:"menuId"`
	MenuName string `json:"menuName"`
	Quantity int32  `json:"quantity"`
}

type OrderCreated struct {
	OrderID     int32       `json:"orderId"`
	TotalAmount int64       `json:"totalAmount"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type OrderStatusChanged struct {
	OrderID   int32     `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	UpdatedAt time.Time `json:"updatedAt"`
}
