package events

import (
	"encoding/json"
	"time"

	"github.com/example/minimart/pkg/models"
	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Envelope is the versioned wrapper around every published event. Events for
// one order share a partition key, so consumers see them in order.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID     string  `json:"order_id"`
	UserID      string  `json:"user_id"`
	ItemCount   int     `json:"item_count"`
	TotalAmount float64 `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID string        `json:"order_id"`
	Status  models.Status `json:"status"`
}

func NewEnvelope(eventType, producer, orderID string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       raw,
	}, nil
}

// PartitionKey keeps all events of one order on the same partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
