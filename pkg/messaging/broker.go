package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Portal event types.
const (
	EventPrescriptionStatusChanged = "prescription.status_changed"
	EventMedicineStockAdjusted     = "medicine.stock_adjusted"
	EventMedicineChanged           = "medicine.changed"
	EventRecordUploaded            = "patient_record.uploaded"
	EventRecordDeleted             = "patient_record.deleted"
)

// Event is the envelope published for every portal mutation.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Actor      string      `json:"actor"`
	EntityID   string      `json:"entity_id"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func NewEvent(eventType, actor, entityID string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Actor:      actor,
		EntityID:   entityID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
