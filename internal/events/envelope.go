package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ShipmentCreatedEventName    = "ShipmentCreated"
	ShipmentCreatedEventVersion = 1
	ShipmentCreatedSchema       = "shipping.shipment-created.v1"

	producerName = "shipping-service-go"
)

// EventEnvelope represents the common envelope for all events.
// It is generic to allow strongly typed payloads per event.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// Validate ensures the envelope contains the expected event identity.
func (e EventEnvelope[T]) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName: %s", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion: %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	return nil
}

type ShipmentCreatedPayload struct {
	ShippingID string `json:"shippingId"`
}

type ShipmentCreatedEnvelope = EventEnvelope[ShipmentCreatedPayload]

// encodeShipmentCreated builds the queue message for a new shipment and
// returns its body together with the event id used as message id.
func encodeShipmentCreated(shippingID string, now time.Time) ([]byte, string, error) {
	env := ShipmentCreatedEnvelope{
		EventName:    ShipmentCreatedEventName,
		EventVersion: ShipmentCreatedEventVersion,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: shippingID,
		OccurredAt:   now.UTC(),
		Schema:       ShipmentCreatedSchema,
		Payload:      ShipmentCreatedPayload{ShippingID: shippingID},
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("marshal ShipmentCreated: %w", err)
	}
	return body, env.EventID, nil
}

// decodeShipmentCreated extracts the shipping id and event id from a queue
// message. Bodies that are not an envelope are read as a bare shipping id.
func decodeShipmentCreated(body []byte) (shippingID, eventID string, err error) {
	var env ShipmentCreatedEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.EventName != "" {
		if err := env.Validate(ShipmentCreatedEventName, ShipmentCreatedEventVersion); err != nil {
			return "", "", fmt.Errorf("invalid envelope: %w", err)
		}
		if env.Payload.ShippingID == "" {
			return "", "", fmt.Errorf("invalid payload: missing shippingId")
		}
		return env.Payload.ShippingID, env.EventID, nil
	}

	id := strings.TrimSpace(string(body))
	if id == "" {
		return "", "", fmt.Errorf("empty shipping message")
	}
	return id, "", nil
}
