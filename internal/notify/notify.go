// Package notify delivers maintenance events to an external sink.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/config"
)

// Kind identifies the event type.
type Kind string

const (
	KindMaintenanceRegistered Kind = "maintenance_registered"
	KindMaintenanceDue        Kind = "maintenance_due"
)

// Supported sinks.
const (
	SinkLog   = "log"
	SinkMQTT  = "mqtt"
	SinkKafka = "kafka"
)

// Event is one notification addressed to a vehicle owner.
type Event struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"kind"`
	UserID          string     `json:"user_id"`
	Email           string     `json:"email"`
	VehicleID       string     `json:"vehicle_id"`
	MaintenanceType string     `json:"maintenance_type"`
	NextDueKm       int        `json:"next_due_km,omitempty"`
	NextDueDate     *time.Time `json:"next_due_date,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Message         string     `json:"message"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// Publisher sends events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewEvent fills in the id of an event.
func NewEvent(kind Kind, occurredAt time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: kind, OccurredAt: occurredAt}
}

// RegisteredMessage is the text sent after a maintenance is logged.
func RegisteredMessage(typeName, vehicleModel string, nextDueKm int) string {
	return fmt.Sprintf("Manutenção '%s' registrada para %s. Próxima troca prevista em %dkm.", typeName, vehicleModel, nextDueKm)
}

func (e Event) payload() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return b, nil
}

// New builds the publisher selected by cfg.Sink.
func New(cfg config.NotifyConfig, logger log.FieldLogger) (Publisher, error) {
	switch cfg.Sink {
	case "", SinkLog:
		return NewLogPublisher(logger), nil
	case SinkMQTT:
		return NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
	case SinkKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unknown alert sink %q", cfg.Sink)
	}
}
