package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogPublisher writes events to the log instead of delivering them.
type LogPublisher struct {
	logger log.FieldLogger
}

// NewLogPublisher returns a publisher logging through logger, or the standard logger when nil.
func NewLogPublisher(logger log.FieldLogger) *LogPublisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs event at info level.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	fields := log.Fields{
		"event_id":         event.ID,
		"kind":             event.Kind,
		"email":            event.Email,
		"vehicle_id":       event.VehicleID,
		"maintenance_type": event.MaintenanceType,
	}
	if event.NextDueKm > 0 {
		fields["next_due_km"] = event.NextDueKm
	}
	p.logger.WithFields(fields).Info(event.Message)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
