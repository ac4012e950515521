package urgency

import (
	"context"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/messaging"
)

// QueueChannel carries admission lifecycle events.
const QueueChannel = "ed-intake:cola"

const (
	EventAdmissionQueued    = "ingreso.creado"
	EventAdmissionClaimed   = "ingreso.en_proceso"
	EventAdmissionFinalized = "ingreso.finalizado"
)

// QueueEvent is the payload of every queue event.
type QueueEvent struct {
	AdmissionID string                `json:"id"`
	Status      model.AdmissionStatus `json:"estado"`
	Priority    model.TriagePriority  `json:"nivelEmergencia,omitempty"`
}

type Option func(*Service)

// WithBroker publishes queue events on broker. Publishing is best effort:
// a failed publish is logged and never fails the request.
func WithBroker(broker messaging.Broker) Option {
	return func(s *Service) { s.broker = broker }
}

func (s *Service) publish(ctx context.Context, eventType string, ev QueueEvent) {
	if s.broker == nil {
		return
	}
	msg, err := messaging.NewMessage(eventType, ev)
	if err == nil {
		err = s.broker.Publish(ctx, QueueChannel, msg)
	}
	if err != nil {
		s.logger.Error(err, "failed to publish queue event", "type", eventType, "admission_id", ev.AdmissionID)
	}
}
