package kafka

import (
	"context"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// EventPublisher publishes domain events through a Publisher.
type EventPublisher struct {
	publisher Publisher
	encoding  string
	logger    logging.Logger
}

// NewEventPublisher returns an EventPublisher writing payloads in encoding
// (EncodingJSON or EncodingProto).
func NewEventPublisher(p Publisher, encoding string, log logging.Logger) *EventPublisher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if encoding != EncodingProto {
		encoding = EncodingJSON
	}
	return &EventPublisher{publisher: p, encoding: encoding, logger: log.Named("events")}
}

// PublishCompoundAnalyzed publishes ev to TopicCompoundAnalyzed, carrying the
// request ID of ctx in the envelope.
func (e *EventPublisher) PublishCompoundAnalyzed(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error {
	msg, err := NewCompoundAnalyzedMessage(ev, logging.RequestIDFromContext(ctx), e.encoding)
	if err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, msg); err != nil {
		return err
	}
	e.logger.Debug("published compound analyzed event",
		logging.String("event_id", ev.EventID),
		logging.String("canonical_smiles", ev.CanonicalSMILES))
	return nil
}
