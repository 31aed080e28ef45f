package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"stakehouse/domain/events"
	"stakehouse/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// NATSEventSubscriber subscribes to NATS subjects and deserializes events for application handlers
type NATSEventSubscriber struct {
	bus           MessageSubscriber
	subjectMapper *EventSubjectMapper
	mu            sync.RWMutex
	handlers      map[string]func(context.Context, events.Event) error
}

// NewNATSEventSubscriber creates a new NATS event subscriber
func NewNATSEventSubscriber(bus MessageSubscriber, subjectMapper *EventSubjectMapper) *NATSEventSubscriber {
	return &NATSEventSubscriber{
		bus:           bus,
		subjectMapper: subjectMapper,
		handlers:      make(map[string]func(context.Context, events.Event) error),
	}
}

// Subscribe registers a handler for a specific event type
func (s *NATSEventSubscriber) Subscribe(eventType events.EventType, handler func(context.Context, events.Event) error) error {
	subject := s.subjectMapper.MapEventTypeToSubject(eventType)

	s.mu.Lock()
	s.handlers[subject] = handler
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType": eventType,
		"subject":   subject,
	}).Info("Registering event handler for subject")

	return s.bus.Subscribe(subject, func(data []byte) error {
		return s.handleMessage(subject, data)
	})
}

// handleMessage deserializes a NATS message and routes it to the appropriate handler
func (s *NATSEventSubscriber) handleMessage(subject string, data []byte) error {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to unmarshal event envelope")
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	eventType := events.EventType(envelope.EventType)
	if eventType == "" {
		eventType = s.subjectMapper.MapSubjectToEventType(subject)
	}

	if metrics := observability.GetMetrics(); metrics != nil {
		metrics.RecordNATSMessageReceived(string(eventType))
	}

	event, err := deserializeEvent(eventType, envelope.Payload)
	if err != nil {
		log.WithFields(log.Fields{
			"subject":     subject,
			"eventType":   eventType,
			"eventId":     envelope.EventID,
			"payloadSize": len(envelope.Payload),
			"error":       err,
		}).Error("Failed to deserialize event payload")
		return fmt.Errorf("failed to deserialize event payload: %w", err)
	}

	s.mu.RLock()
	handler, exists := s.handlers[subject]
	s.mu.RUnlock()
	if !exists {
		log.WithFields(log.Fields{
			"subject":   subject,
			"eventType": eventType,
		}).Warn("No handler registered for subject")
		return fmt.Errorf("no handler registered for subject %s", subject)
	}

	if err := handler(context.Background(), event); err != nil {
		log.WithFields(log.Fields{
			"subject":   subject,
			"eventType": eventType,
			"eventId":   envelope.EventID,
			"error":     err,
		}).Error("Event handler failed")
		return err
	}

	log.WithFields(log.Fields{
		"subject":   subject,
		"eventType": eventType,
		"eventId":   envelope.EventID,
	}).Debug("Successfully processed NATS event")

	return nil
}

// deserializeEvent decodes the payload into the concrete event type
func deserializeEvent(eventType events.EventType, payload []byte) (events.Event, error) {
	switch eventType {
	case events.EventTypeSessionFinalized:
		return decodeEvent[events.SessionFinalizedEvent](payload)
	case events.EventTypeSessionResultsReported:
		return decodeEvent[events.SessionResultsReportedEvent](payload)
	case events.EventTypeStakeUpserted:
		return decodeEvent[events.StakeUpsertedEvent](payload)
	case events.EventTypeStakeSettled:
		return decodeEvent[events.StakeSettledEvent](payload)
	case events.EventTypeStakeDeclined:
		return decodeEvent[events.StakeDeclinedEvent](payload)
	case events.EventTypeStakeMigrated:
		return decodeEvent[events.StakeMigratedEvent](payload)
	case events.EventTypeInviteCreated:
		return decodeEvent[events.InviteCreatedEvent](payload)
	case events.EventTypeInviteAccepted:
		return decodeEvent[events.InviteAcceptedEvent](payload)
	case events.EventTypeInviteDeclined:
		return decodeEvent[events.InviteDeclinedEvent](payload)
	case events.EventTypeInviteResultsAttached:
		return decodeEvent[events.InviteResultsAttachedEvent](payload)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

func decodeEvent[T events.Event](payload []byte) (events.Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}
