package infrastructure

import (
	"fmt"

	"stakehouse/domain/events"
)

// Subjects consumed from collaborators
const (
	SubjectSessionFinalized       = "sessions.finalized"
	SubjectSessionResultsReported = "events.session_results"
)

var subjectsByEventType = map[events.EventType]string{
	events.EventTypeStakeUpserted:          "stake.upserted",
	events.EventTypeStakeSettled:           "stake.settled",
	events.EventTypeStakeDeclined:          "stake.declined",
	events.EventTypeStakeMigrated:          "stake.migrated",
	events.EventTypeInviteCreated:          "invite.created",
	events.EventTypeInviteAccepted:         "invite.accepted",
	events.EventTypeInviteDeclined:         "invite.declined",
	events.EventTypeInviteResultsAttached:  "invite.results_attached",
	events.EventTypeSessionFinalized:       SubjectSessionFinalized,
	events.EventTypeSessionResultsReported: SubjectSessionResultsReported,
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct {
	eventTypesBySubject map[string]events.EventType
}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	reverse := make(map[string]events.EventType, len(subjectsByEventType))
	for eventType, subject := range subjectsByEventType {
		reverse[subject] = eventType
	}
	return &EventSubjectMapper{eventTypesBySubject: reverse}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return m.MapEventTypeToSubject(event.Type())
}

// MapEventTypeToSubject converts an event type to its NATS subject
func (m *EventSubjectMapper) MapEventTypeToSubject(eventType events.EventType) string {
	if subject, ok := subjectsByEventType[eventType]; ok {
		return subject
	}
	// Fallback for unknown event types
	return fmt.Sprintf("unknown.%s", eventType)
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	if eventType, ok := m.eventTypesBySubject[subject]; ok {
		return eventType
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"stake.upserted",
		"stake.settled",
		"stake.declined",
		"stake.migrated",
		"invite.created",
		"invite.accepted",
		"invite.declined",
		"invite.results_attached",
	}
}

// GetConsumedSubjects returns the collaborator subjects this service listens on
func (m *EventSubjectMapper) GetConsumedSubjects() []string {
	return []string{
		SubjectSessionFinalized,
		SubjectSessionResultsReported,
	}
}
