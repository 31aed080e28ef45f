package application

import (
	"context"

	"stakehouse/domain/events"
)

// EventSubscriber registers handlers for events arriving from collaborators
type EventSubscriber interface {
	Subscribe(eventType events.EventType, handler func(context.Context, events.Event) error) error
}
