package application

import (
	"context"
	"fmt"

	"stakehouse/domain/events"

	log "github.com/sirupsen/logrus"
)

// CollaboratorEventHandler turns collaborator events into engine operations
type CollaboratorEventHandler struct {
	engine *StakeEngine
}

// NewCollaboratorEventHandler creates a new collaborator event handler
func NewCollaboratorEventHandler(engine *StakeEngine) *CollaboratorEventHandler {
	return &CollaboratorEventHandler{engine: engine}
}

// HandleSessionFinalized settles the stakes of a finished session
func (h *CollaboratorEventHandler) HandleSessionFinalized(ctx context.Context, event events.Event) error {
	finalized, ok := event.(events.SessionFinalizedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T for session finalized handler", event)
	}

	settled, err := h.engine.FinalizeSession(ctx, FinalizeSessionRequest{
		RuntimeSessionKey:   finalized.RuntimeSessionKey,
		OwnerID:             finalized.OwnerID,
		EventID:             finalized.EventID,
		BuyIn:               finalized.BuyIn,
		Cashout:             finalized.Cashout,
		RequireConfirmation: finalized.RequireConfirmation,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize session %s: %w", finalized.RuntimeSessionKey, err)
	}

	log.WithFields(log.Fields{
		"runtimeSessionKey": finalized.RuntimeSessionKey,
		"settled":           len(settled),
	}).Debug("Handled session finalized event")
	return nil
}

// HandleSessionResultsReported attaches event results to pending invites
func (h *CollaboratorEventHandler) HandleSessionResultsReported(ctx context.Context, event events.Event) error {
	reported, ok := event.(events.SessionResultsReportedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T for session results handler", event)
	}

	updated, err := h.engine.AttachSessionResults(ctx, reported.EventID, reported.StakedPlayerID, reported.BuyIn, reported.Cashout)
	if err != nil {
		return fmt.Errorf("failed to attach results for event %s: %w", reported.EventID, err)
	}

	log.WithFields(log.Fields{
		"eventID":        reported.EventID,
		"stakedPlayerID": reported.StakedPlayerID,
		"invitesUpdated": updated,
	}).Debug("Handled session results event")
	return nil
}

// RegisterApplicationSubscriptions registers handlers for collaborator events
func RegisterApplicationSubscriptions(subscriber EventSubscriber, engine *StakeEngine) error {
	handler := NewCollaboratorEventHandler(engine)

	if err := subscriber.Subscribe(events.EventTypeSessionFinalized, handler.HandleSessionFinalized); err != nil {
		return fmt.Errorf("failed to subscribe to session finalized events: %w", err)
	}
	if err := subscriber.Subscribe(events.EventTypeSessionResultsReported, handler.HandleSessionResultsReported); err != nil {
		return fmt.Errorf("failed to subscribe to session results events: %w", err)
	}
	return nil
}
