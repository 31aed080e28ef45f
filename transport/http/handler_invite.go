package httptransport

import (
	"net/http"

	"stakehouse/domain/entities"

	"github.com/go-chi/chi/v5"
)

// InviteHandlers serves the invite lifecycle routes
type InviteHandlers struct {
	engine Engine
}

// NewInviteHandlers creates invite handlers backed by the engine
func NewInviteHandlers(engine Engine) *InviteHandlers {
	return &InviteHandlers{engine: engine}
}

// Create issues one invite per staker term for an event
func (h *InviteHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createInvitesRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		invites, err := h.engine.CreateInvites(r.Context(), chi.URLParam(r, "eventID"), req.Metadata, req.StakedPlayerID, req.terms())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"invites": nonNil(invites)})
	}
}

// ByEvent lists the invites of an event
func (h *InviteHandlers) ByEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invites, err := h.engine.ListEventInvites(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": nonNil(invites)})
	}
}

// ByRegisteredStaker lists invites addressed to a registered user
func (h *InviteHandlers) ByRegisteredStaker() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invites, err := h.engine.ListStakerInvites(r.Context(), entities.RegisteredStaker(chi.URLParam(r, "userID")))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": nonNil(invites)})
	}
}

// AttachResults records session results on the pending invites of a player
func (h *InviteHandlers) AttachResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionResultsRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		updated, err := h.engine.AttachSessionResults(r.Context(), chi.URLParam(r, "eventID"), req.StakedPlayerID, *req.BuyIn, *req.Cashout)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
	}
}

// Get returns a single invite
func (h *InviteHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invite, err := h.engine.GetInvite(r.Context(), chi.URLParam(r, "inviteID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, invite)
	}
}

// Accept answers the invite and returns the agreement it produced, which
// is already settled when the invite carried session results.
func (h *InviteHandlers) Accept() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agreement, err := h.engine.AcceptInvite(r.Context(), chi.URLParam(r, "inviteID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agreement)
	}
}

// Decline marks an invite declined
func (h *InviteHandlers) Decline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.engine.DeclineInvite(r.Context(), chi.URLParam(r, "inviteID")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
