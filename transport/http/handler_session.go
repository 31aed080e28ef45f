package httptransport

import (
	"net/http"

	"stakehouse/application"
	"stakehouse/domain/entities"

	"github.com/go-chi/chi/v5"
)

// SessionHandlers serves draft reconciliation and session finalization
type SessionHandlers struct {
	engine Engine
}

// NewSessionHandlers creates session handlers backed by the engine
func NewSessionHandlers(engine Engine) *SessionHandlers {
	return &SessionHandlers{engine: engine}
}

type draftView struct {
	*entities.StakeConfiguration
	DisplayName string `json:"display_name,omitempty"`
}

type reconcileResponse struct {
	SessionID string      `json:"session_id"`
	Drafts    []draftView `json:"drafts"`
	Pending   bool        `json:"pending"`
	Error     string      `json:"error,omitempty"`
}

func draftViews(drafts []*entities.StakeConfiguration) []draftView {
	views := make([]draftView, 0, len(drafts))
	for _, d := range drafts {
		views = append(views, draftView{StakeConfiguration: d, DisplayName: d.DisplayName})
	}
	return views
}

// Reconcile runs one reconciliation pass. A failed pass still answers with
// the local drafts so the caller can keep editing while the retry is pending.
func (h *SessionHandlers) Reconcile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reconcileRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		result, err := h.engine.ConfigureStakes(r.Context(), req.toApplication(chi.URLParam(r, "runtimeKey")))
		if err != nil && (result == nil || !result.Pending) {
			writeDomainError(w, r, err)
			return
		}

		resp := reconcileResponse{
			SessionID: result.SessionID.String(),
			Drafts:    draftViews(result.Drafts),
			Pending:   result.Pending,
		}
		status := http.StatusOK
		if err != nil {
			status, resp.Error = statusFor(err)
		}
		writeJSON(w, status, resp)
	}
}

// Drafts returns the locally cached drafts for a runtime session
func (h *SessionHandlers) Drafts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := h.engine.GetDrafts(r.Context(), chi.URLParam(r, "runtimeKey"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reconcileResponse{
			SessionID: set.Session.SessionID.String(),
			Drafts:    draftViews(set.Drafts),
			Pending:   set.Pending,
		})
	}
}

// Finalize settles the session's active agreements and releases its identity
func (h *SessionHandlers) Finalize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalizeRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		agreements, err := h.engine.FinalizeSession(r.Context(), application.FinalizeSessionRequest{
			RuntimeSessionKey:   chi.URLParam(r, "runtimeKey"),
			OwnerID:             req.OwnerID,
			EventID:             req.EventID,
			BuyIn:               *req.BuyIn,
			Cashout:             *req.Cashout,
			RequireConfirmation: req.RequireConfirmation,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stakes": nonNil(agreements)})
	}
}

// Discard declines the open agreements of an abandoned session
func (h *SessionHandlers) Discard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		declined, err := h.engine.DiscardSession(r.Context(), chi.URLParam(r, "runtimeKey"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"declined": declined})
	}
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
