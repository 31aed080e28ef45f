package httptransport

import (
	"context"
	"net/http"

	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	"github.com/go-chi/chi/v5"
)

// StakeHandlers serves direct agreement reads and transitions
type StakeHandlers struct {
	engine    Engine
	directory DirectoryWriter
}

// NewStakeHandlers creates stake handlers; directory receives display names
func NewStakeHandlers(engine Engine, directory DirectoryWriter) *StakeHandlers {
	return &StakeHandlers{engine: engine, directory: directory}
}

// Upsert creates or updates an active agreement
func (h *StakeHandlers) Upsert() http.HandlerFunc {
	return h.write(func(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
		return h.engine.UpsertStake(ctx, req)
	})
}

// Propose creates or updates an agreement awaiting acceptance
func (h *StakeHandlers) Propose() http.HandlerFunc {
	return h.write(func(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
		return h.engine.ProposeStake(ctx, req)
	})
}

func (h *StakeHandlers) write(op func(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsertStakeRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		agreement, err := op(r.Context(), req.toInterfaces())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agreement)
	}
}

// Get returns a single agreement
func (h *StakeHandlers) Get() http.HandlerFunc {
	return h.byID(h.engine.GetStake)
}

// Activate accepts a pending proposal
func (h *StakeHandlers) Activate() http.HandlerFunc {
	return h.byID(h.engine.ActivateStake)
}

// Confirm completes a settlement awaiting confirmation
func (h *StakeHandlers) Confirm() http.HandlerFunc {
	return h.byID(h.engine.ConfirmSettlement)
}

// Decline terminates an open agreement
func (h *StakeHandlers) Decline() http.HandlerFunc {
	return h.byID(h.engine.DeclineStake)
}

func (h *StakeHandlers) byID(op func(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agreement, err := op(r.Context(), chi.URLParam(r, "stakeID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agreement)
	}
}

// Settle attaches session results to an agreement
func (h *StakeHandlers) Settle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settlementRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		agreement, err := h.engine.AttachSettlement(r.Context(), chi.URLParam(r, "stakeID"), *req.BuyIn, *req.Cashout, req.RequireConfirmation)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agreement)
	}
}

// BySession lists the agreements of a persistent session
func (h *StakeHandlers) BySession() http.HandlerFunc {
	return h.list(func(r *http.Request) ([]*entities.StakeAgreement, error) {
		return h.engine.ListSessionStakes(r.Context(), chi.URLParam(r, "sessionID"))
	})
}

// ByPlayer lists the agreements of a staked player
func (h *StakeHandlers) ByPlayer() http.HandlerFunc {
	return h.list(func(r *http.Request) ([]*entities.StakeAgreement, error) {
		return h.engine.ListPlayerStakes(r.Context(), chi.URLParam(r, "playerID"))
	})
}

// ByRegisteredStaker lists agreements backed by a registered user
func (h *StakeHandlers) ByRegisteredStaker() http.HandlerFunc {
	return h.list(func(r *http.Request) ([]*entities.StakeAgreement, error) {
		return h.engine.ListStakerStakes(r.Context(), entities.RegisteredStaker(chi.URLParam(r, "userID")))
	})
}

// ByManualStaker looks up an off-platform backer by name. A directory_id
// query parameter takes precedence over the name.
func (h *StakeHandlers) ByManualStaker() http.HandlerFunc {
	return h.list(func(r *http.Request) ([]*entities.StakeAgreement, error) {
		var directoryID *string
		if id := r.URL.Query().Get("directory_id"); id != "" {
			directoryID = &id
		}
		return h.engine.ListStakerStakes(r.Context(), entities.ManualStaker(chi.URLParam(r, "name"), directoryID))
	})
}

func (h *StakeHandlers) list(op func(r *http.Request) ([]*entities.StakeAgreement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agreements, err := op(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stakes": nonNil(agreements)})
	}
}

// SetDisplayName stores the display name of a registered staker
func (h *StakeHandlers) SetDisplayName() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.directory == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "directory_unavailable")
			return
		}
		var req displayNameRequest
		if err := decodeRequest(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if err := h.directory.SetDisplayName(r.Context(), chi.URLParam(r, "userID"), req.DisplayName); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
