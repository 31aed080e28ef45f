package httptransport

import (
	"context"
	"net/http"
	"sort"

	"stakehouse/application"
	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Engine is the collaborator surface served over HTTP
type Engine interface {
	ConfigureStakes(ctx context.Context, req application.ConfigureStakesRequest) (*application.ConfigureStakesResult, error)
	GetDrafts(ctx context.Context, runtimeSessionKey string) (*entities.DraftSet, error)
	FinalizeSession(ctx context.Context, req application.FinalizeSessionRequest) ([]*entities.StakeAgreement, error)
	DiscardSession(ctx context.Context, runtimeSessionKey string) (int, error)

	UpsertStake(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error)
	ProposeStake(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error)
	ActivateStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)
	AttachSettlement(ctx context.Context, stakeID string, buyIn, cashout decimal.Decimal, requireConfirmation bool) (*entities.StakeAgreement, error)
	ConfirmSettlement(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)
	DeclineStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)
	GetStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)
	ListSessionStakes(ctx context.Context, sessionID string) ([]*entities.StakeAgreement, error)
	ListPlayerStakes(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error)
	ListStakerStakes(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakeAgreement, error)

	CreateInvites(ctx context.Context, eventID string, metadata entities.EventMetadata, stakedPlayerID string, terms []entities.StakerTerm) ([]*entities.StakingInvite, error)
	AcceptInvite(ctx context.Context, inviteID string) (*entities.StakeAgreement, error)
	DeclineInvite(ctx context.Context, inviteID string) error
	AttachSessionResults(ctx context.Context, eventID, stakedPlayerID string, buyIn, cashout decimal.Decimal) (int, error)
	GetInvite(ctx context.Context, inviteID string) (*entities.StakingInvite, error)
	ListEventInvites(ctx context.Context, eventID string) ([]*entities.StakingInvite, error)
	ListStakerInvites(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakingInvite, error)
}

// DirectoryWriter stores display names of registered stakers
type DirectoryWriter interface {
	SetDisplayName(ctx context.Context, userID, displayName string) error
}

// NewRouter mounts every route on a chi router with request logging
func NewRouter(engine Engine, directory DirectoryWriter) *chi.Mux {
	sessions := NewSessionHandlers(engine)
	stakes := NewStakeHandlers(engine, directory)
	invites := NewInviteHandlers(engine)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", Health())

	r.Group(func(r chi.Router) {
		r.Use(RequestLogMiddleware())

		r.Route("/sessions/{runtimeKey}", func(r chi.Router) {
			r.Post("/reconcile", sessions.Reconcile())
			r.Get("/drafts", sessions.Drafts())
			r.Post("/finalize", sessions.Finalize())
			r.Post("/discard", sessions.Discard())
		})
		r.Get("/persistent-sessions/{sessionID}/stakes", stakes.BySession())
		r.Get("/players/{playerID}/stakes", stakes.ByPlayer())

		r.Route("/stakers/{userID}", func(r chi.Router) {
			r.Get("/stakes", stakes.ByRegisteredStaker())
			r.Get("/invites", invites.ByRegisteredStaker())
			r.Put("/name", stakes.SetDisplayName())
		})
		r.Get("/manual-stakers/{name}/stakes", stakes.ByManualStaker())

		r.Route("/stakes", func(r chi.Router) {
			r.Post("/", stakes.Upsert())
			r.Post("/proposals", stakes.Propose())
			r.Get("/{stakeID}", stakes.Get())
			r.Post("/{stakeID}/activate", stakes.Activate())
			r.Post("/{stakeID}/settlement", stakes.Settle())
			r.Post("/{stakeID}/confirm", stakes.Confirm())
			r.Post("/{stakeID}/decline", stakes.Decline())
		})

		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Post("/invites", invites.Create())
			r.Get("/invites", invites.ByEvent())
			r.Post("/results", invites.AttachResults())
		})

		r.Route("/invites/{inviteID}", func(r chi.Router) {
			r.Get("/", invites.Get())
			r.Post("/accept", invites.Accept())
			r.Post("/decline", invites.Decline())
		})
	})

	return r
}

// Health reports liveness
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// LogRoutes prints every registered route at debug level
func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to walk routes")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	for _, rt := range routes {
		log.WithFields(log.Fields{
			"method": rt.Method,
			"path":   rt.Path,
		}).Debug("Registered route")
	}
	log.WithField("count", len(routes)).Info("HTTP routes registered")
}
