package application

import (
	"context"
	"fmt"
	"strings"

	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"
	"stakehouse/domain/services"
	"stakehouse/infrastructure/observability"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ConfigureStakesRequest carries a client's draft stake configuration for a
// live session. Nil Drafts means "use the cached drafts".
type ConfigureStakesRequest struct {
	RuntimeSessionKey string
	OwnerID           string
	EventID           string
	Metadata          entities.SessionMetadata
	Drafts            []*entities.StakeConfiguration
}

// ConfigureStakesResult is the reconciled draft list. Pending is set when
// the pass failed and the drafts were cached for a retry.
type ConfigureStakesResult struct {
	SessionID entities.PersistentSessionIdentity
	Drafts    []*entities.StakeConfiguration
	Pending   bool
}

// FinalizeSessionRequest carries the results of a finished session
type FinalizeSessionRequest struct {
	RuntimeSessionKey   string
	OwnerID             string
	EventID             string
	BuyIn               decimal.Decimal
	Cashout             decimal.Decimal
	RequireConfirmation bool
}

// StakeEngine runs every collaborator operation in its own unit of work
type StakeEngine struct {
	uowFactory UnitOfWorkFactory
	identities interfaces.SessionIdentityResolver
	draftStore interfaces.KeyValueStore
	directory  interfaces.StakerDirectory
	drafts     interfaces.ConfigurationReconciler
}

// NewStakeEngine creates a new stake engine
func NewStakeEngine(
	uowFactory UnitOfWorkFactory,
	identities interfaces.SessionIdentityResolver,
	draftStore interfaces.KeyValueStore,
	directory interfaces.StakerDirectory,
) *StakeEngine {
	return &StakeEngine{
		uowFactory: uowFactory,
		identities: identities,
		draftStore: draftStore,
		directory:  directory,
		drafts:     services.NewConfigurationReconciler(nil, draftStore, directory),
	}
}

// inUnitOfWork runs fn inside a transaction, committing when it returns nil
func (e *StakeEngine) inUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = uow.Rollback()
	}()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func agreementService(uow UnitOfWork) interfaces.StakeAgreementService {
	return services.NewStakeAgreementService(uow.StakeAgreementRepository(), uow.EventBus())
}

func inviteService(uow UnitOfWork) interfaces.StakingInviteService {
	return services.NewStakingInviteService(uow.StakingInviteRepository(), uow.StakeAgreementRepository(), uow.EventBus())
}

// ConfigureStakes resolves the session identity and reconciles the client's
// drafts against the stored agreements. When the pass fails the local drafts
// are returned unchanged, cached as pending, together with the error.
func (e *StakeEngine) ConfigureStakes(ctx context.Context, req ConfigureStakesRequest) (*ConfigureStakesResult, error) {
	sessionID, err := e.identities.Resolve(ctx, req.RuntimeSessionKey, req.OwnerID)
	if err != nil {
		return nil, err
	}

	session := entities.DraftSession{
		SessionID:      sessionID,
		StakedPlayerID: req.OwnerID,
		EventID:        req.EventID,
		Metadata:       req.Metadata,
	}

	drafts := req.Drafts
	if drafts == nil {
		cached, err := e.drafts.LoadDrafts(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			drafts = cached.Drafts
		}
	}

	return e.reconcile(ctx, session, drafts)
}

func (e *StakeEngine) reconcile(ctx context.Context, session entities.DraftSession, localDrafts []*entities.StakeConfiguration) (*ConfigureStakesResult, error) {
	var reconciled []*entities.StakeConfiguration

	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		sessionIDs := []string{string(session.SessionID)}
		if provisional, ok := session.ProvisionalSessionID(); ok {
			sessionIDs = append(sessionIDs, provisional)
		}

		remotes, err := uow.StakeAgreementRepository().ListBySession(ctx, sessionIDs...)
		if err != nil {
			return fmt.Errorf("failed to list session agreements: %w", err)
		}

		reconciler := services.NewConfigurationReconciler(agreementService(uow), e.draftStore, e.directory)
		reconciled, err = reconciler.Reconcile(ctx, session, localDrafts, remotes)
		return err
	})
	if err != nil {
		e.cachePending(ctx, session, localDrafts)
		observability.GetMetrics().RecordReconciliation(observability.OutcomePending, 0)
		return &ConfigureStakesResult{
			SessionID: session.SessionID,
			Drafts:    localDrafts,
			Pending:   true,
		}, err
	}

	conflicts := 0
	for _, draft := range reconciled {
		if draft.HasConflict() {
			conflicts++
		}
	}
	observability.GetMetrics().RecordReconciliation(observability.OutcomeSynced, conflicts)

	return &ConfigureStakesResult{
		SessionID: session.SessionID,
		Drafts:    reconciled,
	}, nil
}

// cachePending stores the local drafts for the draft sync worker
func (e *StakeEngine) cachePending(ctx context.Context, session entities.DraftSession, localDrafts []*entities.StakeConfiguration) {
	set := &entities.DraftSet{
		Session: session,
		Drafts:  localDrafts,
		Pending: true,
	}
	if err := e.drafts.SaveDrafts(ctx, set); err != nil {
		log.WithFields(log.Fields{
			"sessionID": session.SessionID,
			"error":     err,
		}).Error("Failed to cache drafts of a failed reconciliation pass")
	}
}

// RetryPendingSessions re-runs reconciliation for every session whose last
// pass failed and returns how many succeeded
func (e *StakeEngine) RetryPendingSessions(ctx context.Context) (int, error) {
	sessionIDs, err := e.drafts.PendingSessions(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, sessionID := range sessionIDs {
		if err := ctx.Err(); err != nil {
			return synced, err
		}

		set, err := e.drafts.LoadDrafts(ctx, sessionID)
		if err != nil {
			return synced, err
		}
		if set == nil || !set.Pending {
			continue
		}

		if _, err := e.reconcile(ctx, set.Session, set.Drafts); err != nil {
			log.WithFields(log.Fields{
				"sessionID": sessionID,
				"error":     err,
			}).Warn("Pending reconciliation still failing")
			continue
		}
		synced++
	}

	return synced, nil
}

// GetDrafts returns the cached drafts of a live session
func (e *StakeEngine) GetDrafts(ctx context.Context, runtimeSessionKey string) (*entities.DraftSet, error) {
	sessionID, ok, err := e.identities.Lookup(ctx, runtimeSessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", runtimeSessionKey, entities.ErrNotFound)
	}

	set, err := e.drafts.LoadDrafts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return &entities.DraftSet{Session: entities.DraftSession{SessionID: sessionID}, Drafts: []*entities.StakeConfiguration{}}, nil
	}
	return set, nil
}

// FinalizeSession settles every active agreement of a finished session, then
// releases its identity and drops its drafts. Agreements still filed under
// the event-scoped id are moved to the session first. Proposals nobody
// accepted are declined. A session that never got an identity is settled
// under its event-scoped id when EventID and OwnerID are given.
func (e *StakeEngine) FinalizeSession(ctx context.Context, req FinalizeSessionRequest) ([]*entities.StakeAgreement, error) {
	sessionID, ok, err := e.identities.Lookup(ctx, req.RuntimeSessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		if req.EventID == "" || req.OwnerID == "" {
			log.WithField("runtimeSessionKey", req.RuntimeSessionKey).Info("Finalized session has no stake identity, nothing to settle")
			return []*entities.StakeAgreement{}, nil
		}
		return e.finalizeProvisional(ctx, req)
	}

	var settled []*entities.StakeAgreement
	declined := 0
	err = e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		agreementSvc := agreementService(uow)

		agreements, err := e.sessionAgreements(ctx, agreementSvc, string(sessionID), req.EventID)
		if err != nil {
			return err
		}

		settled, declined, err = closeAgreements(ctx, agreementSvc, agreements, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, agreement := range settled {
		recordSettlement(agreement, observability.SettlementTypeImmediate)
	}

	e.forgetSession(ctx, req.RuntimeSessionKey, sessionID)

	log.WithFields(log.Fields{
		"sessionID": sessionID,
		"settled":   len(settled),
		"declined":  declined,
	}).Info("Finalized session stakes")

	return settled, nil
}

// finalizeProvisional settles a session whose stakes were only ever accepted
// from invites. There is nothing cached locally, so the records stay under
// the event-scoped id.
func (e *StakeEngine) finalizeProvisional(ctx context.Context, req FinalizeSessionRequest) ([]*entities.StakeAgreement, error) {
	sessionID := entities.EventScopedSessionID(req.EventID, req.OwnerID)

	var settled []*entities.StakeAgreement
	declined := 0
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		agreementSvc := agreementService(uow)

		agreements, err := agreementSvc.ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}

		settled, declined, err = closeAgreements(ctx, agreementSvc, agreements, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, agreement := range settled {
		recordSettlement(agreement, observability.SettlementTypeImmediate)
	}

	log.WithFields(log.Fields{
		"sessionID": sessionID,
		"settled":   len(settled),
		"declined":  declined,
	}).Info("Finalized provisional session stakes")

	return settled, nil
}

// closeAgreements attaches the results to active agreements and declines
// proposals that were never accepted
func closeAgreements(ctx context.Context, svc interfaces.StakeAgreementService, agreements []*entities.StakeAgreement, req FinalizeSessionRequest) ([]*entities.StakeAgreement, int, error) {
	settled := make([]*entities.StakeAgreement, 0, len(agreements))
	declined := 0
	for _, agreement := range agreements {
		switch agreement.Status {
		case entities.StakeStatusActive:
			result, err := svc.AttachSettlement(ctx, agreement.ID, req.BuyIn, req.Cashout, req.RequireConfirmation)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to settle stake %s: %w", agreement.ID, err)
			}
			settled = append(settled, result)
		case entities.StakeStatusPendingAcceptance:
			if _, err := svc.Decline(ctx, agreement.ID); err != nil {
				return nil, 0, fmt.Errorf("failed to decline stake %s: %w", agreement.ID, err)
			}
			declined++
		}
	}
	return settled, declined, nil
}

// sessionAgreements lists the session's agreements, migrating live records
// still filed under the event-scoped id
func (e *StakeEngine) sessionAgreements(ctx context.Context, svc interfaces.StakeAgreementService, sessionID, eventID string) ([]*entities.StakeAgreement, error) {
	agreements, err := svc.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		return agreements, nil
	}

	stakedPlayerID := ownerOf(sessionID)
	provisional, err := svc.ListBySession(ctx, entities.EventScopedSessionID(eventID, stakedPlayerID))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(agreements))
	for i, agreement := range agreements {
		byID[agreement.ID] = i
	}
	for _, agreement := range provisional {
		if !agreement.Status.AcceptsTermChanges() {
			continue
		}
		migration, err := svc.MigrateSession(ctx, agreement.ID, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate stake %s: %w", agreement.ID, err)
		}
		if pos, ok := byID[migration.Agreement.ID]; ok {
			agreements[pos] = migration.Agreement
			continue
		}
		byID[migration.Agreement.ID] = len(agreements)
		agreements = append(agreements, migration.Agreement)
	}
	return agreements, nil
}

// DiscardSession declines every open agreement of an abandoned session and
// forgets its identity
func (e *StakeEngine) DiscardSession(ctx context.Context, runtimeSessionKey string) (int, error) {
	sessionID, ok, err := e.identities.Lookup(ctx, runtimeSessionKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	declined := 0
	err = e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		agreementSvc := agreementService(uow)
		agreements, err := agreementSvc.ListBySession(ctx, string(sessionID))
		if err != nil {
			return err
		}

		declined = 0
		for _, agreement := range agreements {
			if !agreement.Status.AcceptsTermChanges() {
				continue
			}
			if _, err := agreementSvc.Decline(ctx, agreement.ID); err != nil {
				return fmt.Errorf("failed to decline stake %s: %w", agreement.ID, err)
			}
			declined++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.forgetSession(ctx, runtimeSessionKey, sessionID)
	return declined, nil
}

func (e *StakeEngine) forgetSession(ctx context.Context, runtimeSessionKey string, sessionID entities.PersistentSessionIdentity) {
	if err := e.identities.Release(ctx, runtimeSessionKey); err != nil {
		log.WithFields(log.Fields{
			"runtimeSessionKey": runtimeSessionKey,
			"error":             err,
		}).Warn("Failed to release session identity")
	}
	if err := e.drafts.ClearDrafts(ctx, sessionID); err != nil {
		log.WithFields(log.Fields{
			"sessionID": sessionID,
			"error":     err,
		}).Warn("Failed to clear session drafts")
	}
}

// UpsertStake creates or updates an active agreement directly
func (e *StakeEngine) UpsertStake(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	var agreement *entities.StakeAgreement
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		agreement, err = agreementService(uow).Upsert(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.GetMetrics().RecordStakeUpsert()
	return agreement, nil
}

// ProposeStake creates an agreement awaiting the staker's acceptance
func (e *StakeEngine) ProposeStake(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	var agreement *entities.StakeAgreement
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		agreement, err = agreementService(uow).Propose(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.GetMetrics().RecordStakeUpsert()
	return agreement, nil
}

// ActivateStake accepts a proposed agreement
func (e *StakeEngine) ActivateStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return e.agreementOp(ctx, func(svc interfaces.StakeAgreementService) (*entities.StakeAgreement, error) {
		return svc.Activate(ctx, stakeID)
	})
}

// AttachSettlement records results on a single agreement
func (e *StakeEngine) AttachSettlement(ctx context.Context, stakeID string, buyIn, cashout decimal.Decimal, requireConfirmation bool) (*entities.StakeAgreement, error) {
	agreement, err := e.agreementOp(ctx, func(svc interfaces.StakeAgreementService) (*entities.StakeAgreement, error) {
		return svc.AttachSettlement(ctx, stakeID, buyIn, cashout, requireConfirmation)
	})
	if err != nil {
		return nil, err
	}

	recordSettlement(agreement, observability.SettlementTypeImmediate)
	return agreement, nil
}

// ConfirmSettlement finalizes an agreement awaiting settlement
func (e *StakeEngine) ConfirmSettlement(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	agreement, err := e.agreementOp(ctx, func(svc interfaces.StakeAgreementService) (*entities.StakeAgreement, error) {
		return svc.ConfirmSettlement(ctx, stakeID)
	})
	if err != nil {
		return nil, err
	}

	recordSettlement(agreement, observability.SettlementTypeConfirmed)
	return agreement, nil
}

// DeclineStake declines an agreement
func (e *StakeEngine) DeclineStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return e.agreementOp(ctx, func(svc interfaces.StakeAgreementService) (*entities.StakeAgreement, error) {
		return svc.Decline(ctx, stakeID)
	})
}

// GetStake returns one agreement
func (e *StakeEngine) GetStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return e.agreementOp(ctx, func(svc interfaces.StakeAgreementService) (*entities.StakeAgreement, error) {
		return svc.Get(ctx, stakeID)
	})
}

// ListSessionStakes returns the agreements filed under a persistent session id
func (e *StakeEngine) ListSessionStakes(ctx context.Context, sessionID string) ([]*entities.StakeAgreement, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, entities.NewValidationError("session_id", "must not be empty")
	}
	return e.agreementList(ctx, func(svc interfaces.StakeAgreementService) ([]*entities.StakeAgreement, error) {
		return svc.ListBySession(ctx, sessionID)
	})
}

// ListPlayerStakes returns the agreements of a staked player
func (e *StakeEngine) ListPlayerStakes(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error) {
	return e.agreementList(ctx, func(svc interfaces.StakeAgreementService) ([]*entities.StakeAgreement, error) {
		return svc.ListByPlayer(ctx, playerID)
	})
}

// ListStakerStakes returns the agreements of a staker
func (e *StakeEngine) ListStakerStakes(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakeAgreement, error) {
	return e.agreementList(ctx, func(svc interfaces.StakeAgreementService) ([]*entities.StakeAgreement, error) {
		return svc.ListByStaker(ctx, staker)
	})
}

func (e *StakeEngine) agreementOp(ctx context.Context, op func(svc interfaces.StakeAgreementService) (*entities.StakeAgreement, error)) (*entities.StakeAgreement, error) {
	var agreement *entities.StakeAgreement
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		agreement, err = op(agreementService(uow))
		return err
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

func (e *StakeEngine) agreementList(ctx context.Context, op func(svc interfaces.StakeAgreementService) ([]*entities.StakeAgreement, error)) ([]*entities.StakeAgreement, error) {
	var agreements []*entities.StakeAgreement
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		agreements, err = op(agreementService(uow))
		return err
	})
	if err != nil {
		return nil, err
	}
	return agreements, nil
}

// CreateInvites creates one pending invite per staker term
func (e *StakeEngine) CreateInvites(ctx context.Context, eventID string, metadata entities.EventMetadata, stakedPlayerID string, terms []entities.StakerTerm) ([]*entities.StakingInvite, error) {
	var invites []*entities.StakingInvite
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		invites, err = inviteService(uow).CreateInvites(ctx, eventID, metadata, stakedPlayerID, terms)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

// AcceptInvite answers an invite and returns the agreement it produced
func (e *StakeEngine) AcceptInvite(ctx context.Context, inviteID string) (*entities.StakeAgreement, error) {
	var agreement *entities.StakeAgreement
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		agreement, err = inviteService(uow).Accept(ctx, inviteID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.GetMetrics().RecordInviteResponse(observability.InviteResponseAccepted)
	recordSettlement(agreement, observability.SettlementTypeImmediate)
	return agreement, nil
}

// DeclineInvite answers an invite without creating an agreement
func (e *StakeEngine) DeclineInvite(ctx context.Context, inviteID string) error {
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		return inviteService(uow).Decline(ctx, inviteID)
	})
	if err != nil {
		return err
	}

	observability.GetMetrics().RecordInviteResponse(observability.InviteResponseDeclined)
	return nil
}

// AttachSessionResults copies results onto the pending invites of an event participant
func (e *StakeEngine) AttachSessionResults(ctx context.Context, eventID, stakedPlayerID string, buyIn, cashout decimal.Decimal) (int, error) {
	updated := 0
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		updated, err = inviteService(uow).AttachSessionResults(ctx, eventID, stakedPlayerID, buyIn, cashout)
		return err
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// GetInvite returns one invite
func (e *StakeEngine) GetInvite(ctx context.Context, inviteID string) (*entities.StakingInvite, error) {
	var invite *entities.StakingInvite
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		invite, err = inviteService(uow).Get(ctx, inviteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// ListEventInvites returns every invite of an event
func (e *StakeEngine) ListEventInvites(ctx context.Context, eventID string) ([]*entities.StakingInvite, error) {
	var invites []*entities.StakingInvite
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		invites, err = inviteService(uow).ListByEvent(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

// ListStakerInvites returns invites addressed to a staker
func (e *StakeEngine) ListStakerInvites(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakingInvite, error) {
	var invites []*entities.StakingInvite
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		invites, err = inviteService(uow).ListByStaker(ctx, staker)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func recordSettlement(agreement *entities.StakeAgreement, settlementType string) {
	if agreement == nil || !agreement.IsSettled() || agreement.SettlementAmount == nil {
		return
	}
	observability.GetMetrics().RecordSettlement(settlementType, *agreement.SettlementAmount)
}

// ownerOf extracts the owner from an "{ownerID}_{epochSeconds}" identity
func ownerOf(sessionID string) string {
	if i := strings.LastIndex(sessionID, "_"); i > 0 {
		return sessionID[:i]
	}
	return sessionID
}
