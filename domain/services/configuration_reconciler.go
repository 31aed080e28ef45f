package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const draftKeyPrefix = "drafts."

// configurationReconciler merges client drafts with persisted agreements and
// owns the draft cache
type configurationReconciler struct {
	agreementService interfaces.StakeAgreementService
	store            interfaces.KeyValueStore
	directory        interfaces.StakerDirectory
}

// NewConfigurationReconciler creates a reconciler. agreementService may be nil
// when only the draft cache operations are used.
func NewConfigurationReconciler(
	agreementService interfaces.StakeAgreementService,
	store interfaces.KeyValueStore,
	directory interfaces.StakerDirectory,
) interfaces.ConfigurationReconciler {
	return &configurationReconciler{
		agreementService: agreementService,
		store:            store,
		directory:        directory,
	}
}

// reconcilePass holds the state of one Reconcile call
type reconcilePass struct {
	session entities.DraftSession

	// remotes by staker key, in first-seen order
	remotes    map[string]*entities.StakeAgreement
	remoteKeys []string

	// stake ids mapped to the record that now holds their terms
	movedTo map[string]string

	// status of records that no longer accept drafts, by id
	retired map[string]entities.StakeStatus
}

// Reconcile returns one draft per staker key
func (r *configurationReconciler) Reconcile(
	ctx context.Context,
	session entities.DraftSession,
	localDrafts []*entities.StakeConfiguration,
	remoteAgreements []*entities.StakeAgreement,
) ([]*entities.StakeConfiguration, error) {
	if strings.TrimSpace(string(session.SessionID)) == "" {
		return localDrafts, entities.NewValidationError("session_id", "must not be empty")
	}
	if r.agreementService == nil {
		return localDrafts, fmt.Errorf("reconciler has no agreement service")
	}

	pass := &reconcilePass{
		session: session,
		remotes: make(map[string]*entities.StakeAgreement),
		movedTo: make(map[string]string),
		retired: make(map[string]entities.StakeStatus),
	}

	if err := r.collectRemotes(ctx, pass, remoteAgreements); err != nil {
		return localDrafts, err
	}

	result := make([]*entities.StakeConfiguration, 0, len(localDrafts)+len(pass.remoteKeys))
	positions := make(map[string]int)
	consumed := make(map[string]bool)

	for _, local := range localDrafts {
		if local == nil {
			continue
		}
		key := local.Key()

		var draft *entities.StakeConfiguration
		var err error
		if remote, ok := pass.remotes[key]; ok {
			consumed[key] = true
			draft, err = r.mergeWithRemote(ctx, pass, local, remote)
		} else {
			draft, err = r.syncLocalOnly(ctx, pass, local)
		}
		if err != nil {
			log.WithFields(log.Fields{
				"sessionID": session.SessionID,
				"stakerKey": key,
				"error":     err,
			}).Warn("Reconciliation pass failed, keeping local drafts")
			return localDrafts, err
		}
		if draft == nil {
			continue
		}

		// a repeated local key replaces the earlier draft in place
		if pos, seen := positions[key]; seen {
			result[pos] = draft
			continue
		}
		positions[key] = len(result)
		result = append(result, draft)
	}

	for _, key := range pass.remoteKeys {
		if consumed[key] {
			continue
		}
		result = append(result, entities.DraftFromAgreement(pass.remotes[key]))
	}

	r.applyDisplayNames(ctx, result)

	conflicts := 0
	for _, draft := range result {
		if draft.HasConflict() {
			conflicts++
		}
	}

	set := &entities.DraftSet{
		Session: session,
		Drafts:  result,
		SavedAt: now(),
	}
	if err := r.SaveDrafts(ctx, set); err != nil {
		log.WithFields(log.Fields{
			"sessionID": session.SessionID,
			"error":     err,
		}).Warn("Failed to cache reconciled drafts")
	}

	log.WithFields(log.Fields{
		"sessionID": session.SessionID,
		"drafts":    len(result),
		"conflicts": conflicts,
	}).Debug("Reconciled stake configuration")

	return result, nil
}

// collectRemotes indexes the editable remote records by staker key,
// migrating records still filed under the event-scoped session id. Declined
// and settling records are retired and never come back as drafts.
func (r *configurationReconciler) collectRemotes(ctx context.Context, pass *reconcilePass, remoteAgreements []*entities.StakeAgreement) error {
	sessionID := string(pass.session.SessionID)

	for _, remote := range remoteAgreements {
		if remote == nil {
			continue
		}
		if !remote.Status.AcceptsTermChanges() {
			pass.retired[remote.ID] = remote.Status
			continue
		}

		if remote.SessionID != sessionID {
			if !entities.IsProvisionalSessionID(remote.SessionID) {
				pass.retired[remote.ID] = remote.Status
				continue
			}

			migration, err := r.agreementService.MigrateSession(ctx, remote.ID, sessionID)
			if err != nil {
				return fmt.Errorf("failed to migrate stake %s: %w", remote.ID, err)
			}
			pass.movedTo[remote.ID] = migration.Agreement.ID
			remote = migration.Agreement
		}

		key := remote.StakerKey()
		existing, seen := pass.remotes[key]
		if !seen {
			pass.remoteKeys = append(pass.remoteKeys, key)
			pass.remotes[key] = remote
			continue
		}
		if remote.LastUpdatedAt.After(existing.LastUpdatedAt) {
			pass.remotes[key] = remote
		}
	}
	return nil
}

// mergeWithRemote reconciles a local draft with the persisted record for the
// same staker. The persisted terms win; unsent local edits either go out as
// an update of that record or are kept as a conflict.
func (r *configurationReconciler) mergeWithRemote(
	ctx context.Context,
	pass *reconcilePass,
	local *entities.StakeConfiguration,
	remote *entities.StakeAgreement,
) (*entities.StakeConfiguration, error) {
	if !local.Unsynced || local.Terms().Equal(remote.Terms()) {
		return entities.DraftFromAgreement(remote), nil
	}

	if local.Validate() != nil || !pass.basedOn(local, remote) {
		return withConflict(entities.DraftFromAgreement(remote), local), nil
	}

	updated, err := r.agreementService.Upsert(ctx, pass.upsertRequest(local))
	if errors.Is(err, entities.ErrInvalidStateTransition) {
		return withConflict(entities.DraftFromAgreement(remote), local), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to push local terms for %s: %w", local.Key(), err)
	}
	return entities.DraftFromAgreement(updated), nil
}

// syncLocalOnly handles a draft with no editable persisted record
func (r *configurationReconciler) syncLocalOnly(
	ctx context.Context,
	pass *reconcilePass,
	local *entities.StakeConfiguration,
) (*entities.StakeConfiguration, error) {
	draft := copyDraft(local)

	if draft.IsPersisted() {
		status, retired := pass.retired[*draft.OriginalStakeID]
		switch {
		case retired && !draft.Unsynced:
			return nil, nil
		case retired && (status == entities.StakeStatusSettled || status == entities.StakeStatusAwaitingSettlement):
			// settled terms are final; the unsent edit stays flagged until
			// the caller drops it
			return withConflict(draft, local), nil
		}
		// the record vanished or was declined; the edit goes out as a new agreement
		draft.OriginalStakeID = nil
		draft.Unsynced = true
	}

	if draft.Validate() != nil {
		draft.Unsynced = true
		return draft, nil
	}

	created, err := r.agreementService.Upsert(ctx, pass.upsertRequest(draft))
	if errors.Is(err, entities.ErrInvalidStateTransition) {
		draft.Unsynced = true
		return withConflict(draft, local), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store draft for %s: %w", draft.Key(), err)
	}
	return entities.DraftFromAgreement(created), nil
}

// applyDisplayNames fills display names with one directory call per pass
func (r *configurationReconciler) applyDisplayNames(ctx context.Context, drafts []*entities.StakeConfiguration) {
	var userIDs []string
	seen := make(map[string]bool)
	for _, draft := range drafts {
		if draft.Staker.IsManual() {
			draft.DisplayName = draft.Staker.DisplayName
			continue
		}
		if !seen[draft.Staker.UserID] {
			seen[draft.Staker.UserID] = true
			userIDs = append(userIDs, draft.Staker.UserID)
		}
	}
	if len(userIDs) == 0 || r.directory == nil {
		return
	}

	names, err := r.directory.ResolveDisplayNames(ctx, userIDs)
	if err != nil {
		log.WithFields(log.Fields{
			"users": len(userIDs),
			"error": err,
		}).Warn("Failed to resolve staker display names")
		return
	}
	for _, draft := range drafts {
		if draft.Staker.IsRegistered() {
			draft.DisplayName = names[draft.Staker.UserID]
		}
	}
}

// LoadDrafts returns the cached drafts of a session
func (r *configurationReconciler) LoadDrafts(ctx context.Context, sessionID entities.PersistentSessionIdentity) (*entities.DraftSet, error) {
	value, err := r.store.Get(ctx, draftKeyPrefix+string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	if value == nil {
		return nil, nil
	}

	var set entities.DraftSet
	if err := json.Unmarshal(value, &set); err != nil {
		return nil, fmt.Errorf("failed to decode drafts for session %s: %w", sessionID, err)
	}
	return &set, nil
}

// SaveDrafts replaces the cached drafts of a session
func (r *configurationReconciler) SaveDrafts(ctx context.Context, set *entities.DraftSet) error {
	if set == nil || strings.TrimSpace(string(set.Session.SessionID)) == "" {
		return entities.NewValidationError("session_id", "must not be empty")
	}
	if set.SavedAt.IsZero() {
		set.SavedAt = now()
	}

	value, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode drafts: %w", err)
	}
	if err := r.store.Put(ctx, draftKeyPrefix+string(set.Session.SessionID), value); err != nil {
		return fmt.Errorf("failed to save drafts: %w", err)
	}
	return nil
}

// ClearDrafts removes the cached drafts of a session
func (r *configurationReconciler) ClearDrafts(ctx context.Context, sessionID entities.PersistentSessionIdentity) error {
	if err := r.store.Delete(ctx, draftKeyPrefix+string(sessionID)); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}

// PendingSessions lists sessions whose last reconciliation pass failed
func (r *configurationReconciler) PendingSessions(ctx context.Context) ([]entities.PersistentSessionIdentity, error) {
	keys, err := r.store.Keys(ctx, draftKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft sets: %w", err)
	}

	var pending []entities.PersistentSessionIdentity
	for _, key := range keys {
		sessionID := entities.PersistentSessionIdentity(strings.TrimPrefix(key, draftKeyPrefix))
		set, err := r.LoadDrafts(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if set != nil && set.Pending {
			pending = append(pending, sessionID)
		}
	}
	return pending, nil
}

// basedOn checks if the local draft was last synced against remote, directly
// or through a record that was migrated into it
func (p *reconcilePass) basedOn(local *entities.StakeConfiguration, remote *entities.StakeAgreement) bool {
	if !local.IsPersisted() {
		return false
	}
	id := *local.OriginalStakeID
	return id == remote.ID || p.movedTo[id] == remote.ID
}

func (p *reconcilePass) upsertRequest(draft *entities.StakeConfiguration) interfaces.UpsertStakeRequest {
	return interfaces.UpsertStakeRequest{
		SessionID:      string(p.session.SessionID),
		StakedPlayerID: p.session.StakedPlayerID,
		Staker:         draft.Staker,
		Percentage:     draft.Percentage,
		Markup:         draft.Markup,
		Metadata:       p.session.Metadata,
	}
}

func withConflict(draft, local *entities.StakeConfiguration) *entities.StakeConfiguration {
	draft.Conflict = &entities.StakeConflict{
		LocalPercentage: local.Percentage,
		LocalMarkup:     local.Markup,
	}
	return draft
}

func copyDraft(c *entities.StakeConfiguration) *entities.StakeConfiguration {
	out := *c
	if c.OriginalStakeID != nil {
		id := *c.OriginalStakeID
		out.OriginalStakeID = &id
	}
	if c.Conflict != nil {
		conflict := *c.Conflict
		out.Conflict = &conflict
	}
	return &out
}
