package interfaces

import (
	"context"

	"stakehouse/domain/entities"

	"github.com/shopspring/decimal"
)

// UpsertStakeRequest carries the terms for one (session, staker) pair
type UpsertStakeRequest struct {
	SessionID      string
	StakedPlayerID string
	Staker         entities.StakerIdentity
	Percentage     decimal.Decimal
	Markup         decimal.Decimal
	Metadata       entities.SessionMetadata
}

// Terms returns the requested percentage and markup
func (r UpsertStakeRequest) Terms() entities.StakeTerms {
	return entities.StakeTerms{Percentage: r.Percentage, Markup: r.Markup}
}

// SessionMigration reports the outcome of moving an agreement to its permanent session
type SessionMigration struct {
	// Agreement is the record that now holds the terms under the permanent id
	Agreement *entities.StakeAgreement
	// Superseded is set when the provisional record was declined in favour of
	// an existing permanent record
	Superseded bool
}

// StakeAgreementService defines the interface for stake agreement operations
type StakeAgreementService interface {
	// Upsert creates an active agreement or updates the terms of the existing
	// non-declined agreement for the session and staker
	Upsert(ctx context.Context, req UpsertStakeRequest) (*entities.StakeAgreement, error)

	// Propose creates an agreement awaiting the staker's acceptance
	Propose(ctx context.Context, req UpsertStakeRequest) (*entities.StakeAgreement, error)

	// Activate moves a proposed agreement to active
	Activate(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)

	// AttachSettlement records session results and computes the settlement.
	// With requireConfirmation the agreement waits in awaiting_settlement.
	AttachSettlement(ctx context.Context, stakeID string, buyIn, cashout decimal.Decimal, requireConfirmation bool) (*entities.StakeAgreement, error)

	// ConfirmSettlement finalizes an agreement awaiting settlement
	ConfirmSettlement(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)

	// Decline moves an agreement to the terminal declined state
	Decline(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)

	// MigrateSession moves an agreement filed under a provisional session id to
	// the permanent one
	MigrateSession(ctx context.Context, stakeID string, sessionID string) (*SessionMigration, error)

	// Get retrieves an agreement by ID
	Get(ctx context.Context, stakeID string) (*entities.StakeAgreement, error)

	// ListBySession returns agreements filed under the given session ids
	ListBySession(ctx context.Context, sessionIDs ...string) ([]*entities.StakeAgreement, error)

	// ListByPlayer returns agreements for a staked player
	ListByPlayer(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error)

	// ListByStaker returns agreements for a staker
	ListByStaker(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakeAgreement, error)
}

// StakingInviteService defines the interface for the staking invite workflow
type StakingInviteService interface {
	// CreateInvites creates one pending invite per term. All terms are
	// validated before any invite is stored.
	CreateInvites(ctx context.Context, eventID string, metadata entities.EventMetadata, stakedPlayerID string, terms []entities.StakerTerm) ([]*entities.StakingInvite, error)

	// Accept answers a pending invite and produces its agreement
	Accept(ctx context.Context, inviteID string) (*entities.StakeAgreement, error)

	// Decline answers a pending invite without producing an agreement
	Decline(ctx context.Context, inviteID string) error

	// AttachSessionResults copies results onto every pending invite of an
	// event participant and returns how many were updated
	AttachSessionResults(ctx context.Context, eventID, stakedPlayerID string, buyIn, cashout decimal.Decimal) (int, error)

	// Get retrieves an invite by ID
	Get(ctx context.Context, inviteID string) (*entities.StakingInvite, error)

	// ListByEvent returns every invite of an event
	ListByEvent(ctx context.Context, eventID string) ([]*entities.StakingInvite, error)

	// ListByStaker returns invites addressed to a staker
	ListByStaker(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakingInvite, error)
}

// SessionIdentityResolver maps runtime session keys to persistent identities
type SessionIdentityResolver interface {
	// Resolve returns the identity for the runtime key, minting it on first use
	Resolve(ctx context.Context, runtimeSessionKey, ownerID string) (entities.PersistentSessionIdentity, error)

	// Lookup returns the cached identity without minting one
	Lookup(ctx context.Context, runtimeSessionKey string) (entities.PersistentSessionIdentity, bool, error)

	// Release forgets the identity of a finished session
	Release(ctx context.Context, runtimeSessionKey string) error
}

// ConfigurationReconciler merges client drafts with persisted agreements
type ConfigurationReconciler interface {
	// Reconcile returns one draft per staker. On a store failure it returns
	// the local drafts unchanged together with the error.
	Reconcile(ctx context.Context, session entities.DraftSession, localDrafts []*entities.StakeConfiguration, remoteAgreements []*entities.StakeAgreement) ([]*entities.StakeConfiguration, error)

	// LoadDrafts returns the cached drafts of a session, or nil when none are cached
	LoadDrafts(ctx context.Context, sessionID entities.PersistentSessionIdentity) (*entities.DraftSet, error)

	// SaveDrafts replaces the cached drafts of a session
	SaveDrafts(ctx context.Context, set *entities.DraftSet) error

	// ClearDrafts removes the cached drafts of a session
	ClearDrafts(ctx context.Context, sessionID entities.PersistentSessionIdentity) error

	// PendingSessions lists sessions whose cached drafts still need a successful pass
	PendingSessions(ctx context.Context) ([]entities.PersistentSessionIdentity, error)
}
