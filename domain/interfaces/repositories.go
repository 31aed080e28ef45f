package interfaces

import (
	"context"

	"stakehouse/domain/entities"
	"stakehouse/domain/events"
)

// StakeAgreementRepository defines the interface for stake agreement data access
type StakeAgreementRepository interface {
	// GetByID retrieves an agreement by its ID
	GetByID(ctx context.Context, id string) (*entities.StakeAgreement, error)

	// GetByIDForUpdate retrieves an agreement by ID and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*entities.StakeAgreement, error)

	// GetCurrentForUpdate retrieves the non-declined agreement for a session and
	// staker key, locking the row
	GetCurrentForUpdate(ctx context.Context, sessionID, stakerKey string) (*entities.StakeAgreement, error)

	// Upsert inserts the agreement or, when a non-declined row already exists for
	// the same session and staker, overwrites its terms unless the stored row was
	// updated more recently. Returns the row as stored.
	Upsert(ctx context.Context, agreement *entities.StakeAgreement) (*entities.StakeAgreement, error)

	// Update persists status, results, settlement and session of an existing agreement
	Update(ctx context.Context, agreement *entities.StakeAgreement) error

	// ListBySession returns every agreement filed under the given session ids
	ListBySession(ctx context.Context, sessionIDs ...string) ([]*entities.StakeAgreement, error)

	// ListByPlayer returns agreements where the user is the staked player
	ListByPlayer(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error)

	// ListByStaker returns agreements for a staker key
	ListByStaker(ctx context.Context, stakerKey string) ([]*entities.StakeAgreement, error)
}

// StakingInviteRepository defines the interface for staking invite data access
type StakingInviteRepository interface {
	// Create inserts a new invite
	Create(ctx context.Context, invite *entities.StakingInvite) error

	// GetByID retrieves an invite by its ID
	GetByID(ctx context.Context, id string) (*entities.StakingInvite, error)

	// GetByIDForUpdate retrieves an invite by ID and locks its row
	GetByIDForUpdate(ctx context.Context, id string) (*entities.StakingInvite, error)

	// Update persists status, response and result fields of an invite
	Update(ctx context.Context, invite *entities.StakingInvite) error

	// ListPendingForUpdate returns and locks the pending invites of one event participant
	ListPendingForUpdate(ctx context.Context, eventID, stakedPlayerID string) ([]*entities.StakingInvite, error)

	// ListByEvent returns every invite created for an event
	ListByEvent(ctx context.Context, eventID string) ([]*entities.StakingInvite, error)

	// ListByStaker returns invites addressed to a staker key
	ListByStaker(ctx context.Context, stakerKey string) ([]*entities.StakingInvite, error)
}

// KeyValueStore is a small persistent byte store used for session identities
// and draft caches
type KeyValueStore interface {
	// Get returns the value for key, or nil when the key does not exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent stores value only when key does not exist and returns the
	// value held by key after the call
	PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Keys lists keys starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// StakerDirectory resolves display names of registered stakers
type StakerDirectory interface {
	// ResolveDisplayNames returns the display name for each known user id.
	// Unknown ids are absent from the result.
	ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the surrounding
// transaction commits
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}
