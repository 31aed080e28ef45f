package events

import "github.com/shopspring/decimal"

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeStakeUpserted          EventType = "stake_upserted"
	EventTypeStakeSettled           EventType = "stake_settled"
	EventTypeStakeDeclined          EventType = "stake_declined"
	EventTypeStakeMigrated          EventType = "stake_migrated"
	EventTypeInviteCreated          EventType = "invite_created"
	EventTypeInviteAccepted         EventType = "invite_accepted"
	EventTypeInviteDeclined         EventType = "invite_declined"
	EventTypeInviteResultsAttached  EventType = "invite_results_attached"
	EventTypeSessionFinalized       EventType = "session_finalized"
	EventTypeSessionResultsReported EventType = "session_results_reported"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// StakeUpsertedEvent is published when an agreement is created or its terms change
type StakeUpsertedEvent struct {
	StakeID        string
	SessionID      string
	StakedPlayerID string
	StakerKey      string
	Percentage     decimal.Decimal
	Markup         decimal.Decimal
	Status         string
	Created        bool
}

func (e StakeUpsertedEvent) Type() EventType {
	return EventTypeStakeUpserted
}

// StakeSettledEvent is published when a settlement amount is attached
type StakeSettledEvent struct {
	StakeID          string
	SessionID        string
	StakedPlayerID   string
	StakerKey        string
	BuyIn            decimal.Decimal
	Cashout          decimal.Decimal
	SettlementAmount decimal.Decimal
	Status           string
}

func (e StakeSettledEvent) Type() EventType {
	return EventTypeStakeSettled
}

// StakeDeclinedEvent is published when an agreement is declined
type StakeDeclinedEvent struct {
	StakeID        string
	SessionID      string
	StakedPlayerID string
	StakerKey      string
	PreviousStatus string
}

func (e StakeDeclinedEvent) Type() EventType {
	return EventTypeStakeDeclined
}

// StakeMigratedEvent is published when an agreement moves from a provisional
// session id to the permanent one. Superseded is set when the record was
// declined because the permanent id already carried newer terms.
type StakeMigratedEvent struct {
	StakeID       string
	FromSessionID string
	ToSessionID   string
	Superseded    bool
}

func (e StakeMigratedEvent) Type() EventType {
	return EventTypeStakeMigrated
}

// InviteCreatedEvent is published for every new staking invite
type InviteCreatedEvent struct {
	InviteID       string
	EventID        string
	StakedPlayerID string
	StakerKey      string
	Percentage     decimal.Decimal
	Markup         decimal.Decimal
}

func (e InviteCreatedEvent) Type() EventType {
	return EventTypeInviteCreated
}

// InviteAcceptedEvent is published when a staker accepts an invite
type InviteAcceptedEvent struct {
	InviteID    string
	EventID     string
	AgreementID string
	Settled     bool
}

func (e InviteAcceptedEvent) Type() EventType {
	return EventTypeInviteAccepted
}

// InviteDeclinedEvent is published when a staker declines an invite
type InviteDeclinedEvent struct {
	InviteID string
	EventID  string
}

func (e InviteDeclinedEvent) Type() EventType {
	return EventTypeInviteDeclined
}

// InviteResultsAttachedEvent is published after session results are copied
// onto the pending invites of an event participant
type InviteResultsAttachedEvent struct {
	EventID        string
	StakedPlayerID string
	BuyIn          decimal.Decimal
	Cashout        decimal.Decimal
	InvitesUpdated int
}

func (e InviteResultsAttachedEvent) Type() EventType {
	return EventTypeInviteResultsAttached
}

// SessionFinalizedEvent is consumed from the session lifecycle collaborator
type SessionFinalizedEvent struct {
	RuntimeSessionKey   string
	OwnerID             string
	EventID             string
	BuyIn               decimal.Decimal
	Cashout             decimal.Decimal
	RequireConfirmation bool
}

func (e SessionFinalizedEvent) Type() EventType {
	return EventTypeSessionFinalized
}

// SessionResultsReportedEvent is consumed from the event collaborator once a
// participant's results are known
type SessionResultsReportedEvent struct {
	EventID        string
	StakedPlayerID string
	BuyIn          decimal.Decimal
	Cashout        decimal.Decimal
}

func (e SessionResultsReportedEvent) Type() EventType {
	return EventTypeSessionResultsReported
}
