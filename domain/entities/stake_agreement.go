package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakeStatus represents the lifecycle state of a stake agreement
type StakeStatus string

const (
	StakeStatusPendingAcceptance  StakeStatus = "pending_acceptance"
	StakeStatusActive             StakeStatus = "active"
	StakeStatusAwaitingSettlement StakeStatus = "awaiting_settlement"
	StakeStatusSettled            StakeStatus = "settled"
	StakeStatusDeclined           StakeStatus = "declined"
)

// allowed lists the forward transitions out of each non-terminal status
var allowedStakeTransitions = map[StakeStatus][]StakeStatus{
	StakeStatusPendingAcceptance:  {StakeStatusActive, StakeStatusDeclined},
	StakeStatusActive:             {StakeStatusAwaitingSettlement, StakeStatusSettled, StakeStatusDeclined},
	StakeStatusAwaitingSettlement: {StakeStatusSettled},
}

// IsTerminal reports whether no further transitions are permitted
func (s StakeStatus) IsTerminal() bool {
	return s == StakeStatusSettled || s == StakeStatusDeclined
}

// IsValid checks that s is a known status
func (s StakeStatus) IsValid() bool {
	switch s {
	case StakeStatusPendingAcceptance, StakeStatusActive, StakeStatusAwaitingSettlement,
		StakeStatusSettled, StakeStatusDeclined:
		return true
	}
	return false
}

// CanTransitionTo checks the stake state machine
func (s StakeStatus) CanTransitionTo(next StakeStatus) bool {
	for _, allowed := range allowedStakeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsTermChanges reports whether percentage and markup may still be edited
func (s StakeStatus) AcceptsTermChanges() bool {
	return s == StakeStatusPendingAcceptance || s == StakeStatusActive
}

func (s StakeStatus) String() string {
	return string(s)
}

// SessionMetadata is descriptive, non-authoritative session information
// copied onto an agreement when it is created.
type SessionMetadata struct {
	IsTournament    bool       `json:"is_tournament"`
	SessionGameName string     `json:"session_game_name,omitempty"`
	SessionStakes   string     `json:"session_stakes,omitempty"`
	SessionDate     *time.Time `json:"session_date,omitempty"`
}

// StakeTerms is the percentage/markup pair sold to a staker
type StakeTerms struct {
	Percentage decimal.Decimal `json:"percentage"`
	Markup     decimal.Decimal `json:"markup"`
}

// Validate checks 0 < percentage <= 1 and markup >= 1
func (t StakeTerms) Validate() error {
	if !t.Percentage.IsPositive() || t.Percentage.GreaterThan(decimal.NewFromInt(1)) {
		return NewValidationError("percentage", "must be greater than 0 and at most 1")
	}
	if t.Markup.LessThan(decimal.NewFromInt(1)) {
		return NewValidationError("markup", "must be at least 1.0")
	}
	return nil
}

// Equal compares terms numerically
func (t StakeTerms) Equal(other StakeTerms) bool {
	return t.Percentage.Equal(other.Percentage) && t.Markup.Equal(other.Markup)
}

// StakeAgreement is a persisted sale of a fraction of one session's result.
//
// SettlementAmount follows a single sign convention: negative means the
// staked player owes the staker, positive means the staker owes the player.
type StakeAgreement struct {
	ID               string           `db:"id" json:"id"`
	SessionID        string           `db:"session_id" json:"session_id"`
	Staker           StakerIdentity   `db:"-" json:"staker"`
	StakedPlayerID   string           `db:"staked_player_user_id" json:"staked_player_id"`
	Percentage       decimal.Decimal  `db:"stake_percentage" json:"percentage"`
	Markup           decimal.Decimal  `db:"markup" json:"markup"`
	BuyIn            decimal.Decimal  `db:"total_buy_in" json:"buy_in"`
	Cashout          decimal.Decimal  `db:"cashout" json:"cashout"`
	SettlementAmount *decimal.Decimal `db:"settlement_amount" json:"settlement_amount,omitempty"`
	Status           StakeStatus      `db:"status" json:"status"`
	SessionMetadata
	ProposedAt    time.Time  `db:"proposed_at" json:"proposed_at"`
	LastUpdatedAt time.Time  `db:"last_updated_at" json:"last_updated_at"`
	SettledAt     *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

// Terms returns the agreement's percentage and markup
func (a *StakeAgreement) Terms() StakeTerms {
	return StakeTerms{Percentage: a.Percentage, Markup: a.Markup}
}

// StakerKey returns the deduplication key of the agreement's staker
func (a *StakeAgreement) StakerKey() string {
	return a.Staker.Key()
}

// IsOffPlatform reports whether the staker has no platform account
func (a *StakeAgreement) IsOffPlatform() bool {
	return a.Staker.IsManual()
}

// IsActive checks if the agreement is waiting for session results
func (a *StakeAgreement) IsActive() bool {
	return a.Status == StakeStatusActive
}

// IsSettled checks if a settlement has been finalized
func (a *StakeAgreement) IsSettled() bool {
	return a.Status == StakeStatusSettled
}

// HasSettlement checks if a settlement amount has been computed
func (a *StakeAgreement) HasSettlement() bool {
	return a.SettlementAmount != nil
}

// TransitionTo moves the agreement to next if the state machine allows it
func (a *StakeAgreement) TransitionTo(next StakeStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return &StateTransitionError{From: a.Status, To: next}
	}
	a.Status = next
	a.LastUpdatedAt = at
	if next == StakeStatusSettled {
		a.SettledAt = &at
	}
	return nil
}

// ApplyTerms updates the terms in place when the status still allows edits
func (a *StakeAgreement) ApplyTerms(terms StakeTerms, at time.Time) error {
	if !a.Status.AcceptsTermChanges() {
		return &StateTransitionError{From: a.Status, To: a.Status}
	}
	a.Percentage = terms.Percentage
	a.Markup = terms.Markup
	a.LastUpdatedAt = at
	return nil
}

// HasResults checks whether buy-in and cash-out equal the given values
func (a *StakeAgreement) HasResults(buyIn, cashout decimal.Decimal) bool {
	return a.BuyIn.Equal(buyIn) && a.Cashout.Equal(cashout)
}
