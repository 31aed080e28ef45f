package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// InviteStatus represents the state of a staking invite
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
)

// EventMetadata is the display information the event collaborator supplies
type EventMetadata struct {
	EventName    string     `json:"event_name,omitempty"`
	EventDate    *time.Time `json:"event_date,omitempty"`
	GameName     string     `json:"game_name,omitempty"`
	Stakes       string     `json:"stakes,omitempty"`
	IsTournament bool       `json:"is_tournament"`
}

// SessionMetadata converts event details into agreement metadata
func (m EventMetadata) SessionMetadata() SessionMetadata {
	return SessionMetadata{
		IsTournament:    m.IsTournament,
		SessionGameName: m.GameName,
		SessionStakes:   m.Stakes,
		SessionDate:     m.EventDate,
	}
}

// StakerTerm seeds a single invite
type StakerTerm struct {
	Staker StakerIdentity `json:"staker"`
	StakeTerms
}

// Validate checks both the staker and the terms
func (t StakerTerm) Validate() error {
	if err := t.Staker.Validate(); err != nil {
		return err
	}
	return t.StakeTerms.Validate()
}

// StakingInvite offers a staker a share of a player's result at an event.
type StakingInvite struct {
	ID                 string           `db:"id" json:"id"`
	EventID            string           `db:"event_id" json:"event_id"`
	EventMetadata      EventMetadata    `db:"-" json:"event_metadata"`
	StakedPlayerID     string           `db:"staked_player_user_id" json:"staked_player_id"`
	Staker             StakerIdentity   `db:"-" json:"staker"`
	Percentage         decimal.Decimal  `db:"stake_percentage" json:"percentage"`
	Markup             decimal.Decimal  `db:"markup" json:"markup"`
	Status             InviteStatus     `db:"status" json:"status"`
	SessionBuyIn       *decimal.Decimal `db:"session_buy_in" json:"session_buy_in,omitempty"`
	SessionCashout     *decimal.Decimal `db:"session_cashout" json:"session_cashout,omitempty"`
	SessionCompletedAt *time.Time       `db:"session_completed_at" json:"session_completed_at,omitempty"`
	AgreementID        *string          `db:"agreement_id" json:"agreement_id,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	RespondedAt        *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
	LastUpdatedAt      time.Time        `db:"last_updated_at" json:"last_updated_at"`
}

// IsPending checks if the invite is still awaiting a response
func (i *StakingInvite) IsPending() bool {
	return i.Status == InviteStatusPending
}

// HasSessionResults reports whether both buy-in and cash-out are known
func (i *StakingInvite) HasSessionResults() bool {
	return i.SessionBuyIn != nil && i.SessionCashout != nil
}

// Terms returns the offered percentage and markup
func (i *StakingInvite) Terms() StakeTerms {
	return StakeTerms{Percentage: i.Percentage, Markup: i.Markup}
}

// ProvisionalSessionID is the event-scoped identifier agreements are filed
// under until the player's session receives its permanent identity.
func (i *StakingInvite) ProvisionalSessionID() string {
	return EventScopedSessionID(i.EventID, i.StakedPlayerID)
}

// Respond records an accept or decline answer
func (i *StakingInvite) Respond(accept bool, at time.Time) error {
	if !i.IsPending() {
		return ErrAlreadyAnswered
	}
	if accept {
		i.Status = InviteStatusAccepted
	} else {
		i.Status = InviteStatusDeclined
	}
	i.RespondedAt = &at
	i.LastUpdatedAt = at
	return nil
}

// AttachResults overwrites the session result fields without touching status
func (i *StakingInvite) AttachResults(buyIn, cashout decimal.Decimal, at time.Time) {
	i.SessionBuyIn = &buyIn
	i.SessionCashout = &cashout
	i.SessionCompletedAt = &at
	i.LastUpdatedAt = at
}
