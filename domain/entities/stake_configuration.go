package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakeConflict keeps the local terms that lost against the persisted record
type StakeConflict struct {
	LocalPercentage decimal.Decimal `json:"local_percentage"`
	LocalMarkup     decimal.Decimal `json:"local_markup"`
}

// StakeConfiguration is a client-side draft of one staker's terms.
// OriginalStakeID is set once the draft is backed by a persisted agreement.
type StakeConfiguration struct {
	Staker          StakerIdentity  `json:"staker"`
	Percentage      decimal.Decimal `json:"percentage"`
	Markup          decimal.Decimal `json:"markup"`
	OriginalStakeID *string         `json:"original_stake_id,omitempty"`
	Unsynced        bool            `json:"unsynced"`
	Conflict        *StakeConflict  `json:"conflict,omitempty"`

	// DisplayName is resolved from the directory for registered stakers and
	// is never persisted.
	DisplayName string `json:"-"`
}

// Key returns the staker deduplication key
func (c *StakeConfiguration) Key() string {
	return c.Staker.Key()
}

// Terms returns the draft's percentage and markup
func (c *StakeConfiguration) Terms() StakeTerms {
	return StakeTerms{Percentage: c.Percentage, Markup: c.Markup}
}

// IsPersisted checks if the draft is backed by a stored agreement
func (c *StakeConfiguration) IsPersisted() bool {
	return c.OriginalStakeID != nil
}

// HasConflict checks if local edits lost against the persisted terms
func (c *StakeConfiguration) HasConflict() bool {
	return c.Conflict != nil
}

// Validate checks the staker and terms of the draft
func (c *StakeConfiguration) Validate() error {
	if err := c.Staker.Validate(); err != nil {
		return err
	}
	return c.Terms().Validate()
}

// DraftFromAgreement builds a synced draft mirroring a persisted agreement
func DraftFromAgreement(a *StakeAgreement) *StakeConfiguration {
	id := a.ID
	return &StakeConfiguration{
		Staker:          a.Staker,
		Percentage:      a.Percentage,
		Markup:          a.Markup,
		OriginalStakeID: &id,
	}
}

// DraftSession identifies the session a set of drafts belongs to
type DraftSession struct {
	SessionID      PersistentSessionIdentity `json:"session_id"`
	StakedPlayerID string                    `json:"staked_player_id"`
	// EventID links the session to an event whose invites may have filed
	// agreements under a provisional id
	EventID  string          `json:"event_id,omitempty"`
	Metadata SessionMetadata `json:"metadata"`
}

// ProvisionalSessionID returns the event-scoped id for the session, if linked
func (s DraftSession) ProvisionalSessionID() (string, bool) {
	if s.EventID == "" {
		return "", false
	}
	return EventScopedSessionID(s.EventID, s.StakedPlayerID), true
}

// DraftSet is the cached draft state of one session. Pending marks a set
// whose last reconciliation pass failed and must be retried.
type DraftSet struct {
	Session DraftSession          `json:"session"`
	Drafts  []*StakeConfiguration `json:"drafts"`
	Pending bool                  `json:"pending"`
	SavedAt time.Time             `json:"saved_at"`
}
