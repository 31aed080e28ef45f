package testutil

import (
	"time"

	"stakehouse/domain/entities"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Now returns the current time at database precision
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CreateTestAgreement creates an active agreement for a registered staker
func CreateTestAgreement(sessionID, playerID, stakerID string) *entities.StakeAgreement {
	ts := Now()
	return &entities.StakeAgreement{
		ID:             ulid.Make().String(),
		SessionID:      sessionID,
		Staker:         entities.RegisteredStaker(stakerID),
		StakedPlayerID: playerID,
		Percentage:     decimal.RequireFromString("0.25"),
		Markup:         decimal.RequireFromString("1.1"),
		BuyIn:          decimal.Zero,
		Cashout:        decimal.Zero,
		Status:         entities.StakeStatusActive,
		SessionMetadata: entities.SessionMetadata{
			SessionGameName: "NLH",
			SessionStakes:   "1/2",
		},
		ProposedAt:    ts,
		LastUpdatedAt: ts,
	}
}

// CreateTestManualAgreement creates an active agreement for an off-platform staker
func CreateTestManualAgreement(sessionID, playerID, name string) *entities.StakeAgreement {
	agreement := CreateTestAgreement(sessionID, playerID, "")
	agreement.Staker = entities.ManualStaker(name, nil)
	return agreement
}

// CreateTestInvite creates a pending invite for a registered staker
func CreateTestInvite(eventID, playerID, stakerID string) *entities.StakingInvite {
	ts := Now()
	return &entities.StakingInvite{
		ID:      ulid.Make().String(),
		EventID: eventID,
		EventMetadata: entities.EventMetadata{
			EventName: "Sunday Major",
			GameName:  "NLH",
			Stakes:    "MTT",
		},
		StakedPlayerID: playerID,
		Staker:         entities.RegisteredStaker(stakerID),
		Percentage:     decimal.RequireFromString("0.1"),
		Markup:         decimal.RequireFromString("1.2"),
		Status:         entities.InviteStatusPending,
		CreatedAt:      ts,
		LastUpdatedAt:  ts,
	}
}
