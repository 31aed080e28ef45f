package services

import (
	"testing"
	"time"

	"stakehouse/domain/entities"
	"stakehouse/domain/events"
	"stakehouse/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// Test constants for consistent test data
const (
	TestSessionID = "player-1_1714000000"
	TestPlayerID  = "player-1"
	TestStakerID  = "staker-9"
	TestEventID   = "event-77"
)

// TestMocks aggregates all mocks used by the service tests
type TestMocks struct {
	AgreementRepo    *testhelpers.MockStakeAgreementRepository
	InviteRepo       *testhelpers.MockStakingInviteRepository
	AgreementService *testhelpers.MockStakeAgreementService
	Directory        *testhelpers.MockStakerDirectory
	EventPublisher   *testhelpers.MockEventPublisher
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		AgreementRepo:    &testhelpers.MockStakeAgreementRepository{},
		InviteRepo:       &testhelpers.MockStakingInviteRepository{},
		AgreementService: &testhelpers.MockStakeAgreementService{},
		Directory:        &testhelpers.MockStakerDirectory{},
		EventPublisher:   &testhelpers.MockEventPublisher{},
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.AgreementRepo.AssertExpectations(t)
	m.InviteRepo.AssertExpectations(t)
	m.AgreementService.AssertExpectations(t)
	m.Directory.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

// ExpectEventPublish sets up event publisher mock expectations
func (m *TestMocks) ExpectEventPublish(eventType events.EventType) {
	m.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type() == eventType
	})).Return(nil)
}

// NewAgreement builds an agreement on TestSessionID for TestStakerID
func NewAgreement(id string, status entities.StakeStatus, percentage, markup string) *entities.StakeAgreement {
	ts := time.Date(2025, 4, 20, 18, 0, 0, 0, time.UTC)
	return &entities.StakeAgreement{
		ID:             id,
		SessionID:      TestSessionID,
		Staker:         entities.RegisteredStaker(TestStakerID),
		StakedPlayerID: TestPlayerID,
		Percentage:     decimal.RequireFromString(percentage),
		Markup:         decimal.RequireFromString(markup),
		BuyIn:          decimal.Zero,
		Cashout:        decimal.Zero,
		Status:         status,
		ProposedAt:     ts,
		LastUpdatedAt:  ts,
	}
}

// NewInvite builds a pending invite for TestEventID and TestPlayerID
func NewInvite(id string, staker entities.StakerIdentity, percentage, markup string) *entities.StakingInvite {
	ts := time.Date(2025, 4, 19, 12, 0, 0, 0, time.UTC)
	return &entities.StakingInvite{
		ID:             id,
		EventID:        TestEventID,
		StakedPlayerID: TestPlayerID,
		Staker:         staker,
		Percentage:     decimal.RequireFromString(percentage),
		Markup:         decimal.RequireFromString(markup),
		Status:         entities.InviteStatusPending,
		CreatedAt:      ts,
		LastUpdatedAt:  ts,
	}
}
