package httptransport

import (
	"context"

	"stakehouse/application"
	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEngine is a mock implementation of Engine
type MockEngine struct {
	mock.Mock
}

func agreementResult(args mock.Arguments) (*entities.StakeAgreement, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func agreementsResult(args mock.Arguments) ([]*entities.StakeAgreement, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

func invitesResult(args mock.Arguments) ([]*entities.StakingInvite, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakingInvite), args.Error(1)
}

func (m *MockEngine) ConfigureStakes(ctx context.Context, req application.ConfigureStakesRequest) (*application.ConfigureStakesResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.ConfigureStakesResult), args.Error(1)
}

func (m *MockEngine) GetDrafts(ctx context.Context, runtimeSessionKey string) (*entities.DraftSet, error) {
	args := m.Called(ctx, runtimeSessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DraftSet), args.Error(1)
}

func (m *MockEngine) FinalizeSession(ctx context.Context, req application.FinalizeSessionRequest) ([]*entities.StakeAgreement, error) {
	return agreementsResult(m.Called(ctx, req))
}

func (m *MockEngine) DiscardSession(ctx context.Context, runtimeSessionKey string) (int, error) {
	args := m.Called(ctx, runtimeSessionKey)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) UpsertStake(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, req))
}

func (m *MockEngine) ProposeStake(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, req))
}

func (m *MockEngine) ActivateStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, stakeID))
}

func (m *MockEngine) AttachSettlement(ctx context.Context, stakeID string, buyIn, cashout decimal.Decimal, requireConfirmation bool) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, stakeID, buyIn, cashout, requireConfirmation))
}

func (m *MockEngine) ConfirmSettlement(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, stakeID))
}

func (m *MockEngine) DeclineStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, stakeID))
}

func (m *MockEngine) GetStake(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, stakeID))
}

func (m *MockEngine) ListSessionStakes(ctx context.Context, sessionID string) ([]*entities.StakeAgreement, error) {
	return agreementsResult(m.Called(ctx, sessionID))
}

func (m *MockEngine) ListPlayerStakes(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error) {
	return agreementsResult(m.Called(ctx, playerID))
}

func (m *MockEngine) ListStakerStakes(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakeAgreement, error) {
	return agreementsResult(m.Called(ctx, staker))
}

func (m *MockEngine) CreateInvites(ctx context.Context, eventID string, metadata entities.EventMetadata, stakedPlayerID string, terms []entities.StakerTerm) ([]*entities.StakingInvite, error) {
	return invitesResult(m.Called(ctx, eventID, metadata, stakedPlayerID, terms))
}

func (m *MockEngine) AcceptInvite(ctx context.Context, inviteID string) (*entities.StakeAgreement, error) {
	return agreementResult(m.Called(ctx, inviteID))
}

func (m *MockEngine) DeclineInvite(ctx context.Context, inviteID string) error {
	args := m.Called(ctx, inviteID)
	return args.Error(0)
}

func (m *MockEngine) AttachSessionResults(ctx context.Context, eventID, stakedPlayerID string, buyIn, cashout decimal.Decimal) (int, error) {
	args := m.Called(ctx, eventID, stakedPlayerID, buyIn, cashout)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) GetInvite(ctx context.Context, inviteID string) (*entities.StakingInvite, error) {
	args := m.Called(ctx, inviteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakingInvite), args.Error(1)
}

func (m *MockEngine) ListEventInvites(ctx context.Context, eventID string) ([]*entities.StakingInvite, error) {
	return invitesResult(m.Called(ctx, eventID))
}

func (m *MockEngine) ListStakerInvites(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakingInvite, error) {
	return invitesResult(m.Called(ctx, staker))
}

// MockDirectory is a mock implementation of DirectoryWriter
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) SetDisplayName(ctx context.Context, userID, displayName string) error {
	args := m.Called(ctx, userID, displayName)
	return args.Error(0)
}
