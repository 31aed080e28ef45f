package testhelpers

import (
	"context"

	"stakehouse/domain/entities"
	"stakehouse/domain/events"
	"stakehouse/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockStakeAgreementRepository is a mock implementation of StakeAgreementRepository
type MockStakeAgreementRepository struct {
	mock.Mock
}

func (m *MockStakeAgreementRepository) GetByID(ctx context.Context, id string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementRepository) GetCurrentForUpdate(ctx context.Context, sessionID, stakerKey string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, sessionID, stakerKey)
	if fn, ok := args.Get(0).(func(context.Context, string, string) *entities.StakeAgreement); ok {
		return fn(ctx, sessionID, stakerKey), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementRepository) Upsert(ctx context.Context, agreement *entities.StakeAgreement) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, agreement)
	// Allows tests to echo or record the argument
	if fn, ok := args.Get(0).(func(context.Context, *entities.StakeAgreement) *entities.StakeAgreement); ok {
		return fn(ctx, agreement), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementRepository) Update(ctx context.Context, agreement *entities.StakeAgreement) error {
	args := m.Called(ctx, agreement)
	return args.Error(0)
}

func (m *MockStakeAgreementRepository) ListBySession(ctx context.Context, sessionIDs ...string) ([]*entities.StakeAgreement, error) {
	args := m.Called(ctx, sessionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementRepository) ListByPlayer(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementRepository) ListByStaker(ctx context.Context, stakerKey string) ([]*entities.StakeAgreement, error) {
	args := m.Called(ctx, stakerKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

// MockStakingInviteRepository is a mock implementation of StakingInviteRepository
type MockStakingInviteRepository struct {
	mock.Mock
}

func (m *MockStakingInviteRepository) Create(ctx context.Context, invite *entities.StakingInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockStakingInviteRepository) GetByID(ctx context.Context, id string) (*entities.StakingInvite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakingInvite), args.Error(1)
}

func (m *MockStakingInviteRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.StakingInvite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakingInvite), args.Error(1)
}

func (m *MockStakingInviteRepository) Update(ctx context.Context, invite *entities.StakingInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockStakingInviteRepository) ListPendingForUpdate(ctx context.Context, eventID, stakedPlayerID string) ([]*entities.StakingInvite, error) {
	args := m.Called(ctx, eventID, stakedPlayerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakingInvite), args.Error(1)
}

func (m *MockStakingInviteRepository) ListByEvent(ctx context.Context, eventID string) ([]*entities.StakingInvite, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakingInvite), args.Error(1)
}

func (m *MockStakingInviteRepository) ListByStaker(ctx context.Context, stakerKey string) ([]*entities.StakingInvite, error) {
	args := m.Called(ctx, stakerKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakingInvite), args.Error(1)
}

// MockStakeAgreementService is a mock implementation of StakeAgreementService
type MockStakeAgreementService struct {
	mock.Mock
}

func (m *MockStakeAgreementService) Upsert(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) Propose(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) Activate(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, stakeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) AttachSettlement(ctx context.Context, stakeID string, buyIn, cashout decimal.Decimal, requireConfirmation bool) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, stakeID, buyIn, cashout, requireConfirmation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) ConfirmSettlement(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, stakeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) Decline(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, stakeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) MigrateSession(ctx context.Context, stakeID string, sessionID string) (*interfaces.SessionMigration, error) {
	args := m.Called(ctx, stakeID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.SessionMigration), args.Error(1)
}

func (m *MockStakeAgreementService) Get(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	args := m.Called(ctx, stakeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) ListBySession(ctx context.Context, sessionIDs ...string) ([]*entities.StakeAgreement, error) {
	args := m.Called(ctx, sessionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) ListByPlayer(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

func (m *MockStakeAgreementService) ListByStaker(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakeAgreement, error) {
	args := m.Called(ctx, staker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StakeAgreement), args.Error(1)
}

// MockStakerDirectory is a mock implementation of StakerDirectory
type MockStakerDirectory struct {
	mock.Mock
}

func (m *MockStakerDirectory) ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// MockKeyValueStore is a mock implementation of KeyValueStore
type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyValueStore) Put(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockKeyValueStore) PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	args := m.Called(ctx, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyValueStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
