package services

import (
	"context"
	"testing"

	"stakehouse/domain/entities"
	"stakehouse/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStakingInviteService_CreateInvites(t *testing.T) {
	t.Parallel()

	metadata := entities.EventMetadata{EventName: "Friday Deepstack", GameName: "NLH", Stakes: "2/5"}

	tests := []struct {
		name       string
		terms      []entities.StakerTerm
		setupMocks func(m *TestMocks)
		wantCount  int
		wantErr    error
	}{
		{
			name: "one pending invite per term",
			terms: []entities.StakerTerm{
				{Staker: entities.RegisteredStaker("staker-1"), StakeTerms: entities.StakeTerms{Percentage: dec("0.2"), Markup: dec("1.1")}},
				{Staker: entities.ManualStaker("Dan", nil), StakeTerms: entities.StakeTerms{Percentage: dec("0.1"), Markup: dec("1")}},
			},
			setupMocks: func(m *TestMocks) {
				m.InviteRepo.On("Create", mock.Anything, mock.MatchedBy(func(i *entities.StakingInvite) bool {
					return i.ID != "" && i.Status == entities.InviteStatusPending && i.EventID == TestEventID
				})).Return(nil).Times(2)
				m.ExpectEventPublish(events.EventTypeInviteCreated)
			},
			wantCount: 2,
		},
		{
			name: "invalid term rejects the whole batch",
			terms: []entities.StakerTerm{
				{Staker: entities.RegisteredStaker("staker-1"), StakeTerms: entities.StakeTerms{Percentage: dec("0.2"), Markup: dec("1.1")}},
				{Staker: entities.ManualStaker("Dan", nil), StakeTerms: entities.StakeTerms{Percentage: dec("0.1"), Markup: dec("0.5")}},
			},
			setupMocks: func(m *TestMocks) {},
			wantErr:    entities.ErrValidation,
		},
		{
			name: "duplicate staker rejects the batch",
			terms: []entities.StakerTerm{
				{Staker: entities.ManualStaker("Dan Smith", nil), StakeTerms: entities.StakeTerms{Percentage: dec("0.2"), Markup: dec("1")}},
				{Staker: entities.ManualStaker("dan  smith", nil), StakeTerms: entities.StakeTerms{Percentage: dec("0.1"), Markup: dec("1")}},
			},
			setupMocks: func(m *TestMocks) {},
			wantErr:    entities.ErrValidation,
		},
		{
			name:       "empty batch",
			setupMocks: func(m *TestMocks) {},
			wantErr:    entities.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mocks := NewTestMocks()
			tt.setupMocks(mocks)
			service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)

			invites, err := service.CreateInvites(context.Background(), TestEventID, metadata, TestPlayerID, tt.terms)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				mocks.InviteRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Len(t, invites, tt.wantCount)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestStakingInviteService_AcceptWithoutResults(t *testing.T) {
	t.Parallel()

	invite := NewInvite("inv-1", entities.RegisteredStaker(TestStakerID), "0.25", "1.2")
	provisionalID := entities.EventScopedSessionID(TestEventID, TestPlayerID)

	mocks := NewTestMocks()
	mocks.InviteRepo.On("GetByIDForUpdate", mock.Anything, "inv-1").Return(invite, nil)
	mocks.AgreementRepo.On("GetCurrentForUpdate", mock.Anything, provisionalID, "user:"+TestStakerID).Return(nil, nil)
	mocks.AgreementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(a *entities.StakeAgreement) bool {
		return a.Status == entities.StakeStatusActive && a.SessionID == provisionalID
	})).Return(func(_ context.Context, a *entities.StakeAgreement) *entities.StakeAgreement { return a }, nil).Once()
	mocks.InviteRepo.On("Update", mock.Anything, mock.MatchedBy(func(i *entities.StakingInvite) bool {
		return i.Status == entities.InviteStatusAccepted && i.AgreementID != nil
	})).Return(nil)
	mocks.ExpectEventPublish(events.EventTypeStakeUpserted)
	mocks.ExpectEventPublish(events.EventTypeInviteAccepted)

	service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)
	agreement, err := service.Accept(context.Background(), "inv-1")

	require.NoError(t, err)
	assert.Equal(t, entities.StakeStatusActive, agreement.Status)
	assert.Equal(t, agreement.ID, *invite.AgreementID)
	assert.Nil(t, agreement.SettlementAmount)
	mocks.AssertAllExpectations(t)
}

func TestStakingInviteService_AcceptWithResultsSettlesInOneWrite(t *testing.T) {
	t.Parallel()

	invite := NewInvite("inv-1", entities.ManualStaker("Dan", nil), "0.5", "2")
	buyIn, cashout := dec("100"), dec("0")
	invite.SessionBuyIn = &buyIn
	invite.SessionCashout = &cashout

	mocks := NewTestMocks()
	mocks.InviteRepo.On("GetByIDForUpdate", mock.Anything, "inv-1").Return(invite, nil)
	mocks.AgreementRepo.On("GetCurrentForUpdate", mock.Anything, invite.ProvisionalSessionID(), "name:dan").Return(nil, nil)
	mocks.AgreementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(a *entities.StakeAgreement) bool {
		return a.Status == entities.StakeStatusSettled &&
			a.SettlementAmount != nil && a.SettlementAmount.Equal(dec("100")) &&
			a.SettledAt != nil
	})).Return(func(_ context.Context, a *entities.StakeAgreement) *entities.StakeAgreement { return a }, nil).Once()
	mocks.InviteRepo.On("Update", mock.Anything, invite).Return(nil)
	mocks.ExpectEventPublish(events.EventTypeStakeSettled)
	mocks.ExpectEventPublish(events.EventTypeInviteAccepted)

	service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)
	agreement, err := service.Accept(context.Background(), "inv-1")

	require.NoError(t, err)
	assert.Equal(t, entities.StakeStatusSettled, agreement.Status)
	assert.True(t, agreement.BuyIn.Equal(dec("100")))
	mocks.AgreementRepo.AssertNumberOfCalls(t, "Upsert", 1)
	mocks.AgreementRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}

func TestStakingInviteService_DeclineThenAccept(t *testing.T) {
	t.Parallel()

	invite := NewInvite("inv-1", entities.RegisteredStaker(TestStakerID), "0.3", "1")

	mocks := NewTestMocks()
	mocks.InviteRepo.On("GetByIDForUpdate", mock.Anything, "inv-1").Return(invite, nil)
	mocks.InviteRepo.On("Update", mock.Anything, invite).Return(nil).Once()
	mocks.ExpectEventPublish(events.EventTypeInviteDeclined)

	service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)

	require.NoError(t, service.Decline(context.Background(), "inv-1"))
	assert.Equal(t, entities.InviteStatusDeclined, invite.Status)

	_, err := service.Accept(context.Background(), "inv-1")
	assert.ErrorIs(t, err, entities.ErrAlreadyAnswered)

	err = service.Decline(context.Background(), "inv-1")
	assert.ErrorIs(t, err, entities.ErrAlreadyAnswered)

	mocks.AgreementRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}

func TestStakingInviteService_AcceptUnknownInvite(t *testing.T) {
	t.Parallel()

	mocks := NewTestMocks()
	mocks.InviteRepo.On("GetByIDForUpdate", mock.Anything, "missing").Return(nil, nil)

	service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)
	_, err := service.Accept(context.Background(), "missing")

	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestStakingInviteService_AttachSessionResults(t *testing.T) {
	t.Parallel()

	t.Run("updates every pending invite and leaves status", func(t *testing.T) {
		t.Parallel()

		first := NewInvite("inv-1", entities.RegisteredStaker("a"), "0.1", "1")
		second := NewInvite("inv-2", entities.ManualStaker("Dan", nil), "0.2", "1")

		mocks := NewTestMocks()
		mocks.InviteRepo.On("ListPendingForUpdate", mock.Anything, TestEventID, TestPlayerID).
			Return([]*entities.StakingInvite{first, second}, nil)
		mocks.InviteRepo.On("Update", mock.Anything, mock.Anything).Return(nil).Times(2)
		mocks.ExpectEventPublish(events.EventTypeInviteResultsAttached)

		service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)
		count, err := service.AttachSessionResults(context.Background(), TestEventID, TestPlayerID, dec("300"), dec("450"))

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		for _, invite := range []*entities.StakingInvite{first, second} {
			assert.Equal(t, entities.InviteStatusPending, invite.Status)
			assert.True(t, invite.HasSessionResults())
			assert.True(t, invite.SessionCashout.Equal(dec("450")))
		}
		mocks.AssertAllExpectations(t)
	})

	t.Run("no pending invites", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.InviteRepo.On("ListPendingForUpdate", mock.Anything, TestEventID, TestPlayerID).
			Return([]*entities.StakingInvite{}, nil)

		service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)
		count, err := service.AttachSessionResults(context.Background(), TestEventID, TestPlayerID, dec("300"), dec("450"))

		require.NoError(t, err)
		assert.Zero(t, count)
		mocks.EventPublisher.AssertNotCalled(t, "Publish", mock.Anything)
	})

	t.Run("negative cashout is rejected", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		service := NewStakingInviteService(mocks.InviteRepo, mocks.AgreementRepo, mocks.EventPublisher)
		_, err := service.AttachSessionResults(context.Background(), TestEventID, TestPlayerID, dec("300"), dec("-1"))

		assert.ErrorIs(t, err, entities.ErrValidation)
	})
}
