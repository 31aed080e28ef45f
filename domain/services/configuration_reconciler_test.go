package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"
	"stakehouse/infrastructure/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testDraftSession() entities.DraftSession {
	return entities.DraftSession{
		SessionID:      TestSessionID,
		StakedPlayerID: TestPlayerID,
		EventID:        TestEventID,
		Metadata:       entities.SessionMetadata{SessionGameName: "NLH", SessionStakes: "2/5"},
	}
}

func localDraft(staker entities.StakerIdentity, percentage, markup string, originalID *string, unsynced bool) *entities.StakeConfiguration {
	return &entities.StakeConfiguration{
		Staker:          staker,
		Percentage:      dec(percentage),
		Markup:          dec(markup),
		OriginalStakeID: originalID,
		Unsynced:        unsynced,
	}
}

func TestConfigurationReconciler_Reconcile(t *testing.T) {
	t.Parallel()

	registered := entities.RegisteredStaker(TestStakerID)
	manual := entities.ManualStaker("Dan Smith", nil)

	t.Run("provisional and permanent duplicates collapse into one draft", func(t *testing.T) {
		t.Parallel()

		provisional := NewAgreement("stake-temp", entities.StakeStatusActive, "0.2", "1.1")
		provisional.SessionID = entities.EventScopedSessionID(TestEventID, TestPlayerID)
		provisional.LastUpdatedAt = provisional.LastUpdatedAt.Add(time.Hour)
		permanent := NewAgreement("stake-perm", entities.StakeStatusActive, "0.3", "1")

		merged := NewAgreement("stake-perm", entities.StakeStatusActive, "0.2", "1.1")
		merged.LastUpdatedAt = provisional.LastUpdatedAt

		mocks := NewTestMocks()
		mocks.AgreementService.On("MigrateSession", mock.Anything, "stake-temp", TestSessionID).
			Return(&interfaces.SessionMigration{Agreement: merged, Superseded: true}, nil)
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, []string{TestStakerID}).
			Return(map[string]string{TestStakerID: "Nine"}, nil).Once()

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(), nil,
			[]*entities.StakeAgreement{provisional, permanent})

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "stake-perm", *drafts[0].OriginalStakeID)
		assert.True(t, drafts[0].Percentage.Equal(dec("0.2")))
		assert.Equal(t, "Nine", drafts[0].DisplayName)
		assert.False(t, drafts[0].Unsynced)
		mocks.AssertAllExpectations(t)
	})

	t.Run("unsent edit on another record is kept as a conflict", func(t *testing.T) {
		t.Parallel()

		remote := NewAgreement("stake-1", entities.StakeStatusActive, "0.3", "1")
		local := localDraft(registered, "0.5", "1.2", nil, true)

		mocks := NewTestMocks()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, []string{TestStakerID}).
			Return(map[string]string{}, nil)

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{remote})

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.True(t, drafts[0].Percentage.Equal(dec("0.3")), "persisted terms win")
		require.True(t, drafts[0].HasConflict())
		assert.True(t, drafts[0].Conflict.LocalPercentage.Equal(dec("0.5")))
		assert.True(t, drafts[0].Conflict.LocalMarkup.Equal(dec("1.2")))
		mocks.AgreementService.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("unsent edit of the synced record is pushed", func(t *testing.T) {
		t.Parallel()

		remote := NewAgreement("stake-1", entities.StakeStatusActive, "0.3", "1")
		updated := NewAgreement("stake-1", entities.StakeStatusActive, "0.4", "1")
		id := "stake-1"
		local := localDraft(registered, "0.4", "1", &id, true)

		mocks := NewTestMocks()
		mocks.AgreementService.On("Upsert", mock.Anything, mock.MatchedBy(func(req interfaces.UpsertStakeRequest) bool {
			return req.SessionID == TestSessionID && req.Percentage.Equal(dec("0.4"))
		})).Return(updated, nil).Once()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, mock.Anything).Return(map[string]string{}, nil)

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{remote})

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.True(t, drafts[0].Percentage.Equal(dec("0.4")))
		assert.False(t, drafts[0].HasConflict())
		assert.False(t, drafts[0].Unsynced)
		mocks.AssertAllExpectations(t)
	})

	t.Run("unsent edit of a settled record is kept as a conflict", func(t *testing.T) {
		t.Parallel()

		remote := NewAgreement("stake-1", entities.StakeStatusSettled, "0.3", "1")
		id := "stake-1"
		local := localDraft(registered, "0.4", "1", &id, true)

		mocks := NewTestMocks()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, mock.Anything).Return(map[string]string{}, nil)

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{remote})

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		require.True(t, drafts[0].HasConflict())
		assert.True(t, drafts[0].Conflict.LocalPercentage.Equal(dec("0.4")))
		assert.True(t, drafts[0].Unsynced)
		assert.Equal(t, "stake-1", *drafts[0].OriginalStakeID)
		mocks.AgreementService.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)

		again, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			drafts, []*entities.StakeAgreement{remote})
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.True(t, again[0].HasConflict(), "the conflict survives later passes")
	})

	t.Run("new draft rejected by a settled record becomes a conflict", func(t *testing.T) {
		t.Parallel()

		local := localDraft(registered, "0.4", "1", nil, true)

		mocks := NewTestMocks()
		mocks.AgreementService.On("Upsert", mock.Anything, mock.Anything).
			Return(nil, &entities.StateTransitionError{From: entities.StakeStatusSettled, To: entities.StakeStatusSettled})
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, mock.Anything).Return(map[string]string{}, nil)

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, nil)

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.True(t, drafts[0].HasConflict())
		assert.True(t, drafts[0].Unsynced)
		assert.True(t, drafts[0].Percentage.Equal(dec("0.4")))
	})

	t.Run("settling and settled records do not come back as drafts", func(t *testing.T) {
		t.Parallel()

		settled := NewAgreement("stake-1", entities.StakeStatusSettled, "0.3", "1")
		awaiting := NewAgreement("stake-2", entities.StakeStatusAwaitingSettlement, "0.2", "1")
		awaiting.Staker = manual
		id := "stake-1"
		local := localDraft(registered, "0.3", "1", &id, false)

		mocks := NewTestMocks()
		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{settled, awaiting})

		require.NoError(t, err)
		assert.Empty(t, drafts)
		mocks.AgreementService.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("offline draft is stored and output keeps local order", func(t *testing.T) {
		t.Parallel()

		stored := NewAgreement("stake-new", entities.StakeStatusActive, "0.1", "1")
		stored.Staker = manual
		remoteOnly := NewAgreement("stake-remote", entities.StakeStatusActive, "0.2", "1")
		local := localDraft(manual, "0.1", "1", nil, true)

		mocks := NewTestMocks()
		mocks.AgreementService.On("Upsert", mock.Anything, mock.MatchedBy(func(req interfaces.UpsertStakeRequest) bool {
			return req.Staker.Key() == "name:dan-smith" &&
				req.StakedPlayerID == TestPlayerID &&
				req.Metadata.SessionStakes == "2/5"
		})).Return(stored, nil).Once()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, []string{TestStakerID}).
			Return(map[string]string{TestStakerID: "Nine"}, nil).Once()

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{remoteOnly})

		require.NoError(t, err)
		require.Len(t, drafts, 2)
		assert.Equal(t, "stake-new", *drafts[0].OriginalStakeID)
		assert.Equal(t, "Dan Smith", drafts[0].DisplayName)
		assert.Equal(t, "stake-remote", *drafts[1].OriginalStakeID)
		assert.Equal(t, "Nine", drafts[1].DisplayName)
		mocks.AssertAllExpectations(t)
	})

	t.Run("invalid draft is kept without a write", func(t *testing.T) {
		t.Parallel()

		local := localDraft(manual, "0", "1", nil, false)

		mocks := NewTestMocks()
		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, nil)

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.True(t, drafts[0].Unsynced)
		assert.Nil(t, drafts[0].OriginalStakeID)
		mocks.AgreementService.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		mocks.Directory.AssertNotCalled(t, "ResolveDisplayNames", mock.Anything, mock.Anything)
	})

	t.Run("draft of a declined record is dropped", func(t *testing.T) {
		t.Parallel()

		declined := NewAgreement("stake-1", entities.StakeStatusDeclined, "0.3", "1")
		id := "stake-1"
		local := localDraft(registered, "0.3", "1", &id, false)

		mocks := NewTestMocks()
		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{declined})

		require.NoError(t, err)
		assert.Empty(t, drafts)
	})

	t.Run("unsent edit of a declined record is stored as a new agreement", func(t *testing.T) {
		t.Parallel()

		declined := NewAgreement("stake-1", entities.StakeStatusDeclined, "0.3", "1")
		recreated := NewAgreement("stake-2", entities.StakeStatusActive, "0.45", "1.2")
		id := "stake-1"
		local := localDraft(registered, "0.45", "1.2", &id, true)

		mocks := NewTestMocks()
		mocks.AgreementService.On("Upsert", mock.Anything, mock.MatchedBy(func(req interfaces.UpsertStakeRequest) bool {
			return req.SessionID == TestSessionID &&
				req.Percentage.Equal(dec("0.45")) &&
				req.Markup.Equal(dec("1.2"))
		})).Return(recreated, nil).Once()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, mock.Anything).Return(map[string]string{}, nil)

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(),
			[]*entities.StakeConfiguration{local}, []*entities.StakeAgreement{declined})

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "stake-2", *drafts[0].OriginalStakeID)
		assert.False(t, drafts[0].Unsynced)
		assert.False(t, drafts[0].HasConflict())
		mocks.AssertAllExpectations(t)
	})

	t.Run("store failure returns local drafts unchanged", func(t *testing.T) {
		t.Parallel()

		local := localDraft(manual, "0.1", "1", nil, true)
		locals := []*entities.StakeConfiguration{local}

		mocks := NewTestMocks()
		mocks.AgreementService.On("Upsert", mock.Anything, mock.Anything).
			Return(nil, entities.ErrTransientIO)

		store := kv.NewMemoryStore()
		reconciler := NewConfigurationReconciler(mocks.AgreementService, store, mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(), locals, nil)

		require.Error(t, err)
		assert.True(t, errors.Is(err, entities.ErrTransientIO))
		assert.Equal(t, locals, drafts)
		assert.Nil(t, drafts[0].OriginalStakeID)
		assert.True(t, drafts[0].Unsynced)

		cached, err := reconciler.LoadDrafts(context.Background(), TestSessionID)
		require.NoError(t, err)
		assert.Nil(t, cached)
	})

	t.Run("directory failure does not fail the pass", func(t *testing.T) {
		t.Parallel()

		remote := NewAgreement("stake-1", entities.StakeStatusActive, "0.3", "1")

		mocks := NewTestMocks()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, mock.Anything).
			Return(nil, errors.New("directory offline")).Once()

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		drafts, err := reconciler.Reconcile(context.Background(), testDraftSession(), nil,
			[]*entities.StakeAgreement{remote})

		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Empty(t, drafts[0].DisplayName)
		mocks.AssertAllExpectations(t)
	})

	t.Run("successful pass replaces the cached drafts", func(t *testing.T) {
		t.Parallel()

		remote := NewAgreement("stake-1", entities.StakeStatusActive, "0.3", "1")

		mocks := NewTestMocks()
		mocks.Directory.On("ResolveDisplayNames", mock.Anything, mock.Anything).Return(map[string]string{}, nil)

		reconciler := NewConfigurationReconciler(mocks.AgreementService, kv.NewMemoryStore(), mocks.Directory)
		_, err := reconciler.Reconcile(context.Background(), testDraftSession(), nil,
			[]*entities.StakeAgreement{remote})
		require.NoError(t, err)

		cached, err := reconciler.LoadDrafts(context.Background(), TestSessionID)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.False(t, cached.Pending)
		require.Len(t, cached.Drafts, 1)
		assert.Equal(t, "stake-1", *cached.Drafts[0].OriginalStakeID)
		assert.Equal(t, TestEventID, cached.Session.EventID)
	})
}

func TestConfigurationReconciler_DraftCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reconciler := NewConfigurationReconciler(nil, kv.NewMemoryStore(), nil)

	pending := &entities.DraftSet{
		Session: entities.DraftSession{SessionID: "player-1_1714000000", StakedPlayerID: TestPlayerID},
		Drafts: []*entities.StakeConfiguration{
			localDraft(entities.ManualStaker("Dan", nil), "0.25", "1.1", nil, true),
		},
		Pending: true,
	}
	clean := &entities.DraftSet{
		Session: entities.DraftSession{SessionID: "player-2_1714000500", StakedPlayerID: "player-2"},
	}

	require.NoError(t, reconciler.SaveDrafts(ctx, pending))
	require.NoError(t, reconciler.SaveDrafts(ctx, clean))

	loaded, err := reconciler.LoadDrafts(ctx, "player-1_1714000000")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Drafts, 1)
	assert.True(t, loaded.Drafts[0].Markup.Equal(dec("1.1")))
	assert.Equal(t, "name:dan", loaded.Drafts[0].Key())
	assert.False(t, loaded.SavedAt.IsZero())

	sessions, err := reconciler.PendingSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entities.PersistentSessionIdentity{"player-1_1714000000"}, sessions)

	require.NoError(t, reconciler.ClearDrafts(ctx, "player-1_1714000000"))
	loaded, err = reconciler.LoadDrafts(ctx, "player-1_1714000000")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	err = reconciler.SaveDrafts(ctx, &entities.DraftSet{})
	assert.ErrorIs(t, err, entities.ErrValidation)

	_, err = reconciler.Reconcile(ctx, testDraftSession(), nil, nil)
	assert.Error(t, err)
}
