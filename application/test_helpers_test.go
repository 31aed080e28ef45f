package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"stakehouse/application"
	"stakehouse/domain/entities"
	"stakehouse/domain/events"
	"stakehouse/domain/interfaces"
	"stakehouse/domain/services"
	"stakehouse/infrastructure"
	"stakehouse/infrastructure/kv"
	"stakehouse/repository/testutil"

	"github.com/shopspring/decimal"
)

// recordingPublisher keeps every event flushed after commit
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(eventType events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// failingUnitOfWorkFactory produces units of work that cannot begin
type failingUnitOfWorkFactory struct {
	err error
}

func (f *failingUnitOfWorkFactory) Create() application.UnitOfWork {
	return &failingUnitOfWork{err: f.err}
}

type failingUnitOfWork struct {
	err error
}

func (u *failingUnitOfWork) Begin(ctx context.Context) error { return u.err }
func (u *failingUnitOfWork) Commit() error                   { return u.err }
func (u *failingUnitOfWork) Rollback() error                 { return nil }
func (u *failingUnitOfWork) StakeAgreementRepository() interfaces.StakeAgreementRepository {
	panic("unit of work not started - call Begin() first")
}
func (u *failingUnitOfWork) StakingInviteRepository() interfaces.StakingInviteRepository {
	panic("unit of work not started - call Begin() first")
}
func (u *failingUnitOfWork) EventBus() interfaces.EventPublisher {
	panic("unit of work not started - call Begin() first")
}

type engineFixture struct {
	engine     *application.StakeEngine
	store      *kv.MemoryStore
	directory  *kv.StakerDirectory
	identities interfaces.SessionIdentityResolver
	publisher  *recordingPublisher
	uowFactory *infrastructure.UnitOfWorkFactory
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	publisher := &recordingPublisher{}
	store := kv.NewMemoryStore()
	directory := kv.NewStakerDirectory(store)
	identities := services.NewSessionIdentityResolver(store, fixedClock(time.Unix(1714000000, 0)))
	uowFactory := infrastructure.NewUnitOfWorkFactory(testDB.DB, publisher)

	return &engineFixture{
		engine:     application.NewStakeEngine(uowFactory, identities, store, directory),
		store:      store,
		directory:  directory,
		identities: identities,
		publisher:  publisher,
		uowFactory: uowFactory,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func registeredDraft(userID, pct, markup string) *entities.StakeConfiguration {
	return &entities.StakeConfiguration{
		Staker:     entities.RegisteredStaker(userID),
		Percentage: dec(pct),
		Markup:     dec(markup),
		Unsynced:   true,
	}
}

func manualDraft(name, pct, markup string) *entities.StakeConfiguration {
	return &entities.StakeConfiguration{
		Staker:     entities.ManualStaker(name, nil),
		Percentage: dec(pct),
		Markup:     dec(markup),
		Unsynced:   true,
	}
}

func interfacesUpsert(sessionID, playerID, stakerID, pct, markup string) interfaces.UpsertStakeRequest {
	return interfaces.UpsertStakeRequest{
		SessionID:      sessionID,
		StakedPlayerID: playerID,
		Staker:         entities.RegisteredStaker(stakerID),
		Percentage:     dec(pct),
		Markup:         dec(markup),
	}
}
