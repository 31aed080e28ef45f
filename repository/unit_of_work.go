package repository

import (
	"context"
	"errors"
	"fmt"

	"stakehouse/application"
	"stakehouse/database"
	"stakehouse/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db            *database.DB
	tx            pgx.Tx
	ctx           context.Context
	eventBus      interfaces.EventPublisher
	agreementRepo interfaces.StakeAgreementRepository
	inviteRepo    interfaces.StakingInviteRepository
}

// UnitOfWorkFactory creates transaction-scoped units of work
type UnitOfWorkFactory struct {
	db *database.DB
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		db: db,
	}
}

// CreateWithPublisher creates a new UnitOfWork whose EventBus is the given publisher
func (f *UnitOfWorkFactory) CreateWithPublisher(eventBus interfaces.EventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:       f.db,
		eventBus: eventBus,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	u.tx = tx
	u.ctx = ctx

	u.agreementRepo = NewStakeAgreementRepositoryScoped(tx)
	u.inviteRepo = NewStakingInviteRepositoryScoped(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// StakeAgreementRepository returns the stake agreement repository for this unit of work
func (u *unitOfWork) StakeAgreementRepository() interfaces.StakeAgreementRepository {
	if u.agreementRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.agreementRepo
}

// StakingInviteRepository returns the staking invite repository for this unit of work
func (u *unitOfWork) StakingInviteRepository() interfaces.StakingInviteRepository {
	if u.inviteRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.inviteRepo
}

// EventBus returns the event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.eventBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.eventBus
}
