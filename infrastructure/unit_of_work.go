package infrastructure

import (
	"context"

	"stakehouse/application"
	"stakehouse/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// unitOfWork wraps the repository UnitOfWork and adds event publishing on commit
type unitOfWork struct {
	inner                  application.UnitOfWork
	transactionalPublisher interfaces.TransactionalEventPublisher
	ctx                    context.Context
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	u.ctx = ctx
	return u.inner.Begin(ctx)
}

// Commit commits the transaction and flushes events on success
func (u *unitOfWork) Commit() error {
	if err := u.inner.Commit(); err != nil {
		u.transactionalPublisher.Discard()
		return err
	}

	// the transaction is already durable; events are best-effort from here
	if err := u.transactionalPublisher.Flush(u.ctx); err != nil {
		log.WithError(err).Warn("Failed to flush events after commit")
	}

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	u.transactionalPublisher.Discard()
	return u.inner.Rollback()
}

// Repository getters - delegate to inner UnitOfWork
func (u *unitOfWork) StakeAgreementRepository() interfaces.StakeAgreementRepository {
	return u.inner.StakeAgreementRepository()
}

func (u *unitOfWork) StakingInviteRepository() interfaces.StakingInviteRepository {
	return u.inner.StakingInviteRepository()
}

// EventBus returns the transactional event publisher
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	return u.transactionalPublisher
}
