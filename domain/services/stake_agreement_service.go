package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stakehouse/domain/entities"
	"stakehouse/domain/events"
	"stakehouse/domain/interfaces"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// stakeAgreementService implements the stake agreement store
type stakeAgreementService struct {
	agreementRepo  interfaces.StakeAgreementRepository
	eventPublisher interfaces.EventPublisher
}

// NewStakeAgreementService creates a new stake agreement service
func NewStakeAgreementService(
	agreementRepo interfaces.StakeAgreementRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.StakeAgreementService {
	return &stakeAgreementService{
		agreementRepo:  agreementRepo,
		eventPublisher: eventPublisher,
	}
}

// now is truncated to the database's timestamp precision so values read
// back compare equal to the ones written
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return ulid.Make().String()
}

// Upsert creates an active agreement or updates terms in place
func (s *stakeAgreementService) Upsert(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	return s.write(ctx, req, entities.StakeStatusActive)
}

// Propose creates an agreement that waits for the staker's acceptance
func (s *stakeAgreementService) Propose(ctx context.Context, req interfaces.UpsertStakeRequest) (*entities.StakeAgreement, error) {
	return s.write(ctx, req, entities.StakeStatusPendingAcceptance)
}

func (s *stakeAgreementService) write(ctx context.Context, req interfaces.UpsertStakeRequest, initial entities.StakeStatus) (*entities.StakeAgreement, error) {
	if err := validateUpsertRequest(req); err != nil {
		return nil, err
	}

	stakerKey := req.Staker.Key()
	current, err := s.agreementRepo.GetCurrentForUpdate(ctx, req.SessionID, stakerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get current agreement: %w", err)
	}

	ts := now()
	created := current == nil
	var agreement *entities.StakeAgreement

	if current != nil {
		if current.Terms().Equal(req.Terms()) {
			return current, nil
		}
		if err := current.ApplyTerms(req.Terms(), ts); err != nil {
			return nil, err
		}
		if current.Staker.IsManual() && req.Staker.DisplayName != "" {
			current.Staker.DisplayName = req.Staker.DisplayName
		}
		agreement = current
	} else {
		agreement = &entities.StakeAgreement{
			ID:              newID(),
			SessionID:       req.SessionID,
			Staker:          req.Staker,
			StakedPlayerID:  req.StakedPlayerID,
			Percentage:      req.Percentage,
			Markup:          req.Markup,
			BuyIn:           decimal.Zero,
			Cashout:         decimal.Zero,
			Status:          initial,
			SessionMetadata: req.Metadata,
			ProposedAt:      ts,
			LastUpdatedAt:   ts,
		}
	}

	stored, err := s.agreementRepo.Upsert(ctx, agreement)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert agreement: %w", err)
	}

	log.WithFields(log.Fields{
		"stakeID":   stored.ID,
		"sessionID": stored.SessionID,
		"staker":    stakerKey,
		"created":   created,
	}).Debug("Upserted stake agreement")

	s.publish(events.StakeUpsertedEvent{
		StakeID:        stored.ID,
		SessionID:      stored.SessionID,
		StakedPlayerID: stored.StakedPlayerID,
		StakerKey:      stakerKey,
		Percentage:     stored.Percentage,
		Markup:         stored.Markup,
		Status:         string(stored.Status),
		Created:        created,
	})

	return stored, nil
}

// Activate moves a proposed agreement to active
func (s *stakeAgreementService) Activate(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	agreement, err := s.getForUpdate(ctx, stakeID)
	if err != nil {
		return nil, err
	}
	if agreement.Status == entities.StakeStatusActive {
		return agreement, nil
	}

	if err := agreement.TransitionTo(entities.StakeStatusActive, now()); err != nil {
		return nil, err
	}
	if err := s.agreementRepo.Update(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to activate agreement: %w", err)
	}

	s.publish(events.StakeUpsertedEvent{
		StakeID:        agreement.ID,
		SessionID:      agreement.SessionID,
		StakedPlayerID: agreement.StakedPlayerID,
		StakerKey:      agreement.StakerKey(),
		Percentage:     agreement.Percentage,
		Markup:         agreement.Markup,
		Status:         string(agreement.Status),
	})

	return agreement, nil
}

// AttachSettlement records the session results and computes the settlement
func (s *stakeAgreementService) AttachSettlement(ctx context.Context, stakeID string, buyIn, cashout decimal.Decimal, requireConfirmation bool) (*entities.StakeAgreement, error) {
	agreement, err := s.getForUpdate(ctx, stakeID)
	if err != nil {
		return nil, err
	}

	target := entities.StakeStatusSettled
	if requireConfirmation {
		target = entities.StakeStatusAwaitingSettlement
	}

	if agreement.IsSettled() || agreement.Status == entities.StakeStatusAwaitingSettlement {
		if agreement.HasSettlement() && agreement.HasResults(buyIn, cashout) {
			return agreement, nil
		}
		return nil, &entities.StateTransitionError{From: agreement.Status, To: target}
	}

	amount, err := ComputeSettlement(buyIn, cashout, agreement.Percentage, agreement.Markup)
	if err != nil {
		return nil, err
	}
	if !agreement.Status.CanTransitionTo(target) {
		return nil, &entities.StateTransitionError{From: agreement.Status, To: target}
	}

	agreement.BuyIn = buyIn
	agreement.Cashout = cashout
	agreement.SettlementAmount = &amount
	if err := agreement.TransitionTo(target, now()); err != nil {
		return nil, err
	}

	if err := s.agreementRepo.Update(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to attach settlement: %w", err)
	}

	log.WithFields(log.Fields{
		"stakeID":    agreement.ID,
		"sessionID":  agreement.SessionID,
		"settlement": amount.String(),
		"status":     agreement.Status,
	}).Info("Attached settlement to stake agreement")

	s.publishSettled(agreement)
	return agreement, nil
}

// ConfirmSettlement finalizes an agreement awaiting settlement
func (s *stakeAgreementService) ConfirmSettlement(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	agreement, err := s.getForUpdate(ctx, stakeID)
	if err != nil {
		return nil, err
	}
	if agreement.IsSettled() {
		return agreement, nil
	}
	if agreement.Status != entities.StakeStatusAwaitingSettlement {
		return nil, &entities.StateTransitionError{From: agreement.Status, To: entities.StakeStatusSettled}
	}

	if err := agreement.TransitionTo(entities.StakeStatusSettled, now()); err != nil {
		return nil, err
	}
	if err := s.agreementRepo.Update(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to confirm settlement: %w", err)
	}

	s.publishSettled(agreement)
	return agreement, nil
}

// Decline moves the agreement to declined. Declining twice is a no-op.
func (s *stakeAgreementService) Decline(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	agreement, err := s.getForUpdate(ctx, stakeID)
	if err != nil {
		return nil, err
	}
	if agreement.Status == entities.StakeStatusDeclined {
		return agreement, nil
	}

	previous := agreement.Status
	if err := agreement.TransitionTo(entities.StakeStatusDeclined, now()); err != nil {
		return nil, err
	}
	if err := s.agreementRepo.Update(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to decline agreement: %w", err)
	}

	s.publish(events.StakeDeclinedEvent{
		StakeID:        agreement.ID,
		SessionID:      agreement.SessionID,
		StakedPlayerID: agreement.StakedPlayerID,
		StakerKey:      agreement.StakerKey(),
		PreviousStatus: string(previous),
	})

	return agreement, nil
}

// MigrateSession moves an agreement to the permanent session id. When the
// permanent id already holds a record for the same staker, the most recently
// updated terms are kept on that record and the provisional one is declined.
func (s *stakeAgreementService) MigrateSession(ctx context.Context, stakeID string, sessionID string) (*interfaces.SessionMigration, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, entities.NewValidationError("session_id", "must not be empty")
	}

	agreement, err := s.getForUpdate(ctx, stakeID)
	if err != nil {
		return nil, err
	}
	if agreement.SessionID == sessionID {
		return &interfaces.SessionMigration{Agreement: agreement}, nil
	}
	if !agreement.Status.AcceptsTermChanges() {
		return nil, &entities.StateTransitionError{From: agreement.Status, To: agreement.Status}
	}

	target, err := s.agreementRepo.GetCurrentForUpdate(ctx, sessionID, agreement.StakerKey())
	if err != nil {
		return nil, fmt.Errorf("failed to get permanent agreement: %w", err)
	}

	fromSessionID := agreement.SessionID
	ts := now()

	if target == nil {
		agreement.SessionID = sessionID
		agreement.LastUpdatedAt = ts
		if err := s.agreementRepo.Update(ctx, agreement); err != nil {
			return nil, fmt.Errorf("failed to migrate agreement: %w", err)
		}

		s.publish(events.StakeMigratedEvent{
			StakeID:       agreement.ID,
			FromSessionID: fromSessionID,
			ToSessionID:   sessionID,
		})
		return &interfaces.SessionMigration{Agreement: agreement}, nil
	}

	if agreement.LastUpdatedAt.After(target.LastUpdatedAt) && !target.Terms().Equal(agreement.Terms()) {
		if err := target.ApplyTerms(agreement.Terms(), ts); err == nil {
			if err := s.agreementRepo.Update(ctx, target); err != nil {
				return nil, fmt.Errorf("failed to update permanent agreement: %w", err)
			}
		}
	}

	if err := agreement.TransitionTo(entities.StakeStatusDeclined, ts); err != nil {
		return nil, err
	}
	if err := s.agreementRepo.Update(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to decline superseded agreement: %w", err)
	}

	log.WithFields(log.Fields{
		"stakeID":       agreement.ID,
		"supersededBy":  target.ID,
		"fromSessionID": fromSessionID,
		"toSessionID":   sessionID,
	}).Info("Declined provisional agreement superseded by permanent record")

	s.publish(events.StakeMigratedEvent{
		StakeID:       agreement.ID,
		FromSessionID: fromSessionID,
		ToSessionID:   sessionID,
		Superseded:    true,
	})

	return &interfaces.SessionMigration{Agreement: target, Superseded: true}, nil
}

// Get retrieves an agreement by ID
func (s *stakeAgreementService) Get(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	agreement, err := s.agreementRepo.GetByID(ctx, stakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	if agreement == nil {
		return nil, fmt.Errorf("stake agreement %s: %w", stakeID, entities.ErrNotFound)
	}
	return agreement, nil
}

// ListBySession returns agreements filed under the given session ids
func (s *stakeAgreementService) ListBySession(ctx context.Context, sessionIDs ...string) ([]*entities.StakeAgreement, error) {
	agreements, err := s.agreementRepo.ListBySession(ctx, sessionIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements by session: %w", err)
	}
	return agreements, nil
}

// ListByPlayer returns agreements for a staked player
func (s *stakeAgreementService) ListByPlayer(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error) {
	agreements, err := s.agreementRepo.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements by player: %w", err)
	}
	return agreements, nil
}

// ListByStaker returns agreements for a staker
func (s *stakeAgreementService) ListByStaker(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakeAgreement, error) {
	if err := staker.Validate(); err != nil {
		return nil, err
	}
	agreements, err := s.agreementRepo.ListByStaker(ctx, staker.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements by staker: %w", err)
	}
	return agreements, nil
}

func (s *stakeAgreementService) getForUpdate(ctx context.Context, stakeID string) (*entities.StakeAgreement, error) {
	agreement, err := s.agreementRepo.GetByIDForUpdate(ctx, stakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	if agreement == nil {
		return nil, fmt.Errorf("stake agreement %s: %w", stakeID, entities.ErrNotFound)
	}
	return agreement, nil
}

func (s *stakeAgreementService) publishSettled(agreement *entities.StakeAgreement) {
	s.publish(events.StakeSettledEvent{
		StakeID:          agreement.ID,
		SessionID:        agreement.SessionID,
		StakedPlayerID:   agreement.StakedPlayerID,
		StakerKey:        agreement.StakerKey(),
		BuyIn:            agreement.BuyIn,
		Cashout:          agreement.Cashout,
		SettlementAmount: *agreement.SettlementAmount,
		Status:           string(agreement.Status),
	})
}

func (s *stakeAgreementService) publish(event events.Event) {
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to publish stake event")
	}
}

func validateUpsertRequest(req interfaces.UpsertStakeRequest) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return entities.NewValidationError("session_id", "must not be empty")
	}
	if strings.TrimSpace(req.StakedPlayerID) == "" {
		return entities.NewValidationError("staked_player_id", "must not be empty")
	}
	if req.Staker.IsRegistered() && req.Staker.UserID == req.StakedPlayerID {
		return entities.NewValidationError("staker", "a player cannot stake their own session")
	}
	if err := req.Staker.Validate(); err != nil {
		return err
	}
	return req.Terms().Validate()
}
