package services

import (
	"context"
	"fmt"
	"strings"

	"stakehouse/domain/entities"
	"stakehouse/domain/events"
	"stakehouse/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// stakingInviteService coordinates invites and the agreements they produce
type stakingInviteService struct {
	inviteRepo       interfaces.StakingInviteRepository
	agreementRepo    interfaces.StakeAgreementRepository
	agreementService interfaces.StakeAgreementService
	eventPublisher   interfaces.EventPublisher
}

// NewStakingInviteService creates a new staking invite service. The
// repositories must share the caller's transaction so that an acceptance
// updates the invite and writes the agreement atomically.
func NewStakingInviteService(
	inviteRepo interfaces.StakingInviteRepository,
	agreementRepo interfaces.StakeAgreementRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.StakingInviteService {
	return &stakingInviteService{
		inviteRepo:       inviteRepo,
		agreementRepo:    agreementRepo,
		agreementService: NewStakeAgreementService(agreementRepo, eventPublisher),
		eventPublisher:   eventPublisher,
	}
}

// CreateInvites creates one pending invite per term
func (s *stakingInviteService) CreateInvites(ctx context.Context, eventID string, metadata entities.EventMetadata, stakedPlayerID string, terms []entities.StakerTerm) ([]*entities.StakingInvite, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, entities.NewValidationError("event_id", "must not be empty")
	}
	if strings.TrimSpace(stakedPlayerID) == "" {
		return nil, entities.NewValidationError("staked_player_id", "must not be empty")
	}
	if len(terms) == 0 {
		return nil, entities.NewValidationError("terms", "at least one staker is required")
	}

	// Validate everything before the first write
	seen := make(map[string]struct{}, len(terms))
	for i, term := range terms {
		if err := term.Validate(); err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		if term.Staker.IsRegistered() && term.Staker.UserID == stakedPlayerID {
			return nil, entities.NewValidationError("staker", "a player cannot stake their own session")
		}
		key := term.Staker.Key()
		if _, dup := seen[key]; dup {
			return nil, entities.NewValidationError("staker", fmt.Sprintf("duplicate staker %s", key))
		}
		seen[key] = struct{}{}
	}

	ts := now()
	invites := make([]*entities.StakingInvite, 0, len(terms))
	for _, term := range terms {
		invite := &entities.StakingInvite{
			ID:             newID(),
			EventID:        eventID,
			EventMetadata:  metadata,
			StakedPlayerID: stakedPlayerID,
			Staker:         term.Staker,
			Percentage:     term.Percentage,
			Markup:         term.Markup,
			Status:         entities.InviteStatusPending,
			CreatedAt:      ts,
			LastUpdatedAt:  ts,
		}
		if err := s.inviteRepo.Create(ctx, invite); err != nil {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}
		invites = append(invites, invite)

		s.publish(events.InviteCreatedEvent{
			InviteID:       invite.ID,
			EventID:        eventID,
			StakedPlayerID: stakedPlayerID,
			StakerKey:      term.Staker.Key(),
			Percentage:     term.Percentage,
			Markup:         term.Markup,
		})
	}

	log.WithFields(log.Fields{
		"eventID":        eventID,
		"stakedPlayerID": stakedPlayerID,
		"inviteCount":    len(invites),
	}).Info("Created staking invites")

	return invites, nil
}

// Accept answers a pending invite. Without session results the invite
// becomes an active agreement; with both results it is written once, directly
// as settled.
func (s *stakingInviteService) Accept(ctx context.Context, inviteID string) (*entities.StakeAgreement, error) {
	invite, err := s.getForUpdate(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if !invite.IsPending() {
		return nil, fmt.Errorf("invite %s is %s: %w", invite.ID, invite.Status, entities.ErrAlreadyAnswered)
	}

	var agreement *entities.StakeAgreement
	if invite.HasSessionResults() {
		agreement, err = s.writeSettledAgreement(ctx, invite)
	} else {
		agreement, err = s.agreementService.Upsert(ctx, interfaces.UpsertStakeRequest{
			SessionID:      invite.ProvisionalSessionID(),
			StakedPlayerID: invite.StakedPlayerID,
			Staker:         invite.Staker,
			Percentage:     invite.Percentage,
			Markup:         invite.Markup,
			Metadata:       invite.EventMetadata.SessionMetadata(),
		})
	}
	if err != nil {
		return nil, err
	}

	if err := invite.Respond(true, now()); err != nil {
		return nil, err
	}
	invite.AgreementID = &agreement.ID
	if err := s.inviteRepo.Update(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to update invite: %w", err)
	}

	log.WithFields(log.Fields{
		"inviteID":    invite.ID,
		"agreementID": agreement.ID,
		"status":      agreement.Status,
	}).Info("Accepted staking invite")

	s.publish(events.InviteAcceptedEvent{
		InviteID:    invite.ID,
		EventID:     invite.EventID,
		AgreementID: agreement.ID,
		Settled:     agreement.IsSettled(),
	})

	return agreement, nil
}

// writeSettledAgreement stores a settled agreement for an invite that
// already carries results, without an intermediate active row
func (s *stakingInviteService) writeSettledAgreement(ctx context.Context, invite *entities.StakingInvite) (*entities.StakeAgreement, error) {
	buyIn, cashout := *invite.SessionBuyIn, *invite.SessionCashout
	amount, err := ComputeSettlement(buyIn, cashout, invite.Percentage, invite.Markup)
	if err != nil {
		return nil, err
	}

	sessionID := invite.ProvisionalSessionID()
	stakerKey := invite.Staker.Key()
	current, err := s.agreementRepo.GetCurrentForUpdate(ctx, sessionID, stakerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get current agreement: %w", err)
	}

	ts := now()
	var agreement *entities.StakeAgreement
	if current != nil {
		if err := current.ApplyTerms(invite.Terms(), ts); err != nil {
			return nil, err
		}
		if current.Status == entities.StakeStatusPendingAcceptance {
			if err := current.TransitionTo(entities.StakeStatusActive, ts); err != nil {
				return nil, err
			}
		}
		current.BuyIn = buyIn
		current.Cashout = cashout
		current.SettlementAmount = &amount
		if err := current.TransitionTo(entities.StakeStatusSettled, ts); err != nil {
			return nil, err
		}
		if err := s.agreementRepo.Update(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to settle agreement: %w", err)
		}
		agreement = current
	} else {
		settledAt := ts
		agreement = &entities.StakeAgreement{
			ID:               newID(),
			SessionID:        sessionID,
			Staker:           invite.Staker,
			StakedPlayerID:   invite.StakedPlayerID,
			Percentage:       invite.Percentage,
			Markup:           invite.Markup,
			BuyIn:            buyIn,
			Cashout:          cashout,
			SettlementAmount: &amount,
			Status:           entities.StakeStatusSettled,
			SessionMetadata:  invite.EventMetadata.SessionMetadata(),
			ProposedAt:       invite.CreatedAt,
			LastUpdatedAt:    ts,
			SettledAt:        &settledAt,
		}
		stored, err := s.agreementRepo.Upsert(ctx, agreement)
		if err != nil {
			return nil, fmt.Errorf("failed to create settled agreement: %w", err)
		}
		agreement = stored
	}

	s.publish(events.StakeSettledEvent{
		StakeID:          agreement.ID,
		SessionID:        agreement.SessionID,
		StakedPlayerID:   agreement.StakedPlayerID,
		StakerKey:        stakerKey,
		BuyIn:            buyIn,
		Cashout:          cashout,
		SettlementAmount: amount,
		Status:           string(agreement.Status),
	})

	return agreement, nil
}

// Decline answers a pending invite without creating an agreement
func (s *stakingInviteService) Decline(ctx context.Context, inviteID string) error {
	invite, err := s.getForUpdate(ctx, inviteID)
	if err != nil {
		return err
	}
	if err := invite.Respond(false, now()); err != nil {
		return fmt.Errorf("invite %s is %s: %w", invite.ID, invite.Status, err)
	}
	if err := s.inviteRepo.Update(ctx, invite); err != nil {
		return fmt.Errorf("failed to update invite: %w", err)
	}

	s.publish(events.InviteDeclinedEvent{
		InviteID: invite.ID,
		EventID:  invite.EventID,
	})
	return nil
}

// AttachSessionResults overwrites result fields on every pending invite of
// the participant. Statuses are left untouched.
func (s *stakingInviteService) AttachSessionResults(ctx context.Context, eventID, stakedPlayerID string, buyIn, cashout decimal.Decimal) (int, error) {
	if buyIn.IsNegative() {
		return 0, entities.NewValidationError("buy_in", "must not be negative")
	}
	if cashout.IsNegative() {
		return 0, entities.NewValidationError("cashout", "must not be negative")
	}

	invites, err := s.inviteRepo.ListPendingForUpdate(ctx, eventID, stakedPlayerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending invites: %w", err)
	}

	ts := now()
	for _, invite := range invites {
		invite.AttachResults(buyIn, cashout, ts)
		if err := s.inviteRepo.Update(ctx, invite); err != nil {
			return 0, fmt.Errorf("failed to attach results to invite %s: %w", invite.ID, err)
		}
	}

	if len(invites) > 0 {
		s.publish(events.InviteResultsAttachedEvent{
			EventID:        eventID,
			StakedPlayerID: stakedPlayerID,
			BuyIn:          buyIn,
			Cashout:        cashout,
			InvitesUpdated: len(invites),
		})
	}

	log.WithFields(log.Fields{
		"eventID":        eventID,
		"stakedPlayerID": stakedPlayerID,
		"updated":        len(invites),
	}).Debug("Attached session results to pending invites")

	return len(invites), nil
}

// Get retrieves an invite by ID
func (s *stakingInviteService) Get(ctx context.Context, inviteID string) (*entities.StakingInvite, error) {
	invite, err := s.inviteRepo.GetByID(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if invite == nil {
		return nil, fmt.Errorf("staking invite %s: %w", inviteID, entities.ErrNotFound)
	}
	return invite, nil
}

// ListByEvent returns every invite of an event
func (s *stakingInviteService) ListByEvent(ctx context.Context, eventID string) ([]*entities.StakingInvite, error) {
	invites, err := s.inviteRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites by event: %w", err)
	}
	return invites, nil
}

// ListByStaker returns invites addressed to a staker
func (s *stakingInviteService) ListByStaker(ctx context.Context, staker entities.StakerIdentity) ([]*entities.StakingInvite, error) {
	if err := staker.Validate(); err != nil {
		return nil, err
	}
	invites, err := s.inviteRepo.ListByStaker(ctx, staker.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to list invites by staker: %w", err)
	}
	return invites, nil
}

func (s *stakingInviteService) getForUpdate(ctx context.Context, inviteID string) (*entities.StakingInvite, error) {
	invite, err := s.inviteRepo.GetByIDForUpdate(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if invite == nil {
		return nil, fmt.Errorf("staking invite %s: %w", inviteID, entities.ErrNotFound)
	}
	return invite, nil
}

func (s *stakingInviteService) publish(event events.Event) {
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to publish invite event")
	}
}
