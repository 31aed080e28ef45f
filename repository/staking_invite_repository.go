package repository

import (
	"context"
	"errors"
	"fmt"

	"stakehouse/database"
	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const inviteColumns = `
	id, event_id, event_name, event_date, game_name, stakes, is_tournament,
	staked_player_user_id, staker_user_id, staker_manual_name, staker_directory_id,
	stake_percentage, markup, status, session_buy_in, session_cashout,
	session_completed_at, agreement_id, created_at, responded_at, last_updated_at`

type stakingInviteRepository struct {
	q Queryable
}

// NewStakingInviteRepository creates a new staking invite repository
func NewStakingInviteRepository(db *database.DB) interfaces.StakingInviteRepository {
	return &stakingInviteRepository{q: db.Pool}
}

// NewStakingInviteRepositoryScoped creates a staking invite repository bound to a transaction
func NewStakingInviteRepositoryScoped(tx Queryable) interfaces.StakingInviteRepository {
	return &stakingInviteRepository{q: tx}
}

// Create inserts a new invite
func (r *stakingInviteRepository) Create(ctx context.Context, invite *entities.StakingInvite) error {
	userID, manualName, directoryID := stakerColumns(invite.Staker)

	query := `
		INSERT INTO staking_invites (
			id, event_id, event_name, event_date, game_name, stakes, is_tournament,
			staked_player_user_id, staker_key, staker_user_id, staker_manual_name, staker_directory_id,
			stake_percentage, markup, status, session_buy_in, session_cashout,
			session_completed_at, agreement_id, created_at, responded_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.q.Exec(ctx, query,
		invite.ID,
		invite.EventID,
		invite.EventMetadata.EventName,
		invite.EventMetadata.EventDate,
		invite.EventMetadata.GameName,
		invite.EventMetadata.Stakes,
		invite.EventMetadata.IsTournament,
		invite.StakedPlayerID,
		invite.Staker.Key(),
		userID,
		manualName,
		directoryID,
		invite.Percentage,
		invite.Markup,
		string(invite.Status),
		invite.SessionBuyIn,
		invite.SessionCashout,
		invite.SessionCompletedAt,
		invite.AgreementID,
		invite.CreatedAt,
		invite.RespondedAt,
		invite.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", classify(err))
	}

	return nil
}

// GetByID retrieves an invite by its ID
func (r *stakingInviteRepository) GetByID(ctx context.Context, id string) (*entities.StakingInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM staking_invites WHERE id = $1`
	return r.getOne(ctx, "get invite", query, id)
}

// GetByIDForUpdate retrieves an invite by ID and locks the row
func (r *stakingInviteRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.StakingInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM staking_invites WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "get invite for update", query, id)
}

// Update persists status, response and result fields of an invite
func (r *stakingInviteRepository) Update(ctx context.Context, invite *entities.StakingInvite) error {
	query := `
		UPDATE staking_invites
		SET status = $2,
			session_buy_in = $3,
			session_cashout = $4,
			session_completed_at = $5,
			agreement_id = $6,
			responded_at = $7,
			last_updated_at = $8
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		invite.ID,
		string(invite.Status),
		invite.SessionBuyIn,
		invite.SessionCashout,
		invite.SessionCompletedAt,
		invite.AgreementID,
		invite.RespondedAt,
		invite.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invite: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invite %s: %w", invite.ID, entities.ErrNotFound)
	}

	return nil
}

// ListPendingForUpdate returns and locks the pending invites of one event participant
func (r *stakingInviteRepository) ListPendingForUpdate(ctx context.Context, eventID, stakedPlayerID string) ([]*entities.StakingInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM staking_invites
		WHERE event_id = $1 AND staked_player_user_id = $2 AND status = 'pending'
		ORDER BY created_at, id
		FOR UPDATE
	`
	return r.list(ctx, "list pending invites", query, eventID, stakedPlayerID)
}

// ListByEvent returns every invite created for an event
func (r *stakingInviteRepository) ListByEvent(ctx context.Context, eventID string) ([]*entities.StakingInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM staking_invites
		WHERE event_id = $1
		ORDER BY created_at, id
	`
	return r.list(ctx, "list invites by event", query, eventID)
}

// ListByStaker returns invites addressed to a staker key
func (r *stakingInviteRepository) ListByStaker(ctx context.Context, stakerKey string) ([]*entities.StakingInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM staking_invites
		WHERE staker_key = $1
		ORDER BY created_at DESC, id
	`
	return r.list(ctx, "list invites by staker", query, stakerKey)
}

func (r *stakingInviteRepository) getOne(ctx context.Context, op, query string, args ...any) (*entities.StakingInvite, error) {
	invite, err := scanInvite(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, classify(err))
	}
	return invite, nil
}

func (r *stakingInviteRepository) list(ctx context.Context, op, query string, args ...any) ([]*entities.StakingInvite, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, classify(err))
	}
	defer rows.Close()

	invites := []*entities.StakingInvite{}
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite rows: %w", classify(err))
	}

	return invites, nil
}

func scanInvite(row rowScanner) (*entities.StakingInvite, error) {
	var (
		i           entities.StakingInvite
		userID      *string
		manualName  *string
		directoryID *string
		status      string
		buyIn       decimal.NullDecimal
		cashout     decimal.NullDecimal
	)

	err := row.Scan(
		&i.ID,
		&i.EventID,
		&i.EventMetadata.EventName,
		&i.EventMetadata.EventDate,
		&i.EventMetadata.GameName,
		&i.EventMetadata.Stakes,
		&i.EventMetadata.IsTournament,
		&i.StakedPlayerID,
		&userID,
		&manualName,
		&directoryID,
		&i.Percentage,
		&i.Markup,
		&status,
		&buyIn,
		&cashout,
		&i.SessionCompletedAt,
		&i.AgreementID,
		&i.CreatedAt,
		&i.RespondedAt,
		&i.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	i.Staker = stakerFromColumns(userID, manualName, directoryID)
	i.Status = entities.InviteStatus(status)
	if buyIn.Valid {
		value := buyIn.Decimal
		i.SessionBuyIn = &value
	}
	if cashout.Valid {
		value := cashout.Decimal
		i.SessionCashout = &value
	}

	return &i, nil
}
