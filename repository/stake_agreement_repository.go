package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stakehouse/database"
	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const agreementColumns = `
	id, session_id, staker_key, staker_user_id, staker_manual_name, staker_directory_id,
	staked_player_user_id, stake_percentage, markup, total_buy_in, cashout,
	settlement_amount, status, is_tournament, session_game_name, session_stakes,
	session_date, proposed_at, last_updated_at, settled_at`

type stakeAgreementRepository struct {
	q Queryable
}

// NewStakeAgreementRepository creates a new stake agreement repository
func NewStakeAgreementRepository(db *database.DB) interfaces.StakeAgreementRepository {
	return &stakeAgreementRepository{q: db.Pool}
}

// NewStakeAgreementRepositoryScoped creates a stake agreement repository bound to a transaction
func NewStakeAgreementRepositoryScoped(tx Queryable) interfaces.StakeAgreementRepository {
	return &stakeAgreementRepository{q: tx}
}

// GetByID retrieves an agreement by its ID
func (r *stakeAgreementRepository) GetByID(ctx context.Context, id string) (*entities.StakeAgreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM stake_agreements WHERE id = $1`
	return r.getOne(ctx, "get agreement", query, id)
}

// GetByIDForUpdate retrieves an agreement by ID and locks the row
func (r *stakeAgreementRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.StakeAgreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM stake_agreements WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "get agreement for update", query, id)
}

// GetCurrentForUpdate retrieves and locks the live agreement of a session and staker
func (r *stakeAgreementRepository) GetCurrentForUpdate(ctx context.Context, sessionID, stakerKey string) (*entities.StakeAgreement, error) {
	query := `
		SELECT ` + agreementColumns + `
		FROM stake_agreements
		WHERE session_id = $1 AND staker_key = $2 AND status <> 'declined'
		FOR UPDATE
	`
	return r.getOne(ctx, "get current agreement", query, sessionID, stakerKey)
}

// Upsert inserts the agreement or overwrites the terms of the live row for the
// same session and staker. A live row that was updated later, or whose status
// no longer accepts term changes, is left untouched and returned as stored.
func (r *stakeAgreementRepository) Upsert(ctx context.Context, agreement *entities.StakeAgreement) (*entities.StakeAgreement, error) {
	userID, manualName, directoryID := stakerColumns(agreement.Staker)

	query := `
		INSERT INTO stake_agreements (
			id, session_id, staker_key, staker_user_id, staker_manual_name, staker_directory_id,
			staked_player_user_id, stake_percentage, markup, total_buy_in, cashout,
			settlement_amount, status, is_off_platform_stake, is_tournament, session_game_name,
			session_stakes, session_date, proposed_at, last_updated_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (session_id, staker_key) WHERE status <> 'declined'
		DO UPDATE SET
			stake_percentage = EXCLUDED.stake_percentage,
			markup = EXCLUDED.markup,
			staker_manual_name = EXCLUDED.staker_manual_name,
			is_tournament = EXCLUDED.is_tournament,
			session_game_name = EXCLUDED.session_game_name,
			session_stakes = EXCLUDED.session_stakes,
			session_date = COALESCE(EXCLUDED.session_date, stake_agreements.session_date),
			last_updated_at = EXCLUDED.last_updated_at
		WHERE stake_agreements.last_updated_at <= EXCLUDED.last_updated_at
			AND stake_agreements.status IN ('pending_acceptance', 'active')
		RETURNING ` + agreementColumns

	row := r.q.QueryRow(ctx, query,
		agreement.ID,
		agreement.SessionID,
		agreement.StakerKey(),
		userID,
		manualName,
		directoryID,
		agreement.StakedPlayerID,
		agreement.Percentage,
		agreement.Markup,
		agreement.BuyIn,
		agreement.Cashout,
		agreement.SettlementAmount,
		string(agreement.Status),
		agreement.IsOffPlatform(),
		agreement.IsTournament,
		agreement.SessionGameName,
		agreement.SessionStakes,
		agreement.SessionDate,
		agreement.ProposedAt,
		agreement.LastUpdatedAt,
		agreement.SettledAt,
	)

	stored, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// the conflict guard skipped the update; report the row that won
		current, getErr := r.getOne(ctx, "get upsert winner", `
			SELECT `+agreementColumns+`
			FROM stake_agreements
			WHERE session_id = $1 AND staker_key = $2 AND status <> 'declined'
		`, agreement.SessionID, agreement.StakerKey())
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, fmt.Errorf("upsert of agreement %s lost its conflicting row: %w", agreement.ID, entities.ErrTransientIO)
		}
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert agreement: %w", classify(err))
	}

	return stored, nil
}

// Update persists the mutable fields of an existing agreement
func (r *stakeAgreementRepository) Update(ctx context.Context, agreement *entities.StakeAgreement) error {
	_, manualName, _ := stakerColumns(agreement.Staker)

	query := `
		UPDATE stake_agreements
		SET session_id = $2,
			stake_percentage = $3,
			markup = $4,
			staker_manual_name = $5,
			total_buy_in = $6,
			cashout = $7,
			settlement_amount = $8,
			status = $9,
			last_updated_at = $10,
			settled_at = $11
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		agreement.ID,
		agreement.SessionID,
		agreement.Percentage,
		agreement.Markup,
		manualName,
		agreement.BuyIn,
		agreement.Cashout,
		agreement.SettlementAmount,
		string(agreement.Status),
		agreement.LastUpdatedAt,
		agreement.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update agreement: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agreement %s: %w", agreement.ID, entities.ErrNotFound)
	}

	return nil
}

// ListBySession returns every agreement filed under the given session ids
func (r *stakeAgreementRepository) ListBySession(ctx context.Context, sessionIDs ...string) ([]*entities.StakeAgreement, error) {
	if len(sessionIDs) == 0 {
		return []*entities.StakeAgreement{}, nil
	}

	query := `
		SELECT ` + agreementColumns + `
		FROM stake_agreements
		WHERE session_id = ANY($1)
		ORDER BY proposed_at, id
	`
	return r.list(ctx, "list agreements by session", query, sessionIDs)
}

// ListByPlayer returns agreements where the user is the staked player
func (r *stakeAgreementRepository) ListByPlayer(ctx context.Context, playerID string) ([]*entities.StakeAgreement, error) {
	query := `
		SELECT ` + agreementColumns + `
		FROM stake_agreements
		WHERE staked_player_user_id = $1
		ORDER BY last_updated_at DESC, id
	`
	return r.list(ctx, "list agreements by player", query, playerID)
}

// ListByStaker returns agreements for a staker key
func (r *stakeAgreementRepository) ListByStaker(ctx context.Context, stakerKey string) ([]*entities.StakeAgreement, error) {
	query := `
		SELECT ` + agreementColumns + `
		FROM stake_agreements
		WHERE staker_key = $1
		ORDER BY last_updated_at DESC, id
	`
	return r.list(ctx, "list agreements by staker", query, stakerKey)
}

func (r *stakeAgreementRepository) getOne(ctx context.Context, op, query string, args ...any) (*entities.StakeAgreement, error) {
	agreement, err := scanAgreement(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, classify(err))
	}
	return agreement, nil
}

func (r *stakeAgreementRepository) list(ctx context.Context, op, query string, args ...any) ([]*entities.StakeAgreement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, classify(err))
	}
	defer rows.Close()

	agreements := []*entities.StakeAgreement{}
	for rows.Next() {
		agreement, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agreement: %w", err)
		}
		agreements = append(agreements, agreement)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agreement rows: %w", classify(err))
	}

	return agreements, nil
}

func scanAgreement(row rowScanner) (*entities.StakeAgreement, error) {
	var (
		a           entities.StakeAgreement
		stakerKey   string
		userID      *string
		manualName  *string
		directoryID *string
		settlement  decimal.NullDecimal
		status      string
		sessionDate *time.Time
	)

	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&stakerKey,
		&userID,
		&manualName,
		&directoryID,
		&a.StakedPlayerID,
		&a.Percentage,
		&a.Markup,
		&a.BuyIn,
		&a.Cashout,
		&settlement,
		&status,
		&a.IsTournament,
		&a.SessionGameName,
		&a.SessionStakes,
		&sessionDate,
		&a.ProposedAt,
		&a.LastUpdatedAt,
		&a.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	a.Staker = stakerFromColumns(userID, manualName, directoryID)
	a.Status = entities.StakeStatus(status)
	a.SessionDate = sessionDate
	if settlement.Valid {
		amount := settlement.Decimal
		a.SettlementAmount = &amount
	}

	return &a, nil
}

// stakerColumns splits a staker identity into its nullable columns
func stakerColumns(s entities.StakerIdentity) (userID, manualName, directoryID *string) {
	if s.IsRegistered() {
		id := s.UserID
		return &id, nil, nil
	}
	name := s.DisplayName
	return nil, &name, s.DirectoryID
}

func stakerFromColumns(userID, manualName, directoryID *string) entities.StakerIdentity {
	if userID != nil {
		return entities.RegisteredStaker(*userID)
	}
	name := ""
	if manualName != nil {
		name = *manualName
	}
	return entities.ManualStaker(name, directoryID)
}
