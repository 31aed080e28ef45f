package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakeStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from StakeStatus
		to   StakeStatus
		want bool
	}{
		{"pending to active", StakeStatusPendingAcceptance, StakeStatusActive, true},
		{"pending to declined", StakeStatusPendingAcceptance, StakeStatusDeclined, true},
		{"pending to settled", StakeStatusPendingAcceptance, StakeStatusSettled, false},
		{"active to awaiting settlement", StakeStatusActive, StakeStatusAwaitingSettlement, true},
		{"active to settled", StakeStatusActive, StakeStatusSettled, true},
		{"active to declined", StakeStatusActive, StakeStatusDeclined, true},
		{"active to pending", StakeStatusActive, StakeStatusPendingAcceptance, false},
		{"awaiting settlement to settled", StakeStatusAwaitingSettlement, StakeStatusSettled, true},
		{"awaiting settlement to declined", StakeStatusAwaitingSettlement, StakeStatusDeclined, false},
		{"settled to active", StakeStatusSettled, StakeStatusActive, false},
		{"settled to declined", StakeStatusSettled, StakeStatusDeclined, false},
		{"declined to active", StakeStatusDeclined, StakeStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStakeStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StakeStatusSettled.IsTerminal())
	assert.True(t, StakeStatusDeclined.IsTerminal())
	assert.False(t, StakeStatusActive.IsTerminal())
	assert.False(t, StakeStatusPendingAcceptance.IsTerminal())
	assert.False(t, StakeStatusAwaitingSettlement.IsTerminal())
}

func TestStakeAgreement_TransitionTo(t *testing.T) {
	t.Parallel()

	t.Run("settling stamps settled at", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		agreement := &StakeAgreement{Status: StakeStatusActive}

		require.NoError(t, agreement.TransitionTo(StakeStatusSettled, now))
		assert.Equal(t, StakeStatusSettled, agreement.Status)
		require.NotNil(t, agreement.SettledAt)
		assert.Equal(t, now, *agreement.SettledAt)
		assert.Equal(t, now, agreement.LastUpdatedAt)
	})

	t.Run("leaving a terminal state fails", func(t *testing.T) {
		t.Parallel()

		agreement := &StakeAgreement{Status: StakeStatusDeclined}
		err := agreement.TransitionTo(StakeStatusActive, time.Now())

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidStateTransition))

		var transitionErr *StateTransitionError
		require.True(t, errors.As(err, &transitionErr))
		assert.Equal(t, StakeStatusDeclined, transitionErr.From)
		assert.Equal(t, StakeStatusActive, transitionErr.To)
		assert.Equal(t, StakeStatusDeclined, agreement.Status)
	})
}

func TestStakeAgreement_ApplyTerms(t *testing.T) {
	t.Parallel()

	terms := StakeTerms{Percentage: decimal.RequireFromString("0.25"), Markup: decimal.RequireFromString("1.2")}

	tests := []struct {
		name    string
		status  StakeStatus
		wantErr bool
	}{
		{"pending accepts edits", StakeStatusPendingAcceptance, false},
		{"active accepts edits", StakeStatusActive, false},
		{"awaiting settlement rejects edits", StakeStatusAwaitingSettlement, true},
		{"settled rejects edits", StakeStatusSettled, true},
		{"declined rejects edits", StakeStatusDeclined, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			agreement := &StakeAgreement{
				Status:     tt.status,
				Percentage: decimal.RequireFromString("0.5"),
				Markup:     decimal.NewFromInt(1),
			}
			err := agreement.ApplyTerms(terms, time.Now())

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStateTransition)
				assert.True(t, agreement.Percentage.Equal(decimal.RequireFromString("0.5")))
				return
			}
			require.NoError(t, err)
			assert.True(t, agreement.Terms().Equal(terms))
		})
	}
}

func TestStakeTerms_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		percentage string
		markup     string
		wantField  string
	}{
		{"valid half at par", "0.5", "1", ""},
		{"valid full with markup", "1", "1.35", ""},
		{"zero percentage", "0", "1", "percentage"},
		{"negative percentage", "-0.1", "1", "percentage"},
		{"percentage above one", "1.01", "1", "percentage"},
		{"markup below one", "0.5", "0.99", "markup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			terms := StakeTerms{
				Percentage: decimal.RequireFromString(tt.percentage),
				Markup:     decimal.RequireFromString(tt.markup),
			}
			err := terms.Validate()

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRetryable(ErrTransientIO))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(NewValidationError("markup", "bad")))
}
