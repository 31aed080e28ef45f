package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"stakehouse/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: errors.New("syntax error")},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), transient: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, transient: true},
		{name: "connection exception class", err: &pgconn.PgError{Code: "08006"}, transient: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "already transient", err: fmt.Errorf("wrapped: %w", entities.ErrTransientIO), transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.transient, errors.Is(got, entities.ErrTransientIO))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
