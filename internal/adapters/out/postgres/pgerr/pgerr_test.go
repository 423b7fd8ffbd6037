package pgerr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"orderflow/internal/adapters/out/postgres/pgerr"
	"orderflow/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"statement timeout", context.DeadlineExceeded, true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pgerr.Classify(tt.err)

			assert.Equal(t, tt.transient, errors.Is(got, ports.ErrStoreUnavailable))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, pgerr.Classify(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, pgerr.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, pgerr.IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.number")))
	assert.False(t, pgerr.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
