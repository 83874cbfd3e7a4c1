package documents

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-collab/document-portal/document-portal-backend/internal/identity"
)

func TestMapPQErrorTranslatesDriverCodes(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"serialization failure", "40001", ErrConcurrencyConflict},
		{"deadlock detected", "40P01", ErrConcurrencyConflict},
		{"unique violation", "23505", ErrConcurrencyConflict},
		{"foreign key violation", "23503", ErrPersistence},
		{"undefined table", "42P01", ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapPQError(&pq.Error{Code: tt.code, Message: tt.name})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapPQErrorUnwrapsNestedErrors(t *testing.T) {
	// Commit errors reach the mapper already wrapped by the driver stack.
	inner := &pq.Error{Code: "40001", Message: "could not serialize access"}
	err := mapPQError(fmt.Errorf("commit: %w", inner))
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestMapPQErrorDefaults(t *testing.T) {
	assert.NoError(t, mapPQError(nil))
	assert.ErrorIs(t, mapPQError(errors.New("connection reset")), ErrPersistence)
}

func TestScopeClauseMatchesViewRules(t *testing.T) {
	department := uuid.New()
	userID := uuid.New()

	t.Run("admin unscoped", func(t *testing.T) {
		clause, args := scopeClause(identity.Context{UserID: userID, RoleLevel: identity.RoleAdmin}, nil)
		assert.Empty(t, clause)
		assert.Empty(t, args)
	})

	t.Run("assistant sees own and handled", func(t *testing.T) {
		clause, args := scopeClause(actorCtx(userID, identity.RoleAssistant, department), nil)
		assert.Equal(t, " AND (created_by = $1 OR current_handler = $1)", clause)
		require.Len(t, args, 1)
		assert.Equal(t, userID, args[0])
	})

	t.Run("vice-manager sees whole department", func(t *testing.T) {
		clause, args := scopeClause(actorCtx(userID, identity.RoleViceManager, department), nil)
		assert.Equal(t, " AND department_id = $1", clause)
		require.Len(t, args, 1)
	})

	t.Run("manager sees whole department", func(t *testing.T) {
		clause, args := scopeClause(actorCtx(userID, identity.RoleManager, department), nil)
		assert.Equal(t, " AND department_id = $1", clause)
		require.Len(t, args, 1)
	})

	t.Run("manager without department falls back to own documents", func(t *testing.T) {
		clause, _ := scopeClause(identity.Context{UserID: userID, RoleLevel: identity.RoleManager}, nil)
		assert.Equal(t, " AND (created_by = $1 OR current_handler = $1)", clause)
	})

	t.Run("placeholders continue prior args", func(t *testing.T) {
		clause, args := scopeClause(actorCtx(userID, identity.RoleAssistant, department), []interface{}{"seed"})
		assert.Equal(t, " AND (created_by = $2 OR current_handler = $2)", clause)
		assert.Len(t, args, 2)
	})
}

func TestStatusOptionsCoverEveryStatus(t *testing.T) {
	options := StatusOptions()
	require.Len(t, options, 6)

	seen := map[DocumentStatus]bool{}
	for i, opt := range options {
		assert.Equal(t, i+1, opt.DisplayOrder)
		assert.NotEmpty(t, opt.Name)
		seen[opt.Code] = true
	}
	for _, status := range []DocumentStatus{
		StatusDraft, StatusPending, StatusInReview,
		StatusApproved, StatusRejected, StatusRevisionRequested,
	} {
		assert.True(t, seen[status], string(status))
	}
}
