package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberGeneratorFirstOfDay(t *testing.T) {
	store := newFakeStore()
	gen := NewNumberGenerator("DOC")

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	number, err := gen.Next(context.Background(), store, "ENG", now)
	require.NoError(t, err)
	assert.Equal(t, "DOC-ENG-20260830-0001", number)
}

func TestNumberGeneratorIncrementsSequence(t *testing.T) {
	store := newFakeStore()
	gen := NewNumberGenerator("DOC")
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	store.documents[uuid.New()] = &Document{ID: uuid.New(), DocumentNumber: "DOC-ENG-20260830-0007"}

	number, err := gen.Next(context.Background(), store, "ENG", now)
	require.NoError(t, err)
	assert.Equal(t, "DOC-ENG-20260830-0008", number)
}

func TestNumberGeneratorWithoutDepartment(t *testing.T) {
	store := newFakeStore()
	gen := NewNumberGenerator("")

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	number, err := gen.Next(context.Background(), store, "", now)
	require.NoError(t, err)
	assert.Equal(t, "DOC-20260830-0001", number)
}

func TestNumberGeneratorIgnoresOtherDays(t *testing.T) {
	store := newFakeStore()
	gen := NewNumberGenerator("DOC")

	store.documents[uuid.New()] = &Document{ID: uuid.New(), DocumentNumber: "DOC-ENG-20260829-0042"}

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	number, err := gen.Next(context.Background(), store, "ENG", now)
	require.NoError(t, err)
	assert.Equal(t, "DOC-ENG-20260830-0001", number)
}
