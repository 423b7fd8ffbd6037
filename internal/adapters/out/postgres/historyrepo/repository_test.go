package historyrepo_test

import (
	"path/filepath"
	"testing"
	"time"

	"orderflow/internal/adapters/out/postgres"
	"orderflow/internal/adapters/out/postgres/historyrepo"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormHistoryRepository(t *testing.T) {
	ctx := t.Context()
	db, closeDB, err := postgres.Open(ctx, postgres.ConnConfig{
		Driver:         postgres.DriverSQLite,
		DSN:            filepath.Join(t.TempDir(), "history.db"),
		ConnectTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	defer closeDB()
	require.NoError(t, postgres.Migrate(db))
	repo := historyrepo.NewGormHistoryRepository(db)

	at := time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
	orderID := kernel.NewUUID()
	kitchen, err := actor.New(actor.RoleKitchen, kernel.NewUUID())
	require.NoError(t, err)

	placed, err := history.NewPlacementEntry(orderID, at)
	require.NoError(t, err)
	started, err := history.NewEntry(orderID, order.New, order.Preparing, kitchen, " oven free ", at.Add(time.Minute))
	require.NoError(t, err)
	other, err := history.NewPlacementEntry(kernel.NewUUID(), at)
	require.NoError(t, err)

	require.NoError(t, repo.Append(ctx, started))
	require.NoError(t, repo.Append(ctx, placed))
	require.NoError(t, repo.Append(ctx, other))

	entries, err := repo.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, order.Unknown, entries[0].From)
	assert.Equal(t, order.New, entries[0].To)
	assert.Equal(t, history.PlacementRole, entries[0].ActorRole)
	assert.Nil(t, entries[0].ActorID)

	assert.Equal(t, order.New, entries[1].From)
	assert.Equal(t, order.Preparing, entries[1].To)
	assert.Equal(t, "kitchen", entries[1].ActorRole)
	require.NotNil(t, entries[1].ActorID)
	assert.Equal(t, kitchen.ID(), *entries[1].ActorID)
	assert.Equal(t, "oven free", entries[1].Reason)
	assert.True(t, at.Add(time.Minute).Equal(entries[1].OccurredAt))
}
