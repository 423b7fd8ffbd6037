package actor_test

import (
	"testing"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := actor.ParseRole("Kitchen")
	require.NoError(t, err)
	assert.Equal(t, actor.RoleKitchen, role)

	_, err = actor.ParseRole("customer")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestNew(t *testing.T) {
	t.Run("should build a rider actor", func(t *testing.T) {
		id := kernel.NewUUID()
		a, err := actor.New(actor.RoleRider, id)

		require.NoError(t, err)
		require.NoError(t, a.Validate())
		assert.Equal(t, actor.RoleRider, a.Role())
		assert.True(t, id.IsEqual(a.ID()))
		assert.Equal(t, "rider:"+id.String(), a.String())
	})

	t.Run("should reject unknown role and empty id", func(t *testing.T) {
		_, err := actor.New(actor.RoleUnknown, kernel.UUID{})
		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
		require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
	})

	t.Run("zero value is not constructed", func(t *testing.T) {
		require.ErrorIs(t, actor.Actor{}.Validate(), actor.ErrActorIsNotConstructed)
	})
}
