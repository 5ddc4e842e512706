package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/util"
)

func TestIdentityService_CreateGuest(t *testing.T) {
	ctx := context.Background()

	t.Run("named guest", func(t *testing.T) {
		repo := newMemIdentities()
		svc := NewIdentityService(repo)

		result, err := svc.CreateGuest(ctx, "Alice")
		require.NoError(t, err)

		assert.Len(t, result.ParticipantID, 32)
		assert.NotEmpty(t, result.Token)
		require.NotNil(t, result.DisplayName)
		assert.Equal(t, "Alice", *result.DisplayName)

		// the raw token is never stored, only its hash
		stored, err := repo.FindByID(ctx, result.ParticipantID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, util.HashToken(result.Token), stored.TokenHash)
		assert.NotEqual(t, result.Token, stored.TokenHash)
		assert.False(t, stored.Anonymous())
	})

	t.Run("anonymous guest", func(t *testing.T) {
		repo := newMemIdentities()
		svc := NewIdentityService(repo)

		result, err := svc.CreateGuest(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, result.DisplayName)

		stored, err := repo.FindByID(ctx, result.ParticipantID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.Anonymous())
	})

	t.Run("display name length is capped", func(t *testing.T) {
		svc := NewIdentityService(newMemIdentities())

		_, err := svc.CreateGuest(ctx, strings.Repeat("x", maxDisplayNameLen+1))
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("tokens are unique per guest", func(t *testing.T) {
		repo := newMemIdentities()
		svc := NewIdentityService(repo)

		first, err := svc.CreateGuest(ctx, "")
		require.NoError(t, err)
		second, err := svc.CreateGuest(ctx, "")
		require.NoError(t, err)

		assert.NotEqual(t, first.Token, second.Token)
		assert.NotEqual(t, first.ParticipantID, second.ParticipantID)
	})
}
