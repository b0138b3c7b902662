package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUserCreatesAndRefreshes(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, "user-1", "a@b.test", "Alice"))

	user, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.test", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.False(t, user.FirstSeen.IsZero())
	firstSeen := user.FirstSeen

	// A later sign-in refreshes claims but keeps FirstSeen
	require.NoError(t, s.UpsertUser(ctx, "user-1", "new@b.test", "Alice A"))

	user, err = s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new@b.test", user.Email)
	assert.Equal(t, "Alice A", user.Name)
	assert.Equal(t, firstSeen, user.FirstSeen)
	assert.False(t, user.LastSeen.Before(firstSeen))
}

func TestUpsertUserKeepsNameWhenEmpty(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, "user-1", "a@b.test", "Alice"))
	require.NoError(t, s.UpsertUser(ctx, "user-1", "a@b.test", ""))

	user, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
}

func TestGetUserNotFound(t *testing.T) {
	s := NewMemoryStorage()
	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfilePartial(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, "user-1", "a@b.test", "Alice"))

	displayName := "DJ Alice"
	updated, err := s.UpdateProfile(ctx, "user-1", ProfileUpdate{DisplayName: &displayName})
	require.NoError(t, err)
	assert.Equal(t, "DJ Alice", updated.DisplayName)
	assert.Empty(t, updated.Town)

	town := "Stoke"
	updated, err = s.UpdateProfile(ctx, "user-1", ProfileUpdate{
		Town:        &town,
		Instruments: []string{"guitar", "vocals"},
	})
	require.NoError(t, err)
	// Earlier fields survive updates that do not mention them
	assert.Equal(t, "DJ Alice", updated.DisplayName)
	assert.Equal(t, "Stoke", updated.Town)
	assert.Equal(t, []string{"guitar", "vocals"}, updated.Instruments)
}

func TestUpdateProfileNotFound(t *testing.T) {
	s := NewMemoryStorage()
	displayName := "x"
	_, err := s.UpdateProfile(context.Background(), "missing", ProfileUpdate{DisplayName: &displayName})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetAllUsersAndDelete(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, "user-1", "a@b.test", "Alice"))
	require.NoError(t, s.UpsertUser(ctx, "user-2", "b@b.test", "Bob"))

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, s.DeleteUser(ctx, "user-1"))

	users, err = s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "user-2", users[0].UID)

	// Deleting an absent user is not an error
	assert.NoError(t, s.DeleteUser(ctx, "missing"))
}

func TestGetUserReturnsCopy(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, "user-1", "a@b.test", "Alice"))

	user, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	user.Email = "mutated@b.test"

	again, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.test", again.Email)
}
