package identity

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	"github.com/stretchr/testify/require"
)

func TestDirectoryAdminSet(test *testing.T) {
	directory := NewDirectory([]string{" admin-1 ", "", "admin-2"}, nil)
	ctx := context.Background()

	isAdmin, err := directory.IsAdmin(ctx, "admin-1")
	require.NoError(test, err)
	require.True(test, isAdmin)

	isAdmin, err = directory.IsAdmin(ctx, "admin-2")
	require.NoError(test, err)
	require.True(test, isAdmin)

	isAdmin, err = directory.IsAdmin(ctx, "alice")
	require.NoError(test, err)
	require.False(test, isAdmin)
}

func TestDirectoryProfiles(test *testing.T) {
	directory := NewDirectory(nil, map[string]coinledger.OwnerProfile{
		"alice": {DisplayName: "Alice", Contact: "alice@example.com"},
	})
	ctx := context.Background()

	profile, err := directory.Profile(ctx, "alice")
	require.NoError(test, err)
	require.Equal(test, "Alice", profile.DisplayName)

	// Unknown users still exist with an empty snapshot.
	profile, err = directory.Profile(ctx, "bob")
	require.NoError(test, err)
	require.Empty(test, profile.DisplayName)

	exists, err := directory.UserExists(ctx, "bob")
	require.NoError(test, err)
	require.True(test, exists)

	exists, err = directory.UserExists(ctx, "   ")
	require.NoError(test, err)
	require.False(test, exists)
}
