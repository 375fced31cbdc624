package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	storetest "github.com/MelonGO/gemini-chatbot/store/test"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)

	require.True(t, CheckPassword(hash, "hunter22"))
	require.False(t, CheckPassword(hash, "hunter2"))
	require.False(t, CheckPassword("not-a-hash", "hunter22"))
}

func TestAuthenticator(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	user, err := storetest.CreateTestingUser(ctx, ts)
	require.NoError(t, err)

	const secret = "test-secret"
	authenticator := NewAuthenticator(ts, secret)

	token, err := GenerateAccessToken(user.ID, secret)
	require.NoError(t, err)

	authed, err := authenticator.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)

	_, err = authenticator.Authenticate(ctx, "")
	require.Error(t, err)
	_, err = authenticator.Authenticate(ctx, token)
	require.Error(t, err)
	_, err = authenticator.Authenticate(ctx, "Bearer not.a.token")
	require.Error(t, err)

	// A token signed with a different secret is rejected.
	forged, err := GenerateAccessToken(user.ID, "other-secret")
	require.NoError(t, err)
	_, err = authenticator.Authenticate(ctx, "Bearer "+forged)
	require.Error(t, err)

	// A valid token for a deleted user is rejected.
	ghost, err := GenerateAccessToken("no-such-user", secret)
	require.NoError(t, err)
	_, err = authenticator.Authenticate(ctx, "Bearer "+ghost)
	require.Error(t, err)
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, "", GetUserIDFromContext(ctx))
	ctx = SetUserIDInContext(ctx, "user-1")
	require.Equal(t, "user-1", GetUserIDFromContext(ctx))
}
