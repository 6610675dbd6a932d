package service

import (
	"context"
	"snapgraph/internal/auth"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueConfirmToken(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.True(t, strings.HasPrefix(sent[0].Link, "http://localhost/auth/confirm/"))

	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationConfirm, ApplyExtra{}))
	assert.True(t, alice.Confirmed, "identity mirrors the committed state")
	assert.True(t, env.reload(t, alice.ID).Confirmed)
}

func TestTokenBoundToIssuingIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	token, err := env.accounts.IssueConfirmToken(ctx, alice)
	require.NoError(t, err)

	err = env.accounts.VerifyAndApply(ctx, token, bob, auth.OperationConfirm, ApplyExtra{})
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, bob.Confirmed)
	assert.False(t, env.reload(t, bob.ID).Confirmed)

	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationConfirm, ApplyExtra{}))
	assert.True(t, env.reload(t, alice.ID).Confirmed)
}

func TestTokenOperationMustMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueConfirmToken(ctx, alice)
	require.NoError(t, err)

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{NewPassword: "new-password"})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.identity.Authenticate(ctx, "alice", "password-alice")
	assert.NoError(t, err)
}

func TestExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, _, err := env.codec.EncodeWithTTL(alice.ID, auth.OperationConfirm, auth.ActionPayload{}, 0)
	require.NoError(t, err)
	env.clock.Advance(2 * time.Second)

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationConfirm, ApplyExtra{})
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, env.reload(t, alice.ID).Confirmed)
}

func TestMalformedToken(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	for _, token := range []string{"", "garbage", "a.b.c"} {
		err := env.accounts.VerifyAndApply(context.Background(), token, alice, auth.OperationConfirm, ApplyExtra{})
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestTokenWithoutIdentity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	token, err := env.accounts.IssueConfirmToken(context.Background(), alice)
	require.NoError(t, err)

	err = env.accounts.VerifyAndApply(context.Background(), token, nil, auth.OperationConfirm, ApplyExtra{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueResetPasswordToken(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{})
	assert.ErrorIs(t, err, ErrPasswordRequired)

	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{NewPassword: "brand-new-secret"}))

	_, err = env.identity.Authenticate(ctx, "alice", "password-alice")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.identity.Authenticate(ctx, "alice", "brand-new-secret")
	assert.NoError(t, err)
}

func TestResetPasswordUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.accounts.IssueResetPasswordToken(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, env.mailer.Sent())
}

func TestChangeEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueChangeEmailToken(ctx, alice, " Alice.New@Example.com ")
	require.NoError(t, err)

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice.new@example.com", sent[0].To)

	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationChangeEmail, ApplyExtra{}))
	assert.Equal(t, "alice.new@example.com", alice.Email)
	assert.Equal(t, "alice.new@example.com", env.reload(t, alice.ID).Email)

	_, err = env.identity.Authenticate(ctx, "alice.new@example.com", "password-alice")
	assert.NoError(t, err)
}

func TestChangeEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	env.register(t, "bob")

	_, err := env.accounts.IssueChangeEmailToken(ctx, alice, "bob@example.com")
	assert.ErrorIs(t, err, ErrConflictingEmail)

	// 签发时地址空闲，应用前被别人占用
	token, err := env.accounts.IssueChangeEmailToken(ctx, alice, "carol@example.com")
	require.NoError(t, err)
	env.register(t, "carol")

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationChangeEmail, ApplyExtra{})
	assert.ErrorIs(t, err, ErrConflictingEmail)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, "alice@example.com", env.reload(t, alice.ID).Email)
}

func TestChangeEmailRejectsInvalidAddress(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	_, err := env.accounts.IssueChangeEmailToken(context.Background(), alice, "nope")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDenylistRejectsReuse(t *testing.T) {
	env := newTestEnvWithDenylist(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueResetPasswordToken(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{NewPassword: "first-reset"}))

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{NewPassword: "second-reset"})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.identity.Authenticate(ctx, "alice", "first-reset")
	assert.NoError(t, err)
}

func TestWithoutDenylistTokenIsReusableUntilExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueConfirmToken(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationConfirm, ApplyExtra{}))
	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationConfirm, ApplyExtra{}))
}

func TestDenylistConcurrentApplyHasSingleWinner(t *testing.T) {
	env := newTestEnvWithDenylist(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueConfirmToken(ctx, alice)
	require.NoError(t, err)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := *alice
			errs[i] = env.accounts.VerifyAndApply(ctx, token, &identity, auth.OperationConfirm, ApplyExtra{})
		}(i)
	}
	wg.Wait()

	var applied int
	for _, err := range errs {
		if err == nil {
			applied++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.Equal(t, 1, applied)
	assert.True(t, env.reload(t, alice.ID).Confirmed)
}

func TestDenylistReleasesTokenWhenApplyFails(t *testing.T) {
	env := newTestEnvWithDenylist(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueChangeEmailToken(ctx, alice, "carol@example.com")
	require.NoError(t, err)
	carol := env.register(t, "carol")

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationChangeEmail, ApplyExtra{})
	require.ErrorIs(t, err, ErrConflictingEmail)

	// 冲突消失后同一个令牌仍然可用，且只能用一次
	require.NoError(t, env.identity.DeleteIdentity(ctx, carol.ID))
	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationChangeEmail, ApplyExtra{}))
	assert.Equal(t, "carol@example.com", env.reload(t, alice.ID).Email)

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationChangeEmail, ApplyExtra{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDenylistKeepsTokenWhenPasswordMissing(t *testing.T) {
	env := newTestEnvWithDenylist(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	token, err := env.accounts.IssueResetPasswordToken(ctx, "alice@example.com")
	require.NoError(t, err)

	err = env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{})
	require.ErrorIs(t, err, ErrPasswordRequired)
	require.NoError(t, env.accounts.VerifyAndApply(ctx, token, alice, auth.OperationResetPassword, ApplyExtra{NewPassword: "after-retry"}))

	_, err = env.identity.Authenticate(ctx, "alice", "after-retry")
	assert.NoError(t, err)
}
