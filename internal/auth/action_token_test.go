package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCodec(t *testing.T, secret string, clock *fakeClock) *ActionTokenCodec {
	t.Helper()
	codec, err := NewActionTokenCodec([]byte(secret), "test", ActionTokenTTL{Confirm: time.Hour}, clock.Now)
	require.NoError(t, err)
	return codec
}

func TestActionTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, "s3cret", clock)

	token, expiry, err := codec.EncodeWithTTL(5, OperationChangeEmail, ActionPayload{NewEmail: "new@example.com"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), expiry)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, uint(5), claims.UserID)
	assert.Equal(t, OperationChangeEmail, claims.Operation)
	assert.Equal(t, "new@example.com", claims.NewEmail)
	assert.NotEmpty(t, claims.ID)
}

func TestActionTokenDefaultTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, "s3cret", clock)

	_, expiry, err := codec.Encode(1, OperationConfirm, ActionPayload{})
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), expiry)

	// 未配置的操作回退到一小时
	_, expiry, err = codec.Encode(1, OperationResetPassword, ActionPayload{})
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), expiry)
}

func TestActionTokenExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, "s3cret", clock)

	token, _, err := codec.EncodeWithTTL(5, OperationConfirm, ActionPayload{}, 0)
	require.NoError(t, err)

	// now == exp is still valid
	_, err = codec.Decode(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = codec.Decode(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidActionToken))
	assert.Equal(t, "expired", FailureReason(err))
}

func TestActionTokenRejectsForeignSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	signer := newTestCodec(t, "secret-a", clock)
	verifier := newTestCodec(t, "secret-b", clock)

	token, _, err := signer.Encode(5, OperationConfirm, ActionPayload{})
	require.NoError(t, err)

	_, err = verifier.Decode(token)
	require.ErrorIs(t, err, ErrInvalidActionToken)
	assert.Equal(t, "bad_signature", FailureReason(err))
}

func TestActionTokenRejectsTampering(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, "s3cret", clock)

	token, _, err := codec.Encode(5, OperationConfirm, ActionPayload{})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, ActionClaims{
		UserID:    6,
		Operation: OperationConfirm,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	forgedSigned, err := forged.SignedString([]byte("other"))
	require.NoError(t, err)
	forgedParts := strings.Split(forgedSigned, ".")
	tampered := strings.Join([]string{parts[0], forgedParts[1], parts[2]}, ".")

	_, err = codec.Decode(tampered)
	require.ErrorIs(t, err, ErrInvalidActionToken)
}

func TestActionTokenRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t, "s3cret", &fakeClock{t: time.Now()})

	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := codec.Decode(token)
		require.ErrorIs(t, err, ErrInvalidActionToken, token)
		assert.Equal(t, "malformed", FailureReason(err), token)
	}
}

func TestActionTokenRejectsNoneAlgorithm(t *testing.T) {
	codec := newTestCodec(t, "s3cret", &fakeClock{t: time.Now()})

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, ActionClaims{
		UserID:    5,
		Operation: OperationConfirm,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidActionToken)
}

func TestResolveSecret(t *testing.T) {
	secret, generated, err := ResolveSecret("  configured ")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, []byte("configured"), secret)

	a, generated, err := ResolveSecret("")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Len(t, a, 32)

	b, _, err := ResolveSecret("")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSignatureKeyUsesSignatureSegment(t *testing.T) {
	assert.Equal(t, SignatureKey("x.y.sig"), SignatureKey("other.header.sig"))
	assert.NotEqual(t, SignatureKey("x.y.sig"), SignatureKey("x.y.sig2"))
	assert.Len(t, SignatureKey("x.y.sig"), 64)
}

func TestMemoryDenylist(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	list := NewMemoryDenylist(clock.Now)
	ctx := context.Background()

	ok, err := list.Claim(ctx, "k", clock.t.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "first claim wins")

	ok, err = list.Claim(ctx, "k", clock.t.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second claim loses")

	clock.Advance(2 * time.Minute)
	ok, err = list.Claim(ctx, "k", clock.t.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "expired entry can be claimed again")

	require.NoError(t, list.Release(ctx, "k"))
	ok, err = list.Claim(ctx, "k", clock.t.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "released entry can be claimed again")
}

func TestMemoryDenylistConcurrentClaims(t *testing.T) {
	list := NewMemoryDenylist(nil)
	ctx := context.Background()
	until := time.Now().Add(time.Hour)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := list.Claim(ctx, "shared", until)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
