package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestTokenService(t *testing.T, clock *testClock) *TokenService {
	t.Helper()

	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "test-suite",
		Clock:         clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceValidatesSecrets(t *testing.T) {
	_, err := NewTokenService(TokenConfig{RefreshSecret: "refresh"})
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{AccessSecret: "access"})
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{AccessSecret: "same", RefreshSecret: "same"})
	require.Error(t, err)
}

func TestGeneratePairAndVerify(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	pair, err := svc.GeneratePair("user-1", "role-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", access.UserID)
	require.Equal(t, "role-1", access.RoleID)
	require.Equal(t, TokenTypeAccess, access.TokenType)
	require.Equal(t, "test-suite", access.Issuer)

	refresh, err := svc.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", refresh.UserID)
	require.Equal(t, TokenTypeRefresh, refresh.TokenType)
}

func TestGeneratePairsDistinctAtSameInstant(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	// The clock never moves between the two mints; uniqueness must not
	// depend on timestamp granularity.
	first, err := svc.GeneratePair("user-1", "role-1")
	require.NoError(t, err)
	second, err := svc.GeneratePair("user-1", "role-1")
	require.NoError(t, err)

	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := svc.VerifyRefreshToken(first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	other, err := svc.VerifyRefreshToken(second.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, other.ID)
}

func TestGeneratePairRequiresUserID(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	_, err := svc.GeneratePair("", "role-1")
	require.Error(t, err)
}

func TestVerifyRejectsWrongTokenClass(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	pair, err := svc.GeneratePair("user-1", "role-1")
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyAccessToken(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredTokens(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	pair, err := svc.GeneratePair("user-1", "role-1")
	require.NoError(t, err)

	clock.Advance(DefaultAccessTokenTTL + time.Minute)

	_, err = svc.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// The refresh token outlives the access token by design.
	_, err = svc.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	clock.Advance(DefaultRefreshTokenTTL)

	_, err = svc.VerifyRefreshToken(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	other, err := NewTokenService(TokenConfig{
		AccessSecret:  "other-access-secret",
		RefreshSecret: "other-refresh-secret",
		Issuer:        "test-suite",
		Clock:         clock.Now,
	})
	require.NoError(t, err)

	pair, err := other.GeneratePair("user-1", "role-1")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	other, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "someone-else",
		Clock:         clock.Now,
	})
	require.NoError(t, err)

	pair, err := other.GeneratePair("user-1", "role-1")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	clock := &testClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	_, err := svc.VerifyAccessToken("")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyAccessToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
