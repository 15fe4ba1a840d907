package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/peopledeskhq/peopledesk/internal/database/testutil"
	"github.com/peopledeskhq/peopledesk/internal/models"
	"github.com/peopledeskhq/peopledesk/pkg/crypto"
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

func newTestService(t *testing.T, db *gorm.DB, clock *testClock) *Service {
	t.Helper()

	svc, err := NewService(db, Config{Clock: clock.Now})
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, db *gorm.DB, email, username string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword("Password123!")
	require.NoError(t, err)

	var role models.Role
	require.NoError(t, db.Where("name = ?", "USER").Take(&role).Error)

	company := models.Company{Name: username + " Co", Identifier: username, IsActive: true}
	require.NoError(t, db.Create(&company).Error)

	user := &models.User{
		Email:         email,
		Username:      username,
		Password:      hash,
		AccountStatus: models.AccountStatusActive,
		RoleID:        role.ID,
		CompanyID:     company.ID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestTrackFailedLoginAttemptLocksAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "lock@example.com", "lockme")

	for i := 0; i < DefaultMaxFailedAttempts-1; i++ {
		require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "test-agent"))
	}

	var fresh models.User
	require.NoError(t, db.Take(&fresh, "id = ?", user.ID).Error)
	require.Equal(t, models.AccountStatusActive, fresh.AccountStatus)

	require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "test-agent"))

	require.NoError(t, db.Take(&fresh, "id = ?", user.ID).Error)
	require.Equal(t, models.AccountStatusLocked, fresh.AccountStatus)
	require.NotNil(t, fresh.DeactivatedAt)
	require.NotNil(t, fresh.DeactivationReason)
	require.Equal(t, "Too many failed login attempts", *fresh.DeactivationReason)

	var attempts int64
	require.NoError(t, db.Model(&models.FailedLoginAttempt{}).Where("user_id = ?", user.ID).Count(&attempts).Error)
	require.Equal(t, int64(DefaultMaxFailedAttempts), attempts)
}

func TestTrackFailedLoginAttemptFollowsInjectedClock(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	// A clock far from wall time: attempt rows must be stamped from it,
	// not from the database's notion of now.
	clock := &testClock{current: time.Date(2031, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "clocked@example.com", "clocked")

	for i := 0; i < DefaultMaxFailedAttempts-1; i++ {
		require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "test-agent"))
	}

	// Let the early attempts age out of the rolling window.
	clock.Advance(DefaultLockoutDuration + time.Minute)

	require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "test-agent"))

	var fresh models.User
	require.NoError(t, db.Take(&fresh, "id = ?", user.ID).Error)
	require.Equal(t, models.AccountStatusActive, fresh.AccountStatus)

	for i := 0; i < DefaultMaxFailedAttempts-1; i++ {
		require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "test-agent"))
	}

	require.NoError(t, db.Take(&fresh, "id = ?", user.ID).Error)
	require.Equal(t, models.AccountStatusLocked, fresh.AccountStatus)
}

func TestTrackFailedLoginAttemptUnknownEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)

	require.NoError(t, svc.TrackFailedLoginAttempt(context.Background(), "ghost@example.com", "127.0.0.1", "test-agent"))

	var attempts int64
	require.NoError(t, db.Model(&models.FailedLoginAttempt{}).Count(&attempts).Error)
	require.Equal(t, int64(0), attempts)
}

func TestIsAccountLockedLazyUnlock(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "expire@example.com", "expireme")

	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "test-agent"))
	}

	locked, err := svc.IsAccountLocked(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, locked)

	clock.Advance(DefaultLockoutDuration + time.Minute)

	locked, err = svc.IsAccountLocked(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, locked)

	var fresh models.User
	require.NoError(t, db.Take(&fresh, "id = ?", user.ID).Error)
	require.Equal(t, models.AccountStatusActive, fresh.AccountStatus)
	require.Nil(t, fresh.DeactivatedAt)
	require.Nil(t, fresh.DeactivationReason)
}

func TestIsAccountLockedUnknownUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)

	locked, err := svc.IsAccountLocked(context.Background(), "no-such-user")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestCreateSessionReplacesCollidingToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "sessions@example.com", "sessions")

	first, err := svc.CreateSession(ctx, user.ID, "shared-token", "127.0.0.1", "agent-a")
	require.NoError(t, err)

	second, err := svc.CreateSession(ctx, user.ID, "shared-token", "10.0.0.1", "agent-b")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserSession{}).Where("token = ?", "shared-token").Count(&count).Error)
	require.Equal(t, int64(1), count)

	var remaining models.UserSession
	require.NoError(t, db.Take(&remaining, "token = ?", "shared-token").Error)
	require.Equal(t, "agent-b", remaining.UserAgent)
}

func TestGetUserSessionsExcludesExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "list@example.com", "lister")

	_, err := svc.CreateSession(ctx, user.ID, "token-live", "127.0.0.1", "agent")
	require.NoError(t, err)

	expired := models.UserSession{
		UserID:    user.ID,
		Token:     "token-expired",
		ExpiresAt: clock.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)

	sessions, err := svc.GetUserSessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "token-live", sessions[0].Token)
}

func TestInvalidateSession(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "revoke@example.com", "revoker")

	_, err := svc.CreateSession(ctx, user.ID, "token-revoke", "127.0.0.1", "agent")
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateSession(ctx, "token-revoke"))
	require.ErrorIs(t, svc.InvalidateSession(ctx, "token-revoke"), ErrSessionNotFound)
}

func TestInvalidateAllSessions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "revokeall@example.com", "revokeall")
	other := seedUser(t, db, "bystander@example.com", "bystander")

	for _, token := range []string{"token-1", "token-2", "token-3"} {
		_, err := svc.CreateSession(ctx, user.ID, token, "127.0.0.1", "agent")
		require.NoError(t, err)
	}
	_, err := svc.CreateSession(ctx, other.ID, "token-other", "127.0.0.1", "agent")
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateAllSessions(ctx, user.ID))

	var count int64
	require.NoError(t, db.Model(&models.UserSession{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Equal(t, int64(0), count)

	require.NoError(t, db.Model(&models.UserSession{}).Where("user_id = ?", other.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestTrackActivityAndPagination(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "activity@example.com", "activist")

	first, err := svc.TrackActivity(ctx, user.ID, models.ActivityUserRegistered,
		map[string]any{"username": user.Username}, "127.0.0.1", "agent")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	// Spread created_at so ordering is deterministic.
	base := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(first).Update("created_at", base).Error)

	for i := 1; i <= 3; i++ {
		entry, err := svc.TrackActivity(ctx, user.ID, models.ActivityUserLoggedIn,
			map[string]any{"username": user.Username}, "127.0.0.1", "agent")
		require.NoError(t, err)
		require.NoError(t, db.Model(entry).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	activities, err := svc.GetUserActivities(ctx, user.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Equal(t, models.ActivityUserLoggedIn, activities[0].Action)

	page2, err := svc.GetUserActivities(ctx, user.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.Equal(t, models.ActivityUserRegistered, page2[1].Action)

	all, err := svc.GetUserActivities(ctx, user.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestTrackActivityValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)

	_, err := svc.TrackActivity(context.Background(), "", "ACTION", nil, "", "")
	require.Error(t, err)

	_, err = svc.TrackActivity(context.Background(), "user-1", "", nil, "", "")
	require.Error(t, err)
}

func TestCleanupOldRecords(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := &testClock{current: time.Now()}
	svc := newTestService(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "cleanup@example.com", "cleaner")

	_, err := svc.CreateSession(ctx, user.ID, "token-live", "127.0.0.1", "agent")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.UserSession{
		UserID:    user.ID,
		Token:     "token-stale",
		ExpiresAt: clock.Now().Add(-time.Hour),
	}).Error)

	require.NoError(t, svc.TrackFailedLoginAttempt(ctx, user.Email, "127.0.0.1", "agent"))
	var attempt models.FailedLoginAttempt
	require.NoError(t, db.Take(&attempt, "user_id = ?", user.ID).Error)
	require.NoError(t, db.Model(&attempt).Update("created_at", clock.Now().Add(-25*time.Hour)).Error)

	removed, err := svc.CleanupOldRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	var sessions int64
	require.NoError(t, db.Model(&models.UserSession{}).Count(&sessions).Error)
	require.Equal(t, int64(1), sessions)

	var attempts int64
	require.NoError(t, db.Model(&models.FailedLoginAttempt{}).Count(&attempts).Error)
	require.Equal(t, int64(0), attempts)
}
