package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/peopledeskhq/peopledesk/internal/database/testutil"
	"github.com/peopledeskhq/peopledesk/internal/models"
	"github.com/peopledeskhq/peopledesk/internal/security"
	"github.com/peopledeskhq/peopledesk/pkg/crypto"
)

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

func TestClearExpiredResetTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	now := time.Now()

	stale := seedUser(t, db, "stale@example.com", "stale")
	staleToken := "stale-token"
	staleExpiry := now.Add(-time.Hour)
	require.NoError(t, db.Model(stale).Updates(map[string]any{
		"reset_token":        staleToken,
		"reset_token_expiry": staleExpiry,
	}).Error)

	live := seedUser(t, db, "live@example.com", "live")
	liveToken := "live-token"
	liveExpiry := now.Add(time.Hour)
	require.NoError(t, db.Model(live).Updates(map[string]any{
		"reset_token":        liveToken,
		"reset_token_expiry": liveExpiry,
	}).Error)

	cleared, err := ClearExpiredResetTokens(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), cleared)

	var fresh models.User
	require.NoError(t, db.Take(&fresh, "id = ?", stale.ID).Error)
	require.Nil(t, fresh.ResetToken)
	require.Nil(t, fresh.ResetTokenExpiry)

	var freshLive models.User
	require.NoError(t, db.Take(&freshLive, "id = ?", live.ID).Error)
	require.NotNil(t, freshLive.ResetToken)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	now := time.Now()

	securitySvc, err := security.NewService(db, security.Config{})
	require.NoError(t, err)

	user := seedUser(t, db, "cleanup@example.com", "cleanup")

	require.NoError(t, db.Create(&models.UserSession{
		UserID:    user.ID,
		Token:     "token-expired",
		ExpiresAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.UserSession{
		UserID:    user.ID,
		Token:     "token-live",
		ExpiresAt: now.Add(time.Hour),
	}).Error)

	require.NoError(t, db.Model(user).Updates(map[string]any{
		"reset_token":        "expired-reset",
		"reset_token_expiry": now.Add(-time.Hour),
	}).Error)

	c := NewCleaner(db, securitySvc,
		WithNow(func() time.Time { return now }),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))

	var session models.UserSession
	err = db.Take(&session, "token = ?", "token-expired").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoError(t, db.Take(&session, "token = ?", "token-live").Error)

	var fresh models.User
	require.NoError(t, db.Take(&fresh, "id = ?", user.ID).Error)
	require.Nil(t, fresh.ResetToken)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	securitySvc, err := security.NewService(db, security.Config{})
	require.NoError(t, err)

	c := NewCleaner(db, securitySvc, WithSchedule("@hourly"))
	require.NoError(t, c.Start())

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerSweepsAfterStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	now := time.Now()

	securitySvc, err := security.NewService(db, security.Config{})
	require.NoError(t, err)

	user := seedUser(t, db, "shutdown@example.com", "shutdown")
	require.NoError(t, db.Create(&models.UserSession{
		UserID:    user.ID,
		Token:     "token-shutdown",
		ExpiresAt: now.Add(-time.Hour),
	}).Error)

	c := NewCleaner(db, securitySvc, WithNow(func() time.Time { return now }))
	require.NoError(t, c.Start())

	// The shutdown sequence: wait for the scheduler to drain, then run a
	// final sweep on a context that is still live.
	<-c.Stop().Done()
	require.NoError(t, c.RunOnce(context.Background()))

	var session models.UserSession
	err = db.Take(&session, "token = ?", "token-shutdown").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
