package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/peopledeskhq/peopledesk/internal/models"
	"github.com/peopledeskhq/peopledesk/pkg/logger"
	"github.com/peopledeskhq/peopledesk/pkg/metrics"
)

// Defaults applied when Config leaves a knob unset.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
	DefaultSessionExpiry     = 24 * time.Hour
	DefaultActivityPageSize  = 50

	failedAttemptRetention = 24 * time.Hour

	lockoutReason = "Too many failed login attempts"
)

// ErrSessionNotFound indicates that no session matches the provided token.
var ErrSessionNotFound = errors.New("security: session not found")

// Config describes tunable behaviour for the security service.
type Config struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	SessionExpiry     time.Duration
	Clock             func() time.Time
}

// Service tracks failed logins, drives account lockout, and owns the session
// and activity stores.
type Service struct {
	db          *gorm.DB
	maxAttempts int
	lockout     time.Duration
	sessionTTL  time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// NewService constructs a security service backed by the provided database.
func NewService(db *gorm.DB, cfg Config) (*Service, error) {
	if db == nil {
		return nil, errors.New("security service: db is required")
	}

	maxAttempts := cfg.MaxFailedAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxFailedAttempts
	}

	lockout := cfg.LockoutDuration
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}

	sessionTTL := cfg.SessionExpiry
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionExpiry
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &Service{
		db:          db,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		sessionTTL:  sessionTTL,
		now:         clock,
		log:         logger.WithModule("security"),
	}, nil
}

// TrackFailedLoginAttempt appends a failed-attempt row for the user behind the
// email and locks the account once the rolling-window count reaches the
// configured maximum. Unknown emails are a silent no-op so the caller's
// response cannot reveal account existence.
func (s *Service) TrackFailedLoginAttempt(ctx context.Context, email, ipAddress, userAgent string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("security service: find user: %w", err)
	}

	now := s.now()

	attempt := models.FailedLoginAttempt{
		Email:     email,
		UserID:    user.ID,
		IPAddress: strings.TrimSpace(ipAddress),
		UserAgent: strings.TrimSpace(userAgent),
		CreatedAt: now, // window math must follow the injected clock
	}
	if err := s.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return fmt.Errorf("security service: record failed attempt: %w", err)
	}

	var recent int64
	if err := s.db.WithContext(ctx).
		Model(&models.FailedLoginAttempt{}).
		Where("user_id = ? AND created_at >= ?", user.ID, now.Add(-s.lockout)).
		Count(&recent).Error; err != nil {
		return fmt.Errorf("security service: count recent attempts: %w", err)
	}

	if recent >= int64(s.maxAttempts) {
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"account_status":      models.AccountStatusLocked,
				"deactivated_at":      now,
				"deactivation_reason": lockoutReason,
			}).Error; err != nil {
			return fmt.Errorf("security service: lock account: %w", err)
		}

		metrics.AccountLockouts.Inc()
		s.log.Warn("account locked",
			zap.String("user_id", user.ID),
			zap.Int64("recent_attempts", recent),
		)
	}

	return nil
}

// IsAccountLocked reports whether the user's lockout window is still active.
// A locked account whose window has elapsed is lazily transitioned back to
// ACTIVE here rather than by a background timer. Unknown users report false.
func (s *Service) IsAccountLocked(ctx context.Context, userID string) (bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("id", "account_status", "deactivated_at").
		Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("security service: find user: %w", err)
	}

	if user.AccountStatus != models.AccountStatusLocked || user.DeactivatedAt == nil {
		return false, nil
	}

	lockoutEnd := user.DeactivatedAt.Add(s.lockout)
	if s.now().Before(lockoutEnd) {
		return true, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"account_status":      models.AccountStatusActive,
			"deactivated_at":      nil,
			"deactivation_reason": nil,
		}).Error; err != nil {
		return false, fmt.Errorf("security service: unlock account: %w", err)
	}

	return false, nil
}

// CreateSession inserts a session row for the token, first deleting any row
// holding the same token value. This guards against token collision rather
// than supporting rotation; rotation always mints a fresh token.
func (s *Service) CreateSession(ctx context.Context, userID, token, ipAddress, userAgent string) (*models.UserSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("security service: user id is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("security service: token is required")
	}

	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.UserSession{}).Error; err != nil {
		return nil, fmt.Errorf("security service: delete colliding session: %w", err)
	}

	session := &models.UserSession{
		UserID:    userID,
		Token:     token,
		IPAddress: strings.TrimSpace(ipAddress),
		UserAgent: strings.TrimSpace(userAgent),
		ExpiresAt: s.now().Add(s.sessionTTL),
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("security service: create session: %w", err)
	}

	metrics.SessionsCreated.Inc()

	return session, nil
}

// GetUserSessions returns the user's unexpired sessions, newest first.
func (s *Service) GetUserSessions(ctx context.Context, userID string) ([]models.UserSession, error) {
	var sessions []models.UserSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, s.now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("security service: list sessions: %w", err)
	}
	return sessions, nil
}

// InvalidateSession deletes the session row holding the token. Missing rows
// are an error, matching delete-by-unique-key semantics.
func (s *Service) InvalidateSession(ctx context.Context, token string) error {
	result := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.UserSession{})
	if result.Error != nil {
		return fmt.Errorf("security service: invalidate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InvalidateAllSessions deletes every session belonging to the user.
func (s *Service) InvalidateAllSessions(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserSession{}).Error; err != nil {
		return fmt.Errorf("security service: invalidate all sessions: %w", err)
	}
	return nil
}

// TrackActivity appends an entry to the user's activity trail.
func (s *Service) TrackActivity(ctx context.Context, userID, action string, metadata map[string]any, ipAddress, userAgent string) (*models.UserActivity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("security service: user id is required")
	}
	if strings.TrimSpace(action) == "" {
		return nil, errors.New("security service: action is required")
	}

	activity := &models.UserActivity{
		UserID:    userID,
		Action:    action,
		Metadata:  datatypes.JSONMap(metadata),
		IPAddress: strings.TrimSpace(ipAddress),
		UserAgent: strings.TrimSpace(userAgent),
	}

	if err := s.db.WithContext(ctx).Create(activity).Error; err != nil {
		return nil, fmt.Errorf("security service: track activity: %w", err)
	}

	return activity, nil
}

// GetUserActivities returns a page of the user's activity trail, newest first.
func (s *Service) GetUserActivities(ctx context.Context, userID string, limit, offset int) ([]models.UserActivity, error) {
	if limit <= 0 {
		limit = DefaultActivityPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var activities []models.UserActivity
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("security service: list activities: %w", err)
	}
	return activities, nil
}

// CleanupOldRecords deletes expired sessions and failed-attempt rows older
// than the retention window. Invocation cadence is owned by the caller.
func (s *Service) CleanupOldRecords(ctx context.Context) (int64, error) {
	now := s.now()

	sessions := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.UserSession{})
	if sessions.Error != nil {
		return 0, fmt.Errorf("security service: cleanup sessions: %w", sessions.Error)
	}

	attempts := s.db.WithContext(ctx).
		Where("created_at < ?", now.Add(-failedAttemptRetention)).
		Delete(&models.FailedLoginAttempt{})
	if attempts.Error != nil {
		return sessions.RowsAffected, fmt.Errorf("security service: cleanup failed attempts: %w", attempts.Error)
	}

	return sessions.RowsAffected + attempts.RowsAffected, nil
}
