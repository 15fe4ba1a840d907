package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/peopledeskhq/peopledesk/internal/models"
	"github.com/peopledeskhq/peopledesk/internal/security"
	"github.com/peopledeskhq/peopledesk/pkg/crypto"
	appErrors "github.com/peopledeskhq/peopledesk/pkg/errors"
	"github.com/peopledeskhq/peopledesk/pkg/logger"
	"github.com/peopledeskhq/peopledesk/pkg/mail"
	"github.com/peopledeskhq/peopledesk/pkg/metrics"
)

const (
	// DefaultResetTokenTTL bounds how long a password-reset link stays valid.
	DefaultResetTokenTTL = time.Hour

	// Reset and verification tokens are 32 random bytes, hex encoded.
	opaqueTokenBytes = 32

	defaultRoleName = "USER"
)

// ServiceConfig describes tunable behaviour for the auth service.
type ServiceConfig struct {
	FrontendURL   string
	ResetTokenTTL time.Duration
	Clock         func() time.Time
}

// Service orchestrates registration, login, token rotation, and the password
// reset and email verification flows.
type Service struct {
	db        *gorm.DB
	tokens    *TokenService
	security  *security.Service
	mailer    *mail.Dispatcher
	frontend  string
	resetTTL  time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// RegisterInput captures the details required to register a new account.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	CompanyID string // optional; a default company is provisioned when empty
	IPAddress string
	UserAgent string
}

// LoginInput carries the credentials presented at login.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// RefreshInput carries the refresh token presented for rotation.
type RefreshInput struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// ResetPasswordInput carries a reset token and the replacement password.
type ResetPasswordInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         models.UserSummary `json:"user"`
}

// NewService constructs the auth service with its collaborators. Dependencies
// are passed explicitly; nothing reaches for ambient state.
func NewService(db *gorm.DB, tokens *TokenService, securitySvc *security.Service, mailer *mail.Dispatcher, cfg ServiceConfig) (*Service, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if securitySvc == nil {
		return nil, errors.New("auth service: security service is required")
	}

	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &Service{
		db:       db,
		tokens:   tokens,
		security: securitySvc,
		mailer:   mailer,
		frontend: strings.TrimRight(cfg.FrontendURL, "/"),
		resetTTL: resetTTL,
		now:      clock,
		log:      logger.WithModule("auth"),
	}, nil
}

// Register creates a new account, provisioning a default company when none is
// supplied, and returns a fresh token pair plus the public user summary.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	username := strings.TrimSpace(input.Username)

	var existing models.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", email, username).
		Take(&existing).Error
	if err == nil {
		return nil, appErrors.ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("auth service: check existing user: %w", err)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	var role models.Role
	err = s.db.WithContext(ctx).Where("name = ?", defaultRoleName).Take(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrConfiguration.WithInternal(errors.New("default role USER not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: find default role: %w", err)
	}

	companyID := strings.TrimSpace(input.CompanyID)
	if companyID == "" {
		company := models.Company{
			Name:       fmt.Sprintf("%s's Company", input.FirstName),
			Identifier: strings.ToUpper(username),
			IsActive:   true,
		}
		if err := s.db.WithContext(ctx).Create(&company).Error; err != nil {
			return nil, fmt.Errorf("auth service: create default company: %w", err)
		}
		companyID = company.ID
	}

	user := models.User{
		Email:         email,
		Username:      username,
		Password:      hashed,
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		AccountStatus: models.AccountStatusActive,
		RoleID:        role.ID,
		CompanyID:     companyID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}
	user.Role = &role

	pair, err := s.tokens.GeneratePair(user.ID, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate tokens: %w", err)
	}

	if _, err := s.security.CreateSession(ctx, user.ID, pair.RefreshToken, input.IPAddress, input.UserAgent); err != nil {
		return nil, err
	}

	if _, err := s.security.TrackActivity(ctx, user.ID, models.ActivityUserRegistered,
		map[string]any{"username": user.Username}, input.IPAddress, input.UserAgent); err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))

	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Summarize(),
	}, nil
}

// Login authenticates the credentials and returns a fresh token pair. Unknown
// emails and wrong passwords produce the same error; a locked account is
// reported distinctly before the password is even compared.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	var user models.User
	err := s.db.WithContext(ctx).Preload("Role").Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if trackErr := s.security.TrackFailedLoginAttempt(ctx, email, input.IPAddress, input.UserAgent); trackErr != nil {
			s.log.Warn("failed-attempt tracking error", zap.Error(trackErr))
		}
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, appErrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	locked, err := s.security.IsAccountLocked(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
		return nil, appErrors.ErrAccountLocked
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		if trackErr := s.security.TrackFailedLoginAttempt(ctx, email, input.IPAddress, input.UserAgent); trackErr != nil {
			s.log.Warn("failed-attempt tracking error", zap.Error(trackErr))
		}
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, appErrors.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("auth service: update last login: %w", err)
	}

	pair, err := s.tokens.GeneratePair(user.ID, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate tokens: %w", err)
	}

	if _, err := s.security.CreateSession(ctx, user.ID, pair.RefreshToken, input.IPAddress, input.UserAgent); err != nil {
		return nil, err
	}

	if _, err := s.security.TrackActivity(ctx, user.ID, models.ActivityUserLoggedIn,
		map[string]any{"username": user.Username}, input.IPAddress, input.UserAgent); err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Summarize(),
	}, nil
}

// RefreshToken rotates a refresh token: the presented token's session is
// invalidated and a fresh pair is issued. No activity entry is recorded here,
// an intentional asymmetry with login and register.
func (s *Service) RefreshToken(ctx context.Context, input RefreshInput) (*AuthResponse, error) {
	claims, err := s.tokens.VerifyRefreshToken(strings.TrimSpace(input.RefreshToken))
	if err != nil {
		return nil, appErrors.ErrInvalidRefreshToken
	}

	var user models.User
	err = s.db.WithContext(ctx).Preload("Role").Take(&user, "id = ?", claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrRefreshUserGone
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if err := s.security.InvalidateSession(ctx, input.RefreshToken); err != nil {
		if errors.Is(err, security.ErrSessionNotFound) {
			return nil, appErrors.ErrInvalidRefreshToken
		}
		return nil, err
	}

	pair, err := s.tokens.GeneratePair(user.ID, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate tokens: %w", err)
	}

	if _, err := s.security.CreateSession(ctx, user.ID, pair.RefreshToken, input.IPAddress, input.UserAgent); err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Summarize(),
	}, nil
}

// RequestPasswordReset stores a fresh single-use reset token on the account
// and dispatches the reset link. Mail delivery is best effort; the caller
// always receives a generic success message once the token is persisted.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", appErrors.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("auth service: find user: %w", err)
	}

	token, err := crypto.GenerateHexToken(opaqueTokenBytes)
	if err != nil {
		return "", fmt.Errorf("auth service: generate reset token: %w", err)
	}

	expiry := s.now().Add(s.resetTTL)
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"reset_token":        token,
			"reset_token_expiry": expiry,
		}).Error; err != nil {
		return "", fmt.Errorf("auth service: store reset token: %w", err)
	}

	s.dispatchMail(user.Email, "Password Reset",
		fmt.Sprintf("Reset your password: %s/reset-password?token=%s", s.frontend, token))

	return "Password reset email sent", nil
}

// ResetPassword consumes a reset token and applies the new password. The
// token is nulled in the same update that sets the password, making it
// single-use by construction.
func (s *Service) ResetPassword(ctx context.Context, input ResetPasswordInput) (string, error) {
	if input.NewPassword != input.ConfirmPassword {
		return "", appErrors.ErrPasswordMismatch
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expiry > ?", input.Token, s.now()).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", appErrors.ErrTokenInvalidOrExpired
	}
	if err != nil {
		return "", fmt.Errorf("auth service: find reset token: %w", err)
	}

	hashed, err := crypto.HashPassword(input.NewPassword)
	if err != nil {
		return "", fmt.Errorf("auth service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"password":             hashed,
			"reset_token":          nil,
			"reset_token_expiry":   nil,
			"last_password_change": s.now(),
		}).Error; err != nil {
		return "", fmt.Errorf("auth service: apply new password: %w", err)
	}

	s.log.Info("password reset", zap.String("user_id", user.ID))

	return "Password has been reset", nil
}

// RequestEmailVerification stores a fresh verification token and dispatches
// the verification link. Verification tokens carry no expiry.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", appErrors.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("auth service: find user: %w", err)
	}

	if user.EmailVerified {
		return "", appErrors.ErrEmailAlreadyVerified
	}

	token, err := crypto.GenerateHexToken(opaqueTokenBytes)
	if err != nil {
		return "", fmt.Errorf("auth service: generate verification token: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("email_verification_token", token).Error; err != nil {
		return "", fmt.Errorf("auth service: store verification token: %w", err)
	}

	s.dispatchMail(user.Email, "Verify Email",
		fmt.Sprintf("Verify your email: %s/verify-email?token=%s", s.frontend, token))

	return "Verification email sent", nil
}

// VerifyEmail consumes a verification token, marking the address verified and
// nulling the token in the same update.
func (s *Service) VerifyEmail(ctx context.Context, token string) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email_verification_token = ?", token).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", appErrors.ErrTokenInvalidOrExpired
	}
	if err != nil {
		return "", fmt.Errorf("auth service: find verification token: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"email_verified":           true,
			"email_verification_token": nil,
		}).Error; err != nil {
		return "", fmt.Errorf("auth service: mark verified: %w", err)
	}

	return "Email verified successfully", nil
}

func (s *Service) dispatchMail(to, subject, body string) {
	if s.mailer == nil {
		return
	}
	s.mailer.Dispatch(mail.Message{To: to, Subject: subject, Body: body})
}
