package app

import (
	"github.com/peopledeskhq/peopledesk/internal/auth"
	"github.com/peopledeskhq/peopledesk/internal/security"
)

// TokenServiceConfig converts AuthConfig into the parameters expected by the token service.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:    c.JWT.AccessSecret,
		RefreshSecret:   c.JWT.RefreshSecret,
		Issuer:          c.JWT.Issuer,
		AccessTokenTTL:  c.JWT.AccessTTL,
		RefreshTokenTTL: c.JWT.RefreshTTL,
	}
}

// SecurityServiceConfig converts AuthConfig into security service parameters.
func (c AuthConfig) SecurityServiceConfig() security.Config {
	return security.Config{
		MaxFailedAttempts: c.Lockout.MaxAttempts,
		LockoutDuration:   c.Lockout.Duration,
		SessionExpiry:     c.Session.Expiry,
	}
}

// AuthServiceConfig converts the frontend and reset settings into auth service parameters.
func (c *Config) AuthServiceConfig() auth.ServiceConfig {
	return auth.ServiceConfig{
		FrontendURL:   c.Frontend.BaseURL,
		ResetTokenTTL: c.Auth.Reset.TokenTTL,
	}
}
