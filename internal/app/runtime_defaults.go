package app

import (
	"fmt"
	"strings"

	"github.com/peopledeskhq/peopledesk/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults ensures signing secrets are populated even when no
// configuration file is supplied. It returns a map describing which keys were
// generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.AccessSecret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate access token secret: %w", err)
		}
		cfg.Auth.JWT.AccessSecret = secret
		generated["auth.jwt.access_secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.JWT.RefreshSecret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate refresh token secret: %w", err)
		}
		cfg.Auth.JWT.RefreshSecret = secret
		generated["auth.jwt.refresh_secret"] = true
	}

	return generated, nil
}
