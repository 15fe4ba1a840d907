package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token lifetimes applied when TokenConfig leaves them unset.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token classes embedded in the "typ" claim so a token of one class is never
// accepted in place of the other.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for every verification failure. Bad signature,
// malformed payload and expiry are deliberately indistinguishable.
var ErrInvalidToken = errors.New("token: invalid or expired")

// TokenConfig bundles the configuration required to build a TokenService.
// Access and refresh tokens are signed with distinct secrets so a leaked
// access-signing key cannot forge refresh tokens.
type TokenConfig struct {
	AccessSecret    string
	RefreshSecret   string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Clock           func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID    string `json:"uid"`
	RoleID    string `json:"rid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair holds a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService mints and verifies the two classes of signed tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService constructs a TokenService instance from the supplied configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("token: access secret must be provided")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("token: refresh secret must be provided")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}, nil
}

// GeneratePair mints a fresh access/refresh token pair for the user.
func (s *TokenService) GeneratePair(userID, roleID string) (TokenPair, error) {
	if userID == "" {
		return TokenPair{}, errors.New("token: user id is required")
	}

	access, err := s.generate(userID, roleID, TokenTypeAccess, s.accessSecret, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.generate(userID, roleID, TokenTypeRefresh, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken validates an access-class token and returns its claims.
func (s *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, TokenTypeAccess, s.accessSecret)
}

// VerifyRefreshToken validates a refresh-class token and returns its claims.
func (s *TokenService) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, TokenTypeRefresh, s.refreshSecret)
}

func (s *TokenService) generate(userID, roleID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()

	claims := &Claims{
		UserID:    userID,
		RoleID:    roleID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps tokens minted within the same second distinct;
			// iat alone truncates to whole seconds.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return signed, nil
}

func (s *TokenService) verify(tokenString, wantType string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}
