package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrScopeMismatch is returned when a run token is presented for another run
	ErrScopeMismatch = errors.New("token scope mismatch")
)

const (
	tokenUseSession = "session"
	tokenUseRun     = "run"

	// runReadScope is the only permission a public run token carries
	runReadScope = "read:runs"
)

// Claims represents the custom claims in session and run tokens
type Claims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	OrgID    string `json:"org_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// SessionClaims are the validated claims of a session token. UserID is the
// identity provider subject, resolved to a membership by the middleware.
type SessionClaims struct {
	UserID    string
	OrgID     uuid.UUID
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config holds configuration for TokenService
type Config struct {
	Secret      []byte
	Issuer      string
	Audience    string
	RunTokenTTL time.Duration
}

// TokenService signs and validates HS256 tokens
type TokenService struct {
	secret      []byte
	issuer      string
	audience    string
	runTokenTTL time.Duration
	now         func() time.Time
}

// NewTokenService creates a token service
func NewTokenService(cfg Config) *TokenService {
	if cfg.RunTokenTTL == 0 {
		cfg.RunTokenTTL = time.Hour
	}
	return &TokenService{
		secret:      cfg.Secret,
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		runTokenTTL: cfg.RunTokenTTL,
		now:         time.Now,
	}
}

// IssueSessionToken signs a session token for a member of orgID
func (s *TokenService) IssueSessionToken(userID string, orgID uuid.UUID, email, name string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenUse: tokenUseSession,
		OrgID:    orgID.String(),
		Email:    email,
		Name:     name,
	}
	return s.sign(claims)
}

// ValidateToken validates a session token and returns parsed claims
func (s *TokenService) ValidateToken(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != tokenUseSession {
		return nil, fmt.Errorf("%w: token_use %q", ErrInvalidToken, claims.TokenUse)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid org_id: %v", ErrInvalidToken, err)
	}

	parsed := &SessionClaims{
		UserID: claims.Subject,
		OrgID:  orgID,
		Email:  claims.Email,
		Name:   claims.Name,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}
	return parsed, nil
}

// IssueRunToken signs a short-lived token that only grants reading the
// progress of one onboarding run
func (s *TokenService) IssueRunToken(runID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.runTokenTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   runID.String(),
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenUse: tokenUseRun,
		Scope:    runReadScope,
	}
	token, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateRunToken checks that the token is a run token scoped to runID
func (s *TokenService) ValidateRunToken(tokenString string, runID uuid.UUID) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	if claims.TokenUse != tokenUseRun || claims.Scope != runReadScope {
		return fmt.Errorf("%w: not a run token", ErrInvalidToken)
	}
	if claims.Subject != runID.String() {
		return ErrScopeMismatch
	}
	return nil
}

func (s *TokenService) sign(claims *Claims) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("token signing secret not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret not configured", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, s.issuer, claims.Issuer)
	}
	if s.audience != "" && !containsAudience(claims.Audience, s.audience) {
		return nil, ErrInvalidAudience
	}
	return claims, nil
}

func containsAudience(audiences jwt.ClaimStrings, target string) bool {
	for _, aud := range audiences {
		if aud == target {
			return true
		}
	}
	return false
}
