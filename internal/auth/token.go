package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"garantias.org/internal/apperr"
)

const (
	defaultIssuer    = "garantias"
	defaultAccessTTL = 15 * time.Minute
	tokenTypeAccess  = "access"
)

var (
	// ErrInvalidToken indicates the bearer token failed validation.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", apperr.ErrUnauthenticated)
	// ErrInactiveProfile indicates the token subject exists but is disabled.
	ErrInactiveProfile = fmt.Errorf("%w: profile is inactive", apperr.ErrUnauthenticated)

	errMissingSecret = errors.New("auth secret is not configured")
)

// Directory resolves user profiles by identifier.
type Directory interface {
	// Profile returns apperr.ErrNotFound when the user does not exist.
	Profile(ctx context.Context, userID string) (Profile, error)
	// Profiles returns the profiles that exist among userIDs, keyed by id.
	Profiles(ctx context.Context, userIDs []string) (map[string]Profile, error)
}

// Claims represents the JWT claims carried by access tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service verifies bearer tokens and resolves them to actors through the profile directory.
type Service struct {
	directory Directory
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service signing and verifying HS256 tokens with secret.
func NewService(directory Directory, secret string, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	s := &Service{
		directory: directory,
		secret:    []byte(secret),
		issuer:    defaultIssuer,
		accessTTL: defaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueToken signs an access token for userID. The token carries no role or region;
// those are read from the directory on every request.
func (s *Service) IssueToken(userID string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id is required", apperr.ErrValidation)
	}
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature and registered claims of token.
func (s *Service) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate verifies token and loads the current profile of its subject.
func (s *Service) Authenticate(ctx context.Context, token string) (Actor, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return Actor{}, err
	}
	profile, err := s.directory.Profile(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Actor{}, ErrInvalidToken
		}
		return Actor{}, err
	}
	if !profile.Active {
		return Actor{}, ErrInactiveProfile
	}
	return profile.Actor(), nil
}
