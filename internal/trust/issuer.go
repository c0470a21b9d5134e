// Package trust issues delegated credentials for registered actions.
//
// A trust lets a deferred execution of an action run with the authority of
// the caller who registered it. Trusts are HS256 JWTs carrying the caller's
// user and project ids; only the token id is stored with the action.
package trust

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/requestctx"
)

// MinKeyLength is the minimum HMAC signing key length in bytes.
const MinKeyLength = 32

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidToken is returned by Verify for malformed, forged, or expired tokens.
	ErrInvalidToken = errors.New("invalid trust token")

	// ErrMissingUser is returned when the request context carries no user id.
	ErrMissingUser = errors.New("trust requires a user id in request context")
)

// Issuer creates trusts for the caller on a request context.
type Issuer interface {
	CreateTrust(ctx context.Context) (*domain.Trust, error)
}

// Config configures a JWTIssuer.
type Config struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	Now        func() time.Time
}

// Claims are the JWT claims of a trust token.
type Claims struct {
	jwt.RegisteredClaims
	ProjectID string `json:"project_id"`
}

// JWTIssuer issues and verifies HS256 trust tokens.
type JWTIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ Issuer = (*JWTIssuer)(nil)

// NewJWTIssuer validates cfg and returns an issuer.
func NewJWTIssuer(cfg Config) (*JWTIssuer, error) {
	if len(cfg.SigningKey) < MinKeyLength {
		return nil, fmt.Errorf("trust signing key must be at least %d bytes", MinKeyLength)
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("trust ttl must not be negative")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "actionreg"
	}
	return &JWTIssuer{key: cfg.SigningKey, issuer: issuer, ttl: ttl, now: now}, nil
}

// CreateTrust issues a trust for the user and project on ctx.
func (i *JWTIssuer) CreateTrust(ctx context.Context) (*domain.Trust, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	userID := requestctx.UserIDFromContext(ctx)
	if userID == "" {
		return nil, ErrMissingUser
	}
	projectID := requestctx.ProjectIDFromContext(ctx)

	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)
	id := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ProjectID: projectID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign trust: %w", err)
	}

	log.Debug(log.CatTrust, "Issued trust", "id", id, "user", userID, "project", projectID)
	return &domain.Trust{
		ID:        id,
		Token:     token,
		ProjectID: projectID,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify parses token, checks its signature, issuer and validity window, and
// returns the trust it encodes.
func (i *JWTIssuer) Verify(token string) (*domain.Trust, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or sub", ErrInvalidToken)
	}

	return &domain.Trust{
		ID:        claims.ID,
		Token:     token,
		ProjectID: claims.ProjectID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
