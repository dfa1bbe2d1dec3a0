package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/middleware"
)

var (
	// ErrConfiguration means the token service cannot sign the requested
	// kind of token. It is only returned at startup or for a programming
	// error, never for client input.
	ErrConfiguration = errors.New("token service misconfigured")

	// ErrInvalidToken is returned for every verification failure. The
	// specific check that failed is deliberately not exposed.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Kind selects the secret, claim shape and lifetime of a token.
type Kind int

const (
	KindAccess Kind = iota + 1
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TokenConfig holds the signing secrets and lifetimes. Secrets must be
// non-empty and distinct.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the identity decoded from a verified token. Refresh tokens only
// carry ID.
type Claims struct {
	ID    string
	Email string
	Role  string
}

type accessClaims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access and refresh tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService validates cfg and returns a ready service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	switch {
	case cfg.AccessSecret == "":
		return nil, fmt.Errorf("%w: access secret is empty", ErrConfiguration)
	case cfg.RefreshSecret == "":
		return nil, fmt.Errorf("%w: refresh secret is empty", ErrConfiguration)
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrConfiguration)
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, fmt.Errorf("%w: token lifetimes must be positive", ErrConfiguration)
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// RefreshTTL is the lifetime of refresh tokens, used for the cookie Max-Age.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Issue signs a token of the given kind for user.
func (s *TokenService) Issue(user *domain.User, kind Kind) (string, error) {
	now := s.now().UTC()

	var (
		claims jwt.Claims
		secret []byte
	)
	switch kind {
	case KindAccess:
		claims = &accessClaims{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    s.issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			},
		}
		secret = s.accessSecret
	case KindRefresh:
		claims = &refreshClaims{
			UserID: user.ID,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			},
		}
		secret = s.refreshSecret
	default:
		return "", fmt.Errorf("%w: unknown token kind %s", ErrConfiguration, kind)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and, for access tokens, the
// issuer. Any failure yields ErrInvalidToken.
func (s *TokenService) Verify(token string, kind Kind) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}

	switch kind {
	case KindAccess:
		claims := &accessClaims{}
		opts = append(opts, jwt.WithIssuer(s.issuer))
		if err := s.parse(token, claims, s.accessSecret, opts); err != nil {
			return nil, err
		}
		return &Claims{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
	case KindRefresh:
		claims := &refreshClaims{}
		if err := s.parse(token, claims, s.refreshSecret, opts); err != nil {
			return nil, err
		}
		return &Claims{ID: claims.UserID}, nil
	default:
		return nil, ErrInvalidToken
	}
}

type subjectClaims interface {
	jwt.Claims
	subject() string
}

func (c *accessClaims) subject() string  { return c.UserID }
func (c *refreshClaims) subject() string { return c.UserID }

func (s *TokenService) parse(token string, claims subjectClaims, secret []byte, opts []jwt.ParserOption) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.subject() == "" {
		return ErrInvalidToken
	}
	return nil
}

// Verifier adapts Verify to the middleware's verifier signature.
func (s *TokenService) Verifier(kind Kind) middleware.TokenVerifier {
	return func(token string) (*middleware.Claims, error) {
		c, err := s.Verify(token, kind)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{ID: c.ID, Email: c.Email, Role: c.Role}, nil
	}
}
