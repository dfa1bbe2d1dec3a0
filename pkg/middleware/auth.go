package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Messages written by the authentication gate.
const (
	MsgNoToken      = "NO TOKEN FOUND."
	MsgInvalidToken = "invalid or expired token"
	MsgForbidden    = "insufficient permissions"
)

var (
	// ErrNoToken means the request carried no credential at all.
	ErrNoToken = errors.New("no token")
	// ErrMalformedToken means a credential was present but not in the
	// expected form.
	ErrMalformedToken = errors.New("malformed token")
)

// Claims is the authenticated identity attached to a request.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenVerifier checks a raw token and returns its identity claims.
type TokenVerifier func(token string) (*Claims, error)

// TokenExtractor pulls the raw token out of a request. It returns ErrNoToken
// when nothing was sent and ErrMalformedToken for anything unusable.
type TokenExtractor func(r *http.Request) (string, error)

const bearerPrefix = "Bearer "

// BearerToken reads the token from an "Authorization: Bearer <token>" header.
// The prefix must match exactly.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMalformedToken
	}
	return token, nil
}

// CookieToken reads the token from the named cookie, falling back to a
// bearer header when the cookie is absent.
func CookieToken(name string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value, nil
		}
		return BearerToken(r)
	}
}

// Auth authenticates requests carrying a bearer token.
func Auth(verify TokenVerifier) func(http.Handler) http.Handler {
	return Authenticate(BearerToken, verify)
}

// Authenticate rejects requests whose token is missing or fails verification
// with 401, and otherwise stores the verified claims in the request context.
// Every verification failure produces the same response.
func Authenticate(extract TokenExtractor, verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extract(r)
			if errors.Is(err, ErrNoToken) {
				httputil.WriteMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", MsgNoToken)
				return
			}
			if err != nil {
				httputil.WriteMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", MsgInvalidToken)
				return
			}

			claims, err := verify(token)
			if err != nil || claims == nil || claims.ID == "" {
				httputil.WriteMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", MsgInvalidToken)
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("enduser.id", claims.ID),
				attribute.String("enduser.role", claims.Role),
			)

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.ID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only when the authenticated role
// equals role exactly. It must run after Auth; a request without claims is
// treated as unauthenticated.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				httputil.WriteMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", MsgNoToken)
				return
			}
			if claims.Role != role {
				httputil.WriteMessage(w, r, http.StatusForbidden, "FORBIDDEN", MsgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.ID
	}
	return ""
}

// RoleFromContext extracts the authenticated role from the request context.
func RoleFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Role
	}
	return ""
}
