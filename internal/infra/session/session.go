// Package session issues and checks the signed tokens that bind a browser (or
// CLI) to its chat session. A token only proves which session it was issued
// for; there are no user accounts.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/technicia/chat-bfa/internal/domain"
	"github.com/technicia/chat-bfa/internal/infra/observability"
)

// CookieName is the cookie carrying the session token for the chat page.
const CookieName = "technicia_session"

// TokenHeader carries a refreshed token back to bearer clients.
const TokenHeader = "X-Session-Token"

const issuer = "technicia-chat-bfa"

type contextKey string

const sessionIDKey contextKey = "sessionID"

// Manager signs and verifies session tokens with HMAC-SHA256.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager. Tokens expire after ttl; Middleware
// renews them while the session is in use.
func NewManager(secret string, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Claims is what a verified token says.
type Claims struct {
	SessionID string
	ExpiresAt time.Time
}

// Issue returns a signed token for sessionID.
func (m *Manager) Issue(sessionID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its session id.
func (m *Manager) Parse(token string) (string, error) {
	c, err := m.Verify(token)
	if err != nil {
		return "", err
	}
	return c.SessionID, nil
}

// Verify checks a token's signature, issuer and expiry.
func (m *Manager) Verify(token string) (Claims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, &domain.ErrUnauthorized{Message: "session token expired"}
		}
		return Claims{}, &domain.ErrUnauthorized{Message: "invalid session token"}
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, &domain.ErrUnauthorized{Message: "invalid session token"}
	}
	return Claims{SessionID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// NeedsRefresh reports whether a token is past half its lifetime.
func (m *Manager) NeedsRefresh(c Claims) bool {
	return c.ExpiresAt.Sub(m.now()) < m.ttl/2
}

// SetCookie stores token in the session cookie for the token lifetime.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware rejects requests without a valid session token and injects the
// session id into the request context. onError writes the rejection.
//
// A token past half its lifetime is renewed: the new one is returned in
// TokenHeader and, when the request came with the cookie, in the cookie too.
func Middleware(m *Manager, logger *zap.Logger, onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				logger.Debug("session: missing token", zap.String("path", r.URL.Path))
				onError(w, &domain.ErrUnauthorized{Message: "session token required"})
				return
			}

			claims, err := m.Verify(token)
			if err != nil {
				logger.Debug("session: rejected token", zap.String("path", r.URL.Path), zap.Error(err))
				onError(w, err)
				return
			}

			if m.NeedsRefresh(claims) {
				m.renew(w, r, claims.SessionID, token, logger)
			}

			ctx := WithSessionID(r.Context(), claims.SessionID)
			observability.AnnotateSession(ctx, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *Manager) renew(w http.ResponseWriter, r *http.Request, sessionID, old string, logger *zap.Logger) {
	fresh, err := m.Issue(sessionID)
	if err != nil {
		logger.Warn("session: token renewal failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	w.Header().Set(TokenHeader, fresh)
	if c, err := r.Cookie(CookieName); err == nil && c.Value == old {
		m.SetCookie(w, fresh)
	}
	logger.Debug("session: token renewed", zap.String("session_id", sessionID))
}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// IDFromContext extracts the session id injected by Middleware.
func IDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}
