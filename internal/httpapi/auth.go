package httpapi

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"storefront/internal/xid"
)

const (
	SessionCookieName = "sf_session"
	sessionIssuer     = "storefront"
)

type sessionContextKey struct{}

func withSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sessionID)
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionContextKey{}).(string)
	return sid, ok && sid != ""
}

// SessionManager mints and verifies the anonymous visitor session cookie. The
// cookie is an HS256 JWT whose subject is the session id.
type SessionManager struct {
	signingKey []byte
	csrfKey    []byte
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
}

func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		signingKey: deriveKey(secret, "storefront session cookie"),
		csrfKey:    deriveKey(secret, "storefront csrf token"),
		ttl:        ttl,
		secure:     secure,
		now:        time.Now,
	}
}

// deriveKey expands the configured secret into a purpose-bound 32 byte key so
// the cookie and CSRF MACs never share key material.
func deriveKey(secret string, purpose string) []byte {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return []byte(secret)
	}
	return key
}

func (m *SessionManager) Issue() (string, string, error) {
	sessionID := xid.New("sess")
	now := m.now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(m.ttl)),
			Issuer:    sessionIssuer,
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

func (m *SessionManager) Parse(tokenStr string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.signingKey, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(sessionIssuer), jwtlib.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired session")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("invalid session subject")
	}
	return sub, nil
}

// Resolve returns the session id carried by the request, minting a new cookie
// when it is missing or no longer valid.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sid, err := m.Parse(cookie.Value); err == nil {
			return sid, nil
		}
	}

	sid, token, err := m.Issue()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}
