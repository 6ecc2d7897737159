package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestSessionManagerRoundTrip(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, true)

	sid, token, err := manager.Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	got, err := manager.Parse(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != sid {
		t.Fatalf("expected %s, got %s", sid, got)
	}
}

func TestSessionManagerRejectsForeignAndExpiredTokens(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, false)
	other := NewSessionManager("another-secret-key-with-32-characters", time.Hour, false)

	_, token, err := other.Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := manager.Parse(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	_, token, err = manager.Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := manager.Parse(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestSessionManagerRejectsNoneAlgorithm(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, false)
	claims := jwtlib.RegisteredClaims{Subject: "sess-x", Issuer: sessionIssuer}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.Parse(token); err == nil {
		t.Fatalf("expected none algorithm to be rejected")
	}
}

func TestResolveReusesValidCookie(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, true)

	first := httptest.NewRecorder()
	sid, err := manager.Resolve(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	cookies := first.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("expected one secure http-only cookie, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	second := httptest.NewRecorder()
	again, err := manager.Resolve(second, req)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if again != sid {
		t.Fatalf("expected session %s to be reused, got %s", sid, again)
	}
	if len(second.Result().Cookies()) != 0 {
		t.Fatalf("expected no new cookie for a valid session")
	}
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, false)
	token := manager.CSRFToken("sess-a")

	if !manager.ValidCSRFToken("sess-a", token) {
		t.Fatalf("expected token to validate for its own session")
	}
	if manager.ValidCSRFToken("sess-b", token) {
		t.Fatalf("expected token to be rejected for another session")
	}

	manager.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	if manager.ValidCSRFToken("sess-a", token) {
		t.Fatalf("expected stale token to be rejected")
	}
}
