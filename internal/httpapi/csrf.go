package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// csrfTokenForHour computes an HMAC-SHA256 token bound to the session id and
// the given hour bucket (Unix time truncated to the hour).
func (m *SessionManager) csrfTokenForHour(sessionID string, hourBucket int64) string {
	h := hmac.New(sha256.New, m.csrfKey)
	fmt.Fprintf(h, "%s|%d", sessionID, hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// CSRFToken returns a token valid for the current hour bucket.
func (m *SessionManager) CSRFToken(sessionID string) string {
	bucket := m.now().UTC().Truncate(time.Hour).Unix()
	return m.csrfTokenForHour(sessionID, bucket)
}

// ValidCSRFToken accepts tokens from the current or previous hour bucket,
// giving a 2-hour validity window.
func (m *SessionManager) ValidCSRFToken(sessionID string, token string) bool {
	if token == "" || sessionID == "" {
		return false
	}
	current := m.now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(m.csrfTokenForHour(sessionID, current))) ||
		hmac.Equal([]byte(token), []byte(m.csrfTokenForHour(sessionID, current-3600)))
}
