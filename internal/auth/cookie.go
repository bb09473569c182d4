package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the signed session ID.
const SessionCookieName = "_hotline_session"

// CookieCodec signs session IDs into cookie values. The cookie carries
// only the ID plus an HMAC; all session state lives server-side, so a
// leaked signing key cannot mint sessions that were never created.
type CookieCodec struct {
	secret []byte
	secure bool
	maxAge time.Duration
}

// NewCookieCodec creates a codec. The secret must be at least 32 bytes.
func NewCookieCodec(secret []byte, secure bool, maxAge time.Duration) (*CookieCodec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("cookie secret must be at least 32 bytes")
	}
	return &CookieCodec{secret: secret, secure: secure, maxAge: maxAge}, nil
}

func (c *CookieCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode produces the signed cookie value for a session ID.
func (c *CookieCodec) Encode(sessionID uuid.UUID) string {
	payload := sessionID.String()
	return payload + "." + c.sign(payload)
}

// Decode verifies a cookie value and returns the session ID it carries.
func (c *CookieCodec) Decode(value string) (uuid.UUID, error) {
	payload, sig, ok := strings.Cut(value, ".")
	if !ok {
		return uuid.Nil, ErrInvalidSession
	}

	if !hmac.Equal([]byte(sig), []byte(c.sign(payload))) {
		return uuid.Nil, ErrInvalidSession
	}

	sessionID, err := uuid.Parse(payload)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}

	return sessionID, nil
}

// SetCookie writes the session cookie on a response.
func (c *CookieCodec) SetCookie(w http.ResponseWriter, sessionID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    c.Encode(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.maxAge.Seconds()),
	})
}

// ClearCookie expires the session cookie.
func (c *CookieCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// SessionIDFromRequest extracts and verifies the session ID from the
// request's cookie, if present.
func (c *CookieCodec) SessionIDFromRequest(r *http.Request) (uuid.UUID, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}
	return c.Decode(cookie.Value)
}
