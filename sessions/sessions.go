package sessions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the signed session id.
const CookieName = "session_id"

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

func newSessionID() string {
	return uuid.New().String()
}

func signature(sessionID string, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return mac.Sum(nil)
}

// SignSessionID returns "<id>.<base64url(hmac-sha256(id))>".
func SignSessionID(sessionID string, secret string) string {
	return fmt.Sprintf("%s.%s", sessionID, base64.URLEncoding.EncodeToString(signature(sessionID, secret)))
}

// VerifySessionID checks the signature of a signed session id and returns the
// bare id.
func VerifySessionID(signed string, secret string) (string, error) {
	sessionID, encodedSignature, err := splitSignedSessionID(signed)
	if err != nil {
		return "", err
	}
	decodedSignature, err := base64.URLEncoding.DecodeString(encodedSignature)
	if err != nil {
		return "", ErrInvalidSessionSignature
	}

	if !hmac.Equal(decodedSignature, signature(sessionID, secret)) {
		return "", ErrInvalidSessionSignature
	}
	return sessionID, nil
}

func splitSignedSessionID(signed string) (string, string, error) {
	parts := strings.Split(signed, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedSessionID
	}
	return parts[0], parts[1], nil
}

// SessionIDFromRequest returns the verified session id carried by the
// request cookie. ErrNoSession when there is no cookie.
func SessionIDFromRequest(r *http.Request, secret string) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}
	return VerifySessionID(c.Value, secret)
}
