package sessions

import "errors"

var ErrNoSession = errors.New("no session cookie")

var ErrMalformedSessionID = errors.New("the signed session id is malformed")

var ErrInvalidSessionSignature = errors.New("the signed session id had an invalid signature")

var ErrSessionNotFound = errors.New("the session was not found")

var ErrSessionExpired = errors.New("the session has expired")

var ErrSecretTooShort = errors.New("session secret must be at least 32 bytes")
