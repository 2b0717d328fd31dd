package auth

import (
	"net/http"
	"regexp"
)

var bearerRegexp = regexp.MustCompile(`^(?i:Bearer)\s+(.+)$`)

// BearerToken extracts the token from an Authorization header of the
// form "Bearer <token>". The scheme match is case-insensitive, as is
// the header name lookup.
func BearerToken(h http.Header) (string, bool) {
	raw := h.Get("Authorization")
	if raw == "" {
		return "", false
	}
	m := bearerRegexp.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}
