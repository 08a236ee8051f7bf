package auth

import (
	"net/http"
	"strings"
)

// CookieName is set by the admin dashboard after login.
const CookieName = "admin_token"

// ExtractAccessToken reads the admin token from the cookie, falling back to a
// bearer Authorization header. The scheme is matched case-insensitively.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
