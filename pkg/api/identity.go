// Package api exposes the sync engine over HTTP: manual triggers, run
// history, drift flags and manifest configuration.
package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserFromRequest resolves the caller identity recorded as triggered_by and
// resolved_by. A Bearer JWT subject claim wins, then the X-User header set
// by trusted proxies, then "system". Tokens are parsed without verification:
// the server sits behind an authenticating proxy and the identity is audit
// metadata, not an access decision.
func UserFromRequest(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		if sub := subjectClaim(token); sub != "" {
			return sub
		}
	}
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "system"
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func subjectClaim(tokenString string) string {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
