package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const parseTokenHeader = "X-Parse-Token"
const parseTokenQuery = "token"

// requireParseToken guards the inbound-mail webhook with the shared token
// embedded in the URL configured at the mail provider. An empty expected
// token rejects everything.
func requireParseToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(parseTokenHeader))
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get(parseTokenQuery))
			}
			if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "invalid parse token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
