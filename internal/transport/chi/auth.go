package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerScheme = "Bearer "

// publicPaths are served without a key so probes and scrapers keep working.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// keyRing holds the accepted API keys.
type keyRing [][]byte

func newKeyRing(keys []string) keyRing {
	var ring keyRing
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ring = append(ring, []byte(k))
		}
	}
	return ring
}

// accepts compares token against every key so timing does not reveal which
// key, if any, matched.
func (ring keyRing) accepts(token string) bool {
	matched := 0
	for _, k := range ring {
		matched |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return matched == 1
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header
// or a message describing what is wrong with the header.
func bearerToken(r *http.Request) (token, problem string) {
	h := r.Header.Get("Authorization")
	switch {
	case h == "":
		return "", "missing authorization header"
	case !strings.HasPrefix(h, bearerScheme):
		return "", "authorization header must use Bearer scheme"
	}
	return h[len(bearerScheme):], ""
}

// BearerAuthMiddleware rejects requests whose bearer token is not one of
// apiKeys. Blank keys are dropped; if none remain the middleware is a no-op.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	ring := newKeyRing(apiKeys)
	return func(next http.Handler) http.Handler {
		if len(ring) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			token, problem := bearerToken(r)
			if problem == "" && !ring.accepts(token) {
				problem = "invalid api key"
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ragstore"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, problem)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
