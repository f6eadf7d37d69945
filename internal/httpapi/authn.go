package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"accountsvc/internal/account"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth authenticates the bearer token and installs the resulting
// principal on the request context. Malformed entries in the perms claim
// are discarded; a token with no perms claim at all falls back to the
// store-resolved permission set.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, errMissingSecret) {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		var codes []int
		if claims.Perms != nil {
			codes = account.ParsePermissionCodes(*claims.Perms)
		} else if a.svc != nil {
			codes, err = a.svc.UserPermissionCodes(r.Context(), claims.Subject)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
		}

		principal := account.NewPrincipal(claims.Subject, claims.Username, codes)
		ctx := account.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
