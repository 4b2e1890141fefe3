package httpapi

import (
	"context"
	"net/http"

	"pairduel/internal/store"
)

type playerContextKey struct{}

// PlayerAuth resolves the Bearer api key to a player and stashes it on the
// request context.
func (a *API) PlayerAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			prefix := "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
				metricAuthFailures.Add(1)
				writeErr(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			player, err := a.Store.GetPlayerByAPIKey(r.Context(), auth[len(prefix):])
			if err != nil {
				metricAuthFailures.Add(1)
				writeErr(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), playerContextKey{}, player)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PlayerFrom returns the authenticated player, nil outside PlayerAuth.
func PlayerFrom(ctx context.Context) *store.Player {
	p, _ := ctx.Value(playerContextKey{}).(*store.Player)
	return p
}

// AdminAuth guards operational routes. An empty configured key leaves them
// open.
func AdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && !checkAdminKey(r, adminKey) {
				writeErr(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkAdminKey(r *http.Request, adminKey string) bool {
	if r.Header.Get("X-Admin-Key") == adminKey {
		return true
	}
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	return len(auth) > len(prefix) && auth[:len(prefix)] == prefix && auth[len(prefix):] == adminKey
}
