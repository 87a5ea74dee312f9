package middleware

import (
	"net/http"
	"strconv"

	"docstore/internal/httputil"
)

// Session resolves the calling user from the X-User-ID header and stores it
// in the request context. Real authentication lives in the perimeter in
// front of this service; by the time a request arrives here the identity is
// trusted, so all this layer does is parse and propagate it.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-User-ID")
			if raw == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing X-User-ID header")
				return
			}

			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid X-User-ID header")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, userID))
		})
	}
}
