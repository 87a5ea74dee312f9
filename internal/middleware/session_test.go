package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"docstore/internal/httputil"
)

func TestSessionMiddleware(t *testing.T) {
	var gotUser int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = httputil.GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Session()(next)

	tests := []struct {
		name   string
		header string
		status int
		user   int64
	}{
		{"valid", "42", http.StatusOK, 42},
		{"missing", "", http.StatusUnauthorized, 0},
		{"garbage", "abc", http.StatusUnauthorized, 0},
		{"non-positive", "0", http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = 0
			r := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				r.Header.Set("X-User-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, r)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if gotUser != tt.user {
				t.Errorf("user id = %d, want %d", gotUser, tt.user)
			}
		})
	}
}
