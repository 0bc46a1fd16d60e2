package middleware

import (
	"context"
	"net/http"
	"time"
)

// NewRequestTimeout bounds every request's context with a deadline so
// long-running database work is cancelled server-side; handlers map
// the resulting context.DeadlineExceeded to a 504. A zero or negative
// duration disables the limit.
func NewRequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
