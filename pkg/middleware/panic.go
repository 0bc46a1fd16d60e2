// Package middleware holds the HTTP middleware chain: panic recovery,
// request size limits, gzip compression, CSRF header enforcement,
// request IDs and CORS.
package middleware

import (
	"net/http"

	"github.com/bitechdev/CrudSpec/pkg/logger"
)

const panicMiddlewareMethodName = "PanicMiddleware"

// PanicRecovery is a middleware that recovers from panics, logs the
// error, forwards it to the error tracker, and returns a 500.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rcv := recover(); rcv != nil {
				err := logger.HandlePanic(panicMiddlewareMethodName, rcv)
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
