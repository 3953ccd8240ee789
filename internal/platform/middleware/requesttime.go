package middleware

import (
	"net/http"
	"time"

	"qplace/pkg/requestcontext"
)

// RequestTime stamps the request's arrival time into the context. Every
// operation within one request observes the same now, so a job's
// timestamps line up with the access log entry that accepted it.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
