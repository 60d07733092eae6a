package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
)

// requireAuth rejects requests that do not carry the configured bearer
// token. A server without a token configured accepts everything.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "missing or invalid bearer token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics and a debug log line per request.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := timer.Duration()
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)

		log.WithComponent("api").Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("Request handled")
	})
}
