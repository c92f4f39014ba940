package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/api/respond"
)

// BearerAuth rejects requests whose Authorization header is not exactly
// "Bearer <token>".
func BearerAuth(token string, log zerolog.Logger) mux.MiddlewareFunc {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				log.Warn().Str("method", r.Method).Str("url", r.URL.Path).Str("remote", r.RemoteAddr).
					Msg("unauthorized access attempt")
				respond.WriteUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request and counts it by route template.
func AccessLog(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			requestsTotal.WithLabelValues(route, strconv.Itoa(m.Code)).Inc()

			ev := log.Info()
			if m.Code >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", m.Code).
				Int64("bytes", m.Written).
				Dur("duration", m.Duration).
				Msg("request")
		})
	}
}
