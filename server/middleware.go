package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/inferq/auth"
	"github.com/jonwraymond/inferq/observe"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// errRateLimited is returned to throttled admin callers.
var errRateLimited = errors.New("server: admin rate limit exceeded")

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observe.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.opts.Logger.Debug(r.Context(), "http request",
			observe.Field{Key: "method", Value: r.Method},
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "status", Value: rec.status},
			observe.Field{Key: "duration_ms", Value: float64(time.Since(start).Microseconds()) / 1000},
		)
	})
}

// admin wraps an admin handler with rate limiting, authentication and
// authorization for resource and action.
func (s *Server) admin(resource auth.Resource, action auth.Action, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l := s.opts.AdminLimiter; l != nil && !l.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:     errRateLimited.Error(),
				Code:      "rate_limited",
				RequestID: observe.RequestID(r.Context()),
			})
			return
		}

		if s.opts.Authenticator == nil {
			h(w, r)
			return
		}

		id, err := s.opts.Authenticator.Authenticate(r.Context(), r.Header)
		if err != nil {
			if auth.IsRejection(err) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="inferq"`)
			}
			s.writeError(w, r, err)
			return
		}
		if err := s.opts.Policy.Authorize(id, resource, action); err != nil {
			s.opts.Logger.Warn(r.Context(), "admin access denied",
				observe.Field{Key: "principal", Value: id.Principal},
				observe.Field{Key: "resource", Value: string(resource)},
				observe.Field{Key: "action", Value: string(action)},
			)
			s.writeError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		s.opts.Logger.Info(ctx, "admin request",
			observe.Field{Key: "principal", Value: id.Principal},
			observe.Field{Key: "resource", Value: string(resource)},
			observe.Field{Key: "action", Value: string(action)},
		)
		h(w, r.WithContext(ctx))
	})
}
