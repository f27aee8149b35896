package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/auth"
)

// ActorIDHeader names the header carrying the authenticated caller identity.
// Authentication itself lives outside this service; a gateway sets the header.
const ActorIDHeader = "X-Actor-ID"

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs each HTTP request with its status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}).Info("http request")
	})
}

// ActorMiddleware propagates the caller identity from the request header into
// the context. Requests without a parseable actor proceed unauthenticated;
// the read services then simply return nothing visible.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(ActorIDHeader))
		if raw != "" {
			if actorID, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(auth.ContextWithActorID(r.Context(), actorID))
			}
		}
		next.ServeHTTP(w, r)
	})
}
