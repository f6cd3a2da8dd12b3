// Package trace tags each request with an ID and reports its outcome.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// HeaderRequestID is echoed on every response and honoured on requests.
const HeaderRequestID = "X-Request-ID"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Completion describes a finished request.
type Completion struct {
	RequestID string
	ClientIP  string
	Status    int
	Duration  time.Duration
}

// Middleware assigns request IDs, captures status codes and hands each
// completion to onComplete.
type Middleware struct {
	extractIP  func(*http.Request) string
	onComplete func(context.Context, *http.Request, Completion)

	totalRequests atomic.Int64
	totalMicros   atomic.Int64
	serverErrors  atomic.Int64
}

type Metrics struct {
	TotalRequests         int64
	ServerErrors          int64
	AverageResponseMicros int64
}

func NewMiddleware(extractIP func(*http.Request) string, onComplete func(context.Context, *http.Request, Completion)) *Middleware {
	return &Middleware{extractIP: extractIP, onComplete: onComplete}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		m.totalRequests.Add(1)
		m.totalMicros.Add(elapsed.Microseconds())
		if rw.statusCode >= 500 {
			m.serverErrors.Add(1)
		}

		if m.onComplete != nil {
			c := Completion{RequestID: requestID, Status: rw.statusCode, Duration: elapsed}
			if m.extractIP != nil {
				c.ClientIP = m.extractIP(r)
			}
			m.onComplete(ctx, r, c)
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID returns the ID stored by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestIDFrom is GetRequestID for an *http.Request.
func RequestIDFrom(r *http.Request) string {
	return GetRequestID(r.Context())
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.totalRequests.Load()
	var avg int64
	if total > 0 {
		avg = m.totalMicros.Load() / total
	}
	return Metrics{
		TotalRequests:         total,
		ServerErrors:          m.serverErrors.Load(),
		AverageResponseMicros: avg,
	}
}
