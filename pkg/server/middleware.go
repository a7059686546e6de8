package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/waverider/internal/logger"
)

// instrument records request metrics and a debug access log line.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.RecordRequestStart(r.Method)
		defer s.metrics.RecordRequestEnd(r.Method)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		s.metrics.RecordRequest(r.Method, status, duration)
		s.metrics.RecordBytesTransferred("out", int64(ww.BytesWritten()))

		logger.Debug("%s %s%s -> %d (%d bytes, %v)", r.Method, r.Host, r.URL.Path, status, ww.BytesWritten(), duration)
	})
}
