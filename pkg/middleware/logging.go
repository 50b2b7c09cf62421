package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"EnviroHelpBackend/pkg/logger"
	"EnviroHelpBackend/pkg/validation"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// Logging логирует все HTTP запросы и проставляет идентификатор запроса.
// Корректный входящий X-Request-ID сохраняется, иначе генерируется UUID.
func Logging(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if validation.ValidateRequestID(requestID) != nil {
				requestID = uuid.NewString()
			}

			r = r.WithContext(logger.WithRequestID(r.Context(), requestID))
			w.Header().Set(RequestIDHeader, requestID)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("Completed request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.String("remote_addr", r.RemoteAddr),
				logger.String("user_agent", r.UserAgent()),
				logger.String("request_id", requestID),
				logger.Int("status_code", wrapped.statusCode),
				logger.Int("bytes", wrapped.bytes),
				logger.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000))
		})
	}
}
