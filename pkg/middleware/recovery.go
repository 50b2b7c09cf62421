package middleware

import (
	"net/http"
	"runtime/debug"

	apperrors "EnviroHelpBackend/pkg/errors"
	"EnviroHelpBackend/pkg/logger"
)

// Recovery обрабатывает паники в обработчиках HTTP и отвечает 500 с JSON ошибкой.
// http.ErrAbortHandler пробрасывается дальше, чтобы net/http оборвал соединение.
func Recovery(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error("Panic recovered in HTTP handler",
					logger.Any("panic", rec),
					logger.String("stack_trace", string(debug.Stack())),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.CtxField(r.Context()))

				apperrors.WriteJSON(w, apperrors.New(apperrors.ErrInternal, "internal server error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
