package http

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"EnviroHelpBackend/pkg/logger"
	"EnviroHelpBackend/pkg/metrics"
)

// Greeting тело ответа на GET /
const Greeting = "EnviroHelp Backend Running 🚀"

// RootRoute единственный публичный маршрут
const RootRoute = "/"

// NewRouter создает роутер публичного сервера.
// Маршрут один: GET /. Всё остальное, включая другие методы на /, получает 404 с пустым телом.
func NewRouter(log logger.Logger) *mux.Router {
	h := &greetingHandler{log: log}

	// Пути не нормализуются: //, /./ и подобные получают 404, а не редирект на /
	r := mux.NewRouter().SkipClean(true)
	r.HandleFunc(RootRoute, h.Greet).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.NotFound)

	return r
}

// RouteResolver возвращает функцию, определяющую шаблон маршрута для метрик
func RouteResolver(router *mux.Router) metrics.RouteFunc {
	return func(r *http.Request) string {
		var match mux.RouteMatch
		if !router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
			return metrics.UnmatchedRoute
		}
		tpl, err := match.Route.GetPathTemplate()
		if err != nil {
			return metrics.UnmatchedRoute
		}
		return tpl
	}
}

type greetingHandler struct {
	log logger.Logger
}

// Greet отвечает приветствием
func (h *greetingHandler) Greet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, Greeting); err != nil {
		h.log.Warn("Failed to write greeting",
			logger.Error(err),
			logger.CtxField(r.Context()))
	}
}

// NotFound отвечает 404 с пустым телом
func (h *greetingHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("Route not found",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.CtxField(r.Context()))

	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNotFound)
}
