package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "EnviroHelpBackend/pkg/errors"
)

// Статусы компонентов
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// HealthChecker интерфейс для проверки здоровья сервиса
type HealthChecker interface {
	Check() *HealthStatus
}

// ReadinessChecker сообщает, готов ли сервис принимать трафик
type ReadinessChecker interface {
	Ready() bool
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]Status `json:"services,omitempty"`
	Version   string            `json:"version,omitempty"`
}

// Status представляет статус компонента
type Status struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// Probe возвращает текущий статус одного компонента
type Probe func() Status

// Checker агрегирует статусы зарегистрированных компонентов
type Checker struct {
	version string

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewChecker создает новый Checker
func NewChecker(version string) *Checker {
	return &Checker{
		version: version,
		probes:  make(map[string]Probe),
	}
}

// Register добавляет компонент в проверку. Повторная регистрация заменяет пробу.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Check проверяет здоровье сервиса. Сервис здоров, если все компоненты в статусе up.
func (c *Checker) Check() *HealthStatus {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	probes := make([]Probe, len(names))
	for i, name := range names {
		probes[i] = c.probes[name]
	}
	c.mu.RUnlock()

	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   c.version,
	}

	if len(names) == 0 {
		return status
	}

	status.Services = make(map[string]Status, len(names))
	for i, name := range names {
		s := probes[i]()
		status.Services[name] = s
		if s.Status != StatusUp {
			status.Status = "unhealthy"
		}
	}

	return status
}

// Handler создает HTTP обработчик для health check эндпоинта.
// Нездоровый сервис отвечает 503.
func Handler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}

		status := checker.Check()

		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

// ReadyHandler создает HTTP обработчик для ready check эндпоинта
// Возвращает 200 если сервис готов принимать трафик, иначе 503
func ReadyHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}

		if !checker.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// LiveHandler создает HTTP обработчик для live check эндпоинта
// Возвращает 200 если процесс жив
func LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	apperrors.WriteJSON(w, apperrors.New(apperrors.ErrMethodNotAllowed, "method not allowed").WithDetails(r.Method))
	return false
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
