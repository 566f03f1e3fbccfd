package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	buildVersion = "1.0.0"
)

var startedAt = time.Now()

// dependency внешний компонент витрины. Без critical-компонента сервис не готов,
// остальные при отказе переводят его в degraded.
type dependency struct {
	name     string
	critical bool
	check    func(ctx context.Context) error
}

// HealthHandler проверяет Postgres, Redis и брокеры Kafka.
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler собирает проверки. kafkaCheck может быть nil, тогда используется CheckKafkaHealth.
// Kafka не критична: заказы принимаются и без событий.
func NewHealthHandler(db DBHealth, redisClient RedisHealth, kafkaBrokers []string, kafkaCheck func([]string) error) *HealthHandler {
	if kafkaCheck == nil {
		kafkaCheck = CheckKafkaHealth
	}
	return &HealthHandler{
		deps: []dependency{
			{name: "database", critical: true, check: func(context.Context) error { return db.Health() }},
			{name: "redis", critical: true, check: func(ctx context.Context) error { return redisClient.Health(ctx) }},
			{name: "kafka", check: func(context.Context) error { return kafkaCheck(kafkaBrokers) }},
		},
	}
}

// ComponentStatus результат проверки одного компонента.
type ComponentStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	critical  bool
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// probe опрашивает все компоненты параллельно в пределах timeout.
func (h *HealthHandler) probe(ctx context.Context, timeout time.Duration) (string, map[string]ComponentStatus) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]ComponentStatus, len(h.deps))
	)
	for _, dep := range h.deps {
		wg.Add(1)
		go func(dep dependency) {
			defer wg.Done()
			started := time.Now()
			err := dep.check(ctx)
			res := ComponentStatus{Status: statusHealthy, LatencyMS: time.Since(started).Milliseconds(), critical: dep.critical}
			if err != nil {
				res.Status = statusUnhealthy
				res.Error = err.Error()
			}
			mu.Lock()
			results[dep.name] = res
			mu.Unlock()
		}(dep)
	}
	wg.Wait()

	overall := statusHealthy
	for _, res := range results {
		if res.Status == statusHealthy {
			continue
		}
		if res.critical {
			return statusUnhealthy, results
		}
		overall = statusDegraded
	}
	return overall, results
}

// Health GET /health. 503 только при отказе критичного компонента.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	overall, components := h.probe(r.Context(), 5*time.Second)

	code := http.StatusOK
	if overall == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, HealthResponse{
		Status:     overall,
		Components: components,
		Version:    buildVersion,
		Uptime:     time.Since(startedAt).Round(time.Second).String(),
	})
}

// Readiness GET /health/readiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	overall, components := h.probe(r.Context(), 2*time.Second)
	if overall == statusUnhealthy {
		for _, dep := range h.deps {
			if res := components[dep.name]; dep.critical && res.Status != statusHealthy {
				writeErrorResponse(w, http.StatusServiceUnavailable, dep.name+" not ready")
				return
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready", "mode": overall})
}

// Liveness GET /health/liveness, без обращения к зависимостям.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startedAt).Round(time.Second).String(),
	})
}

var errNoBrokers = errors.New("no kafka brokers configured")

// CheckKafkaHealth открывает клиент sarama и проверяет, что хотя бы один брокер отвечает.
func CheckKafkaHealth(brokers []string) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(client.Brokers()) == 0 {
		return errNoBrokers
	}
	return nil
}
