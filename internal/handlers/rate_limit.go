package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/services"
)

// MiddlewareLimiter то, что нужно middleware от rate limiter.
type MiddlewareLimiter interface {
	Allow(ctx context.Context, key string, scope services.RateScope) (services.RateDecision, error)
	Enabled() bool
	FailOpen() bool
}

// RateLimitStatusProvider добавляет чтение окна без его расхода.
type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Usage(ctx context.Context, key string) ([]services.RateUsage, error)
}

// RateLimitHandler отдаёт клиенту состояние его окон.
type RateLimitHandler struct {
	limiter RateLimitStatusProvider
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

func NewRateLimitHandler(limiter RateLimitStatusProvider, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		log:     log,
		cfg:     cfg,
	}
}

// Status GET /api/rate-limit/status. Запрос к статусу сам не расходует окно.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.limiter == nil || !h.limiter.Enabled() {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
		})
		return
	}

	key := services.ClientKey(r)
	usage, err := h.limiter.Usage(r.Context(), key)
	if err != nil {
		h.log.WithError(err).WithField("key", key).Error("Failed to fetch rate limit usage")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
		return
	}

	resp := map[string]interface{}{
		"enabled":   true,
		"key":       key,
		"fail_open": h.limiter.FailOpen(),
		"scopes":    usage,
	}
	if h.cfg != nil {
		resp["window_seconds"] = h.cfg.WindowSeconds
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// RateLimitMiddleware считает запрос в бюджете чтения или записи по методу.
// Если Redis недоступен, решает режим fail-open: пропустить запрос или ответить 503.
func RateLimitMiddleware(limiter MiddlewareLimiter, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil || !limiter.Enabled() {
			next(w, r)
			return
		}

		key := services.ClientKey(r)
		scope := services.ScopeForMethod(r.Method)
		decision, err := limiter.Allow(r.Context(), key, scope)
		if err != nil {
			entry := log.WithError(err).WithFields(map[string]interface{}{
				"key":   key,
				"scope": scope,
			})
			if limiter.FailOpen() {
				entry.Warn("Rate limiter unavailable, request passed")
				next(w, r)
				return
			}
			entry.Error("Rate limiter unavailable")
			writeErrorResponse(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		w.Header().Set("X-RateLimit-Scope", string(scope))
		if !decision.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			if !decision.ResetAt.IsZero() {
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(decision), 10))
			}
			writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next(w, r)
	}
}

func retryAfterSeconds(d services.RateDecision) int64 {
	secs := int64(time.Until(d.ResetAt).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}
