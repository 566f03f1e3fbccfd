package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/redis"

	"github.com/google/uuid"
)

// RateScope разделяет бюджеты запросов: чтение витрины и изменяющие операции.
type RateScope string

const (
	ScopeRead  RateScope = "read"
	ScopeWrite RateScope = "write"
)

// ScopeForMethod относит GET/HEAD/OPTIONS к чтению, остальное к записи.
func ScopeForMethod(method string) RateScope {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeRead
	default:
		return ScopeWrite
	}
}

// RateDecision результат проверки лимита для одного запроса.
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateUsage текущее состояние окна клиента. ResetAt пуст, если окно ещё не открыто.
type RateUsage struct {
	Scope     RateScope  `json:"scope"`
	Limit     int64      `json:"limit"`
	Used      int64      `json:"used"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// RateLimiter считает запросы клиента в фиксированном окне Redis.
// Клиент определяется по X-User-ID, анонимные запросы считаются по IP.
type RateLimiter struct {
	redis    rateRedis
	log      *logger.Logger
	enabled  bool
	failOpen bool
	limits   map[RateScope]int64
	window   time.Duration
	prefix   string
}

type rateRedis interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// NewRateLimiter создаёт limiter; без Redis или при нулевых лимитах он выключен.
// Лимит записи не больше общего: нулевое значение означает общий лимит.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false, failOpen: true}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	write := cfg.WriteRequests
	if write <= 0 || write > cfg.Requests {
		write = cfg.Requests
	}

	return &RateLimiter{
		redis:    redisClient,
		log:      log,
		enabled:  true,
		failOpen: cfg.FailOpen,
		limits: map[RateScope]int64{
			ScopeRead:  int64(cfg.Requests),
			ScopeWrite: int64(write),
		},
		window: time.Duration(cfg.WindowSeconds) * time.Second,
		prefix: prefix,
	}
}

// Allow учитывает запрос в окне клиента и решает, пропускать ли его.
func (r *RateLimiter) Allow(ctx context.Context, key string, scope RateScope) (RateDecision, error) {
	limit := r.Limit(scope)
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	count, ttl, err := r.redis.IncrWindow(ctx, r.makeKey(key, scope), r.window)
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	return RateDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remainingOf(limit, count),
		ResetAt:   time.Now().Add(r.clampTTL(ttl)),
	}, nil
}

// Usage возвращает состояние окон клиента по обоим бюджетам.
func (r *RateLimiter) Usage(ctx context.Context, key string) ([]RateUsage, error) {
	usage := make([]RateUsage, 0, 2)
	for _, scope := range []RateScope{ScopeRead, ScopeWrite} {
		limit := r.Limit(scope)
		entry := RateUsage{Scope: scope, Limit: limit, Remaining: limit}
		if !r.enabled {
			usage = append(usage, entry)
			continue
		}

		count, ttl, err := r.redis.WindowState(ctx, r.makeKey(key, scope))
		if errors.Is(err, redis.ErrCacheMiss) {
			usage = append(usage, entry)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rate limiter usage failed: %w", err)
		}
		resetAt := time.Now().Add(r.clampTTL(ttl))
		entry.Used = count
		entry.Remaining = remainingOf(limit, count)
		entry.ResetAt = &resetAt
		usage = append(usage, entry)
	}
	return usage, nil
}

// clampTTL подставляет длину окна, если Redis не вернул срок ключа
func (r *RateLimiter) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > r.window {
		return r.window
	}
	return ttl
}

func (r *RateLimiter) makeKey(key string, scope RateScope) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, safeKey)
}

func remainingOf(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}

// Limit возвращает лимит окна для бюджета.
func (r *RateLimiter) Limit(scope RateScope) int64 {
	return r.limits[scope]
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// FailOpen сообщает, пропускать ли запросы при недоступном Redis.
func (r *RateLimiter) FailOpen() bool {
	return r.failOpen
}

// ClientKey возвращает ключ окна: пользователь, если передан корректный X-User-ID, иначе IP.
func ClientKey(r *http.Request) string {
	if id, err := uuid.Parse(strings.TrimSpace(r.Header.Get("X-User-ID"))); err == nil {
		return "user:" + id.String()
	}
	return "ip:" + ExtractClientIP(r)
}

// ExtractClientIP получает IP из заголовков прокси или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
