package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Promo     PromoConfig     `json:"promo"`
	Currency  CurrencyConfig  `json:"currency"`
	Notifier  NotifierConfig  `json:"notifier"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Analytics AnalyticsConfig `json:"analytics"`
	Tracing   TracingConfig   `json:"tracing"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host                   string `json:"host"`
	Port                   string `json:"port"`
	User                   string `json:"user"`
	Password               string `json:"password"`
	DBName                 string `json:"db_name"`
	SSLMode                string `json:"ssl_mode"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `json:"conn_max_lifetime_minutes"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Orders        string `json:"orders"`
	Notifications string `json:"notifications"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// PromoConfig описывает генератор промокодов и политику одноразовых кодов
type PromoConfig struct {
	CodeLength       int  `json:"code_length"`
	MaxAttempts      int  `json:"max_attempts"`
	EnforceSingleUse bool `json:"enforce_single_use"`
}

// CurrencyConfig хранит настройки кеша курсов валют
type CurrencyConfig struct {
	CacheTTLMinutes int `json:"cache_ttl_minutes"`
}

// NotifierConfig описывает circuit breaker для отправки уведомлений
type NotifierConfig struct {
	MaxFailures    int `json:"max_failures"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

// RateLimitConfig описывает настройки rate limiting.
// Изменяющие запросы (POST/PUT/DELETE) считаются в отдельном окне с лимитом WriteRequests.
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WriteRequests int    `json:"write_requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
	FailOpen      bool   `json:"fail_open"`
}

// AnalyticsConfig описывает отчёты по продажам
type AnalyticsConfig struct {
	CacheTTLMinutes       int    `json:"cache_ttl_minutes"`
	DefaultTopLimit       int    `json:"default_top_limit"`
	DefaultGroupBy        string `json:"default_group_by"`
	MaxRangeDays          int    `json:"max_range_days"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// TracingConfig описывает экспорт спанов по OTLP/HTTP
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Endpoint    string  `json:"endpoint"`
	Insecure    bool    `json:"insecure"`
	ServiceName string  `json:"service_name"`
	Environment string  `json:"environment"`
	SampleRatio float64 `json:"sample_ratio"` // 0 или 1 = все трассы
}

// Load загружает конфигурацию из .env файла (если есть) и переменных окружения
func Load() *Config {
	// .env необязателен: в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnv("DB_PORT", "5432"),
			User:                   getEnv("DB_USER", "storefront_user"),
			Password:               getEnv("DB_PASSWORD", "storefront_pass"),
			DBName:                 getEnv("DB_NAME", "storefront"),
			SSLMode:                getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:           getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:           getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeMinutes: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "storefront"),
			Topics: Topics{
				Orders:        getEnv("KAFKA_TOPIC_ORDERS", "orders"),
				Notifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Promo: PromoConfig{
			CodeLength:       getEnvAsInt("PROMO_CODE_LENGTH", 15),
			MaxAttempts:      getEnvAsInt("PROMO_GENERATOR_MAX_ATTEMPTS", 1000),
			EnforceSingleUse: getEnvAsBool("PROMO_ENFORCE_SINGLE_USE", false),
		},
		Currency: CurrencyConfig{
			CacheTTLMinutes: getEnvAsInt("CURRENCY_CACHE_TTL_MINUTES", 10),
		},
		Notifier: NotifierConfig{
			MaxFailures:    getEnvAsInt("NOTIFIER_MAX_FAILURES", 5),
			TimeoutSeconds: getEnvAsInt("NOTIFIER_OPEN_TIMEOUT_SECONDS", 30),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WriteRequests: getEnvAsInt("RATE_LIMIT_WRITE_REQUESTS", 30),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
			FailOpen:      getEnvAsBool("RATE_LIMIT_FAIL_OPEN", true),
		},
		Analytics: AnalyticsConfig{
			CacheTTLMinutes:       getEnvAsInt("ANALYTICS_CACHE_TTL_MINUTES", 10),
			DefaultTopLimit:       getEnvAsInt("ANALYTICS_TOP_LIMIT", 5),
			DefaultGroupBy:        getEnv("ANALYTICS_GROUP_BY", "none"),
			MaxRangeDays:          getEnvAsInt("ANALYTICS_MAX_RANGE_DAYS", 365),
			RequestTimeoutSeconds: getEnvAsInt("ANALYTICS_TIMEOUT_SECONDS", 5),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "storefront"),
			Environment: getEnv("APP_ENV", "dev"),
			SampleRatio: getEnvAsFloat("TRACING_SAMPLE_RATIO", 1),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
