package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"

	"github.com/google/uuid"
)

type rateCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CurrencyService хранит валюты и отдаёт курсы через кеш Redis
type CurrencyService struct {
	db    *database.DB
	log   *logger.Logger
	cache rateCache
	ttl   time.Duration
}

// NewCurrencyService создаёт сервис валют. Без Redis курсы читаются из базы напрямую.
func NewCurrencyService(db *database.DB, log *logger.Logger, redisClient *redis.Client, cfg *config.CurrencyConfig) *CurrencyService {
	s := &CurrencyService{
		db:  db,
		log: log,
		ttl: 10 * time.Minute,
	}
	if redisClient != nil {
		s.cache = redisClient
	}
	if cfg != nil && cfg.CacheTTLMinutes > 0 {
		s.ttl = time.Duration(cfg.CacheTTLMinutes) * time.Minute
	}
	return s
}

// CreateCurrency создаёт валюту
func (s *CurrencyService) CreateCurrency(ctx context.Context, req *models.CreateCurrencyRequest) (*models.Currency, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("name is required", nil)
	}
	if req.Rate <= 0 {
		return nil, apperror.Validation("rate must be positive", nil)
	}

	c := &models.Currency{
		ID:      uuid.New(),
		Name:    req.Name,
		Code:    req.Code,
		Rate:    req.Rate,
		Display: req.Display,
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO currencies (id, name, code, rate, display) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.Name, c.Code, c.Rate, c.Display); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("currency already exists", err)
		}
		return nil, fmt.Errorf("failed to create currency: %w", err)
	}

	s.log.WithField("currency_id", c.ID).Info("Currency created")
	return c, nil
}

// GetCurrency возвращает валюту из базы
func (s *CurrencyService) GetCurrency(ctx context.Context, id uuid.UUID) (*models.Currency, error) {
	c := &models.Currency{}
	err := s.db.QueryRowContext(ctx, "SELECT id, name, code, rate, display FROM currencies WHERE id = $1", id).
		Scan(&c.ID, &c.Name, &c.Code, &c.Rate, &c.Display)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("currency not found", err)
		}
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return c, nil
}

// GetRate возвращает курс валюты; кешированный курс живёт ttl
func (s *CurrencyService) GetRate(ctx context.Context, currencyID uuid.UUID) (float64, error) {
	key := redis.GenerateKey(redis.KeyPrefixCurrency, currencyID.String())

	if s.cache != nil {
		var rate float64
		err := s.cache.Get(ctx, key, &rate)
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithError(err).Warn("Currency cache read failed")
		}
	}

	c, err := s.GetCurrency(ctx, currencyID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, c.Rate, s.ttl); err != nil {
			s.log.WithError(err).Warn("Currency cache write failed")
		}
	}
	return c.Rate, nil
}

// UpdateRate меняет курс и сбрасывает кеш. Уже созданные заказы сохраняют свой курс.
func (s *CurrencyService) UpdateRate(ctx context.Context, currencyID uuid.UUID, rate float64) (*models.Currency, error) {
	if rate <= 0 {
		return nil, apperror.Validation("rate must be positive", nil)
	}

	result, err := s.db.ExecContext(ctx, "UPDATE currencies SET rate = $1 WHERE id = $2", rate, currencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to update rate: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("currency not found", nil)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, redis.GenerateKey(redis.KeyPrefixCurrency, currencyID.String())); err != nil {
			s.log.WithError(err).Warn("Currency cache invalidation failed")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"currency_id": currencyID,
		"rate":        rate,
	}).Info("Currency rate updated")

	return s.GetCurrency(ctx, currencyID)
}
