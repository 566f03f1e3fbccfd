package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// UsagePolicy решает, можно ли привязать промокод к заказу.
type UsagePolicy interface {
	CheckUsage(ctx context.Context, q querier, promo *models.PromoCode, orderID uuid.UUID) error
}

// unrestrictedUsage не ограничивает повторное применение: single_use только декларируется.
type unrestrictedUsage struct{}

func (unrestrictedUsage) CheckUsage(context.Context, querier, *models.PromoCode, uuid.UUID) error {
	return nil
}

// singleUsePolicy запрещает одноразовый код, уже привязанный к другому живому заказу.
type singleUsePolicy struct{}

func (singleUsePolicy) CheckUsage(ctx context.Context, q querier, promo *models.PromoCode, orderID uuid.UUID) error {
	if promo.ReuseKind != models.ReuseKindSingleUse {
		return nil
	}

	query := `
		SELECT COUNT(*) FROM orders
		WHERE promo_code = $1 AND id <> $2 AND status <> $3
	`
	var used int
	if err := q.QueryRowContext(ctx, query, promo.Code, orderID, models.OrderStatusCancelled).Scan(&used); err != nil {
		return fmt.Errorf("failed to check promo usage: %w", err)
	}
	if used > 0 {
		return apperror.Conflict("promo code has already been used", nil)
	}
	return nil
}

// NewUsagePolicy возвращает политику по флагу конфигурации.
func NewUsagePolicy(enforceSingleUse bool) UsagePolicy {
	if enforceSingleUse {
		return singleUsePolicy{}
	}
	return unrestrictedUsage{}
}

// PromoService управляет промокодами: CRUD, проверка действия и генерация.
type PromoService struct {
	db          *database.DB
	log         *logger.Logger
	policy      UsagePolicy
	codeLength  int
	maxAttempts int
	now         func() time.Time
	random      func(n int) (string, error)
}

// NewPromoService создаёт сервис промокодов.
func NewPromoService(db *database.DB, log *logger.Logger, cfg *config.PromoConfig) *PromoService {
	s := &PromoService{
		db:          db,
		log:         log,
		policy:      unrestrictedUsage{},
		codeLength:  defaultCodeLength,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		random:      randomCode,
	}
	if cfg != nil {
		s.policy = NewUsagePolicy(cfg.EnforceSingleUse)
		if cfg.CodeLength > 0 {
			s.codeLength = cfg.CodeLength
		}
		if cfg.MaxAttempts > 0 {
			s.maxAttempts = cfg.MaxAttempts
		}
	}
	return s
}

// CreatePromoCode создаёт новый промокод.
func (s *PromoService) CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error) {
	if req == nil || req.Code == "" {
		return nil, apperror.Validation("code is required", nil)
	}
	reuse := req.ReuseKind
	if reuse == "" {
		reuse = models.ReuseKindReusable
	}
	start, end := models.CalendarDay(req.StartDate), models.CalendarDay(req.EndDate)
	if err := validatePromoCodePayload(req.DiscountKind, reuse, start, end); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	now := s.now()
	promo := &models.PromoCode{
		Code:          req.Code,
		DiscountKind:  req.DiscountKind,
		DiscountValue: req.DiscountValue,
		ReuseKind:     reuse,
		Active:        req.Active,
		StartDate:     start,
		EndDate:       end,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := insertPromoCode(ctx, s.db, promo); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("promo code already exists", err)
		}
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}

	s.log.WithField("promo_code", promo.Code).Info("Promo code created")
	return promo, nil
}

func insertPromoCode(ctx context.Context, q querier, promo *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, discount_kind, discount_value, reuse_kind, active, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query, promo.Code, promo.DiscountKind, promo.DiscountValue, promo.ReuseKind,
		promo.Active, promo.StartDate, promo.EndDate, promo.CreatedAt, promo.UpdatedAt)
	return err
}

// UpdatePromoCode обновляет параметры промокода.
func (s *PromoService) UpdatePromoCode(ctx context.Context, code string, req *models.UpdatePromoCodeRequest) (*models.PromoCode, error) {
	reuse := req.ReuseKind
	if reuse == "" {
		reuse = models.ReuseKindReusable
	}
	start, end := models.CalendarDay(req.StartDate), models.CalendarDay(req.EndDate)
	if err := validatePromoCodePayload(req.DiscountKind, reuse, start, end); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	query := `
		UPDATE promo_codes
		SET discount_kind = $1, discount_value = $2, reuse_kind = $3, active = $4, start_date = $5, end_date = $6, updated_at = $7
		WHERE code = $8
	`

	result, err := s.db.ExecContext(ctx, query, req.DiscountKind, req.DiscountValue, reuse, req.Active, start, end, s.now(), code)
	if err != nil {
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("promo code not found", nil)
	}

	return s.GetPromoCode(ctx, code)
}

// DeletePromoCode удаляет промокод. Код, привязанный к заказу, удалить нельзя.
func (s *PromoService) DeletePromoCode(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM promo_codes WHERE code = $1", code)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperror.Conflict("promo code is attached to orders", err)
		}
		return fmt.Errorf("failed to delete promo code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("promo code not found", nil)
	}
	return nil
}

// GetPromoCode возвращает промокод по коду.
func (s *PromoService) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return loadPromoCode(ctx, s.db, code)
}

const promoColumns = "code, discount_kind, discount_value, reuse_kind, active, start_date, end_date, created_at, updated_at"

func loadPromoCode(ctx context.Context, q querier, code string) (*models.PromoCode, error) {
	promo := &models.PromoCode{}
	err := q.QueryRowContext(ctx, "SELECT "+promoColumns+" FROM promo_codes WHERE code = $1", code).Scan(
		&promo.Code, &promo.DiscountKind, &promo.DiscountValue, &promo.ReuseKind,
		&promo.Active, &promo.StartDate, &promo.EndDate, &promo.CreatedAt, &promo.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("promo code not found", err)
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return promo, nil
}

// ListPromoCodes возвращает список промокодов.
func (s *PromoService) ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + promoColumns + " FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2"

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	var promos []*models.PromoCode
	for rows.Next() {
		p := &models.PromoCode{}
		if err := rows.Scan(&p.Code, &p.DiscountKind, &p.DiscountValue, &p.ReuseKind, &p.Active,
			&p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promo codes: %w", err)
	}

	return promos, nil
}

// CheckPromoCode проверяет, что код существует и действует сегодня.
func (s *PromoService) CheckPromoCode(ctx context.Context, code string) error {
	promo, err := s.GetPromoCode(ctx, code)
	if err != nil {
		return err
	}
	if !promo.IsValid(s.now()) {
		return apperror.Conflict("promo code is not active", nil)
	}
	return nil
}

// resolveForOrder загружает код в транзакции заказа и проверяет, что его можно применить.
func (s *PromoService) resolveForOrder(ctx context.Context, q querier, code string, orderID uuid.UUID) (*models.PromoCode, error) {
	promo, err := loadPromoCode(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if !promo.IsValid(s.now()) {
		return nil, apperror.Conflict("promo code is not active", nil)
	}
	if err := s.policy.CheckUsage(ctx, q, promo, orderID); err != nil {
		return nil, err
	}
	return promo, nil
}

func validatePromoCodePayload(kind models.DiscountKind, reuse models.ReuseKind, start, end *time.Time) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid discount_kind")
	}
	if !reuse.Valid() {
		return fmt.Errorf("invalid reuse_kind")
	}
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	return nil
}
