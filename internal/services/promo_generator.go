package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeLength  = 15
	defaultMaxAttempts = 1000
)

// GeneratePromoCodes создаёт Count случайных промокодов с одинаковыми параметрами.
// При совпадении кода с существующим генерирует новый, но не больше maxAttempts раз на код.
func (s *PromoService) GeneratePromoCodes(ctx context.Context, req *models.GeneratePromoCodesRequest) ([]*models.PromoCode, error) {
	if req == nil {
		return nil, apperror.Validation("request is required", nil)
	}
	normalized := *req
	normalized.StartDate, normalized.EndDate = models.CalendarDay(req.StartDate), models.CalendarDay(req.EndDate)
	req = &normalized
	if err := validatePromoCodePayload(req.DiscountKind, req.ReuseKind, req.StartDate, req.EndDate); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	length := req.CodeLength
	if length <= 0 {
		length = s.codeLength
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	created := make([]*models.PromoCode, 0, count)
	for i := 0; i < count; i++ {
		promo, err := s.generateOne(ctx, req, length)
		if err != nil {
			return created, err
		}
		created = append(created, promo)
	}

	s.log.WithFields(map[string]interface{}{
		"count":         len(created),
		"discount_kind": req.DiscountKind,
		"reuse_kind":    req.ReuseKind,
	}).Info("Promo codes generated")

	return created, nil
}

func (s *PromoService) generateOne(ctx context.Context, req *models.GeneratePromoCodesRequest, length int) (*models.PromoCode, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.random(length)
		if err != nil {
			return nil, fmt.Errorf("failed to generate promo code: %w", err)
		}

		now := s.now()
		promo := &models.PromoCode{
			Code:          code,
			DiscountKind:  req.DiscountKind,
			DiscountValue: req.DiscountValue,
			ReuseKind:     req.ReuseKind,
			Active:        true,
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = insertPromoCode(ctx, s.db, promo)
		if err == nil {
			return promo, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create promo code: %w", err)
		}

		s.log.WithField("attempt", attempt+1).Debug("Generated promo code collided, retrying")
	}

	return nil, apperror.Exhausted(fmt.Sprintf("could not generate a unique promo code in %d attempts", s.maxAttempts), nil)
}

func randomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
