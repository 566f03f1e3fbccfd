package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/money"

	"github.com/google/uuid"
)

// RatingService хранит оценки товаров: одна оценка на пользователя
type RatingService struct {
	db  *database.DB
	log *logger.Logger
}

// NewRatingService создаёт сервис оценок
func NewRatingService(db *database.DB, log *logger.Logger) *RatingService {
	return &RatingService{db: db, log: log}
}

// RateProduct сохраняет оценку 1..5, повторная оценка заменяет прежнюю
func (s *RatingService) RateProduct(ctx context.Context, productID, userID uuid.UUID, rating int) (*models.ProductRating, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.Validation("rating must be between 1 and 5", nil)
	}

	query := `
		INSERT INTO product_ratings (product_id, user_id, rating, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, productID, userID, rating, time.Now()); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound("user or product not found", err)
		}
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"product_id": productID,
		"user_id":    userID,
		"rating":     rating,
	}).Info("Product rated")

	return s.GetRating(ctx, productID)
}

// GetRating возвращает среднюю оценку и число оценок
func (s *RatingService) GetRating(ctx context.Context, productID uuid.UUID) (*models.ProductRating, error) {
	var (
		avg   float64
		count int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM product_ratings WHERE product_id = $1", productID,
	).Scan(&avg, &count)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}

	return &models.ProductRating{
		ProductID: productID,
		Average:   money.Round2(avg),
		Count:     count,
	}, nil
}
