package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// SubscriptionService хранит подписки пользователей на товары
type SubscriptionService struct {
	db  *database.DB
	log *logger.Logger
}

// NewSubscriptionService создаёт сервис подписок
func NewSubscriptionService(db *database.DB, log *logger.Logger) *SubscriptionService {
	return &SubscriptionService{db: db, log: log}
}

// Subscribe подписывает пользователя; повторная подписка ничего не меняет
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, productID uuid.UUID, kind models.SubscriptionKind) (*models.Subscription, error) {
	if !kind.Valid() {
		return nil, apperror.Validation("invalid subscription kind", nil)
	}

	sub := &models.Subscription{UserID: userID, ProductID: productID, Kind: kind, CreatedAt: time.Now()}
	query := `
		INSERT INTO subscriptions (user_id, product_id, kind, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, kind) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, sub.UserID, sub.ProductID, sub.Kind, sub.CreatedAt); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound("user or product not found", err)
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"kind":       kind,
	}).Info("Subscription saved")
	return sub, nil
}

// Unsubscribe удаляет подписку
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, productID uuid.UUID, kind models.SubscriptionKind) error {
	if !kind.Valid() {
		return apperror.Validation("invalid subscription kind", nil)
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE user_id = $1 AND product_id = $2 AND kind = $3",
		userID, productID, kind)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("subscription not found", nil)
	}
	return nil
}

// Subscribers возвращает ID подписчиков товара нужного вида
func (s *SubscriptionService) Subscribers(ctx context.Context, productID uuid.UUID, kind models.SubscriptionKind) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM subscriptions WHERE product_id = $1 AND kind = $2 ORDER BY created_at",
		productID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscribers: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return ids, nil
}
