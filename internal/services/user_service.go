package services

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// UserService даёт доступ к балансу пользователя только на чтение.
// Баланс меняется исключительно оплатой и отменой заказа.
type UserService struct {
	db  *database.DB
	log *logger.Logger
}

// NewUserService создаёт сервис пользователей
func NewUserService(db *database.DB, log *logger.Logger) *UserService {
	return &UserService{db: db, log: log}
}

// GetBalance возвращает текущий баланс
func (s *UserService) GetBalance(ctx context.Context, userID uuid.UUID) (float64, error) {
	var balance float64
	if err := s.db.QueryRowContext(ctx, "SELECT balance FROM users WHERE id = $1", userID).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, apperror.NotFound("user not found", err)
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// BalanceHistory возвращает журнал изменений баланса, новые записи первыми
func (s *UserService) BalanceHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.BalanceChange, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, order_id, amount, reason, created_at
		FROM balance_changes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}
	defer rows.Close()

	var changes []*models.BalanceChange
	for rows.Next() {
		c := &models.BalanceChange{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.OrderID, &c.Amount, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance history: %w", err)
	}
	return changes, nil
}
