package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/money"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// errInsufficientFunds откатывает транзакцию оплаты; наружу не выходит
var errInsufficientFunds = errors.New("insufficient funds")

// Pay списывает сумму заказа с баланса владельца.
// Заказ и пользователь блокируются до конца транзакции, поэтому две параллельные оплаты
// не могут обе пройти проверку баланса. Нехватка средств не ошибка: заказ не меняется.
func (s *OrderService) Pay(ctx context.Context, orderID uuid.UUID) (*models.PaymentResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Pay")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	result := &models.PaymentResult{}

	err := s.db.WithRetry(ctx, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result.Order = order

		switch {
		case order.IsPaid || order.Status == models.OrderStatusPaid:
			return apperror.Conflict("order is already paid", nil)
		case order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusFinished:
			return apperror.Conflictf("order is %s", order.Status)
		case order.UserID == nil:
			return apperror.Validation("order has no owner", nil)
		}

		balance, err := lockBalance(ctx, tx, *order.UserID)
		if err != nil {
			return err
		}
		result.Balance = balance
		if balance < order.TotalAmount {
			return errInsufficientFunds
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1",
			order.TotalAmount, *order.UserID)
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		if rows, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if rows == 0 {
			return errInsufficientFunds
		}

		order.IsPaid = true
		order.Status = models.OrderStatusPaid
		order.UpdatedAt = s.now()
		if _, err := tx.ExecContext(ctx, "UPDATE orders SET is_paid = $1, status = $2, updated_at = $3 WHERE id = $4",
			order.IsPaid, order.Status, order.UpdatedAt, order.ID); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}

		if err := s.logBalanceChange(ctx, tx, *order.UserID, order.ID, -order.TotalAmount, models.BalanceChangePayment); err != nil {
			return err
		}

		result.Balance = money.Sum(balance, -order.TotalAmount)
		result.Paid = true
		return nil
	})
	if errors.Is(err, errInsufficientFunds) {
		result.Paid = false
		result.Reason = models.PaymentReasonInsufficientFunds
		s.log.WithFields(map[string]interface{}{
			"order_id": orderID,
			"balance":  result.Balance,
		}).Info("Order payment declined: insufficient funds")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Order.RefreshDisplay()
	s.log.WithFields(map[string]interface{}{
		"order_id": orderID,
		"amount":   result.Order.TotalAmount,
	}).Info("Order paid")

	return result, nil
}

// Cancel отменяет заказ. Оплаченный заказ возвращает сумму на баланс владельца;
// повторная отмена ничего не возвращает.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	var (
		order    *models.Order
		refunded bool
	)
	err := s.db.WithRetry(ctx, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		refunded = false
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.IsPaid && order.UserID != nil {
			if _, err := lockBalance(ctx, tx, *order.UserID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE users SET balance = balance + $1 WHERE id = $2",
				order.TotalAmount, *order.UserID); err != nil {
				return fmt.Errorf("failed to refund balance: %w", err)
			}
			if err := s.logBalanceChange(ctx, tx, *order.UserID, order.ID, order.TotalAmount, models.BalanceChangeRefund); err != nil {
				return err
			}
			refunded = true
		}

		order.IsPaid = false
		order.Status = models.OrderStatusCancelled
		order.UpdatedAt = s.now()
		if _, err := tx.ExecContext(ctx, "UPDATE orders SET is_paid = $1, status = $2, updated_at = $3 WHERE id = $4",
			order.IsPaid, order.Status, order.UpdatedAt, order.ID); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.RefreshDisplay()
	s.log.WithFields(map[string]interface{}{
		"order_id": orderID,
		"refunded": refunded,
	}).Info("Order cancelled")

	return order, nil
}

// ChangeStatus выполняет ручной переход статуса.
// Оплата возможна только через Pay, отмена делегируется Cancel.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperror.Validation("invalid status", nil)
	}
	if status == models.OrderStatusCancelled {
		return s.Cancel(ctx, orderID)
	}
	if status == models.OrderStatusPaid {
		return nil, apperror.Validation("use payment to mark an order paid", nil)
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.ChangeStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.String("order.status", string(status)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		order.RefreshDisplay()
		return order, nil
	}
	if !isValidOrderStatusTransition(order.Status, status) {
		return nil, apperror.Conflictf("invalid order status transition %s -> %s", order.Status, status)
	}

	oldStatus := order.Status
	order.Status = status
	order.UpdatedAt = s.now()
	if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		order.Status, order.UpdatedAt, order.ID); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order status update: %w", err)
	}

	order.RefreshDisplay()
	s.log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"old_status": oldStatus,
		"new_status": status,
	}).Info("Order status updated")

	return order, nil
}

func isValidOrderStatusTransition(from, to models.OrderStatus) bool {
	switch from {
	case models.OrderStatusNew:
		return to == models.OrderStatusProcessing
	case models.OrderStatusPaid:
		return to == models.OrderStatusFinished
	default:
		return false
	}
}

func lockBalance(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (float64, error) {
	var balance float64
	if err := tx.QueryRowContext(ctx, "SELECT balance FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, apperror.NotFound("user not found", err)
		}
		return 0, fmt.Errorf("failed to lock user balance: %w", err)
	}
	return balance, nil
}

func (s *OrderService) logBalanceChange(ctx context.Context, tx *sql.Tx, userID, orderID uuid.UUID, amount float64, reason models.BalanceChangeReason) error {
	query := `
		INSERT INTO balance_changes (id, user_id, order_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query, uuid.New(), userID, orderID, amount, reason, s.now()); err != nil {
		return fmt.Errorf("failed to log balance change: %w", err)
	}
	return nil
}
