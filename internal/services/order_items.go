package services

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/money"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// AddItem добавляет товар в заказ или правит позицию и пересчитывает заказ.
//
// С ItemID правится существующая позиция: цена приходит в валюте заказа и переводится
// в базовую по зафиксированному курсу. Без ItemID товар ищется в каталоге; повторное
// добавление того же товара увеличивает количество на единицу.
func (s *OrderService) AddItem(ctx context.Context, orderID uuid.UUID, req *models.AddLineItemRequest) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.AddItem")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	if req == nil {
		return nil, apperror.Validation("request is required", nil)
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return nil, apperror.Validation("quantity must be positive", nil)
	}

	order, err := s.mutate(ctx, orderID, func(tx *sql.Tx, order *models.Order) error {
		if req.ItemID != nil {
			return s.editItem(ctx, tx, order, req)
		}
		return s.mergeItem(ctx, tx, order, req)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"product_id": req.ProductID,
		"full":       order.FullAmount,
	}).Info("Order item saved")

	return order, nil
}

func (s *OrderService) editItem(ctx context.Context, tx *sql.Tx, order *models.Order, req *models.AddLineItemRequest) error {
	item := models.OrderLineItem{}
	err := tx.QueryRowContext(ctx,
		"SELECT id, order_id, product_id, title, cost, quantity FROM order_items WHERE id = $1 AND order_id = $2",
		*req.ItemID, order.ID,
	).Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title, &item.Cost, &item.Quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("order item not found", err)
		}
		return fmt.Errorf("failed to get order item: %w", err)
	}

	if req.Price != nil {
		item.Cost = money.FromDisplay(*req.Price, order.RateCurrency)
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	if _, err := tx.ExecContext(ctx, "UPDATE order_items SET cost = $1, quantity = $2 WHERE id = $3",
		item.Cost, item.Quantity, item.ID); err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}
	return nil
}

func (s *OrderService) mergeItem(ctx context.Context, tx *sql.Tx, order *models.Order, req *models.AddLineItemRequest) error {
	if req.ProductID == uuid.Nil {
		return apperror.Validation("product_id is required", nil)
	}

	product, err := loadProduct(ctx, tx, req.ProductID)
	if err != nil {
		return err
	}

	// Повторное добавление игнорирует переданное количество и цену
	result, err := tx.ExecContext(ctx,
		"UPDATE order_items SET quantity = quantity + 1 WHERE order_id = $1 AND product_id = $2",
		order.ID, product.ID)
	if err != nil {
		return fmt.Errorf("failed to increment order item: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if rows > 0 {
		return nil
	}

	item := models.OrderLineItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: product.ID,
		Title:     product.Title,
		Cost:      product.Price,
		Quantity:  1,
	}
	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Price != nil {
		item.Cost = *req.Price
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	return insertOrderItem(ctx, tx, &item)
}

func insertOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderLineItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, title, cost, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query, item.ID, item.OrderID, item.ProductID, item.Title, item.Cost, item.Quantity); err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}
