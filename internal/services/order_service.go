package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/money"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RateProvider отдаёт текущий курс валюты
type RateProvider interface {
	GetRate(ctx context.Context, currencyID uuid.UUID) (float64, error)
}

// OrderService представляет сервис для работы с заказами: создание, позиции, пересчёт и оплата
type OrderService struct {
	db     *database.DB
	log    *logger.Logger
	promo  *PromoService
	rates  RateProvider
	tracer trace.Tracer
	now    func() time.Time
}

// NewOrderService создает новый экземпляр сервиса заказов
func NewOrderService(db *database.DB, log *logger.Logger, promo *PromoService, rates RateProvider) *OrderService {
	return &OrderService{
		db:     db,
		log:    log,
		promo:  promo,
		rates:  rates,
		tracer: otel.Tracer("storefront/services/orders"),
		now:    time.Now,
	}
}

const orderColumns = `id, user_id, full_amount, discount_amount, cost_of_delivery, total_amount,
	currency_id, rate_currency, status, promo_code, delivery_id, is_paid, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.FullAmount, &o.DiscountAmount, &o.CostOfDelivery, &o.TotalAmount,
		&o.CurrencyID, &o.RateCurrency, &o.Status, &o.PromoCode, &o.DeliveryID, &o.IsPaid, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// lockOrder читает заказ с блокировкой строки до конца транзакции
func lockOrder(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("order not found", err)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return order, nil
}

func loadOrderItems(ctx context.Context, q querier, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	query := `
		SELECT id, order_id, product_id, title, cost, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderLineItem
	for rows.Next() {
		var item models.OrderLineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title, &item.Cost, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return items, nil
}

// CreateOrder создает пустой заказ и фиксирует текущий курс валюты
func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req == nil || req.CurrencyID == uuid.Nil {
		return nil, apperror.Validation("currency_id is required", nil)
	}

	rate, err := s.rates.GetRate(ctx, req.CurrencyID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.insertOrder(ctx, tx, req.UserID, req.CurrencyID, rate, req.DeliveryID, req.PromoCode)
	if err != nil {
		return nil, err
	}

	if err := s.recalcTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	s.log.WithFields(map[string]interface{}{
		"order_id":      order.ID,
		"currency_id":   order.CurrencyID,
		"rate_currency": order.RateCurrency,
	}).Info("Order created successfully")

	return order, nil
}

func (s *OrderService) insertOrder(ctx context.Context, tx *sql.Tx, userID *uuid.UUID, currencyID uuid.UUID, rate float64, deliveryID *uuid.UUID, promoCode *string) (*models.Order, error) {
	now := s.now()
	order := &models.Order{
		ID:           uuid.New(),
		UserID:       userID,
		CurrencyID:   currencyID,
		RateCurrency: rate,
		Status:       models.OrderStatusNew,
		DeliveryID:   deliveryID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if deliveryID != nil {
		if _, err := loadDelivery(ctx, tx, *deliveryID); err != nil {
			return nil, err
		}
	}
	if promoCode != nil && *promoCode != "" {
		if _, err := s.promo.resolveForOrder(ctx, tx, *promoCode, order.ID); err != nil {
			return nil, err
		}
		order.PromoCode = promoCode
	}

	query := `
		INSERT INTO orders (id, user_id, full_amount, discount_amount, cost_of_delivery, total_amount,
			currency_id, rate_currency, status, promo_code, delivery_id, is_paid, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, $3, $4, $5, $6, $7, false, $8, $9)
	`
	_, err := tx.ExecContext(ctx, query, order.ID, order.UserID, order.CurrencyID, order.RateCurrency,
		order.Status, order.PromoCode, order.DeliveryID, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, nil
}

// Checkout переносит корзину пользователя в новый заказ одной транзакцией
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID, req *models.CheckoutRequest) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	if req == nil || req.CurrencyID == uuid.Nil {
		return nil, apperror.Validation("currency_id is required", nil)
	}

	rate, err := s.rates.GetRate(ctx, req.CurrencyID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	basket, err := lockBasketItems(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if len(basket) == 0 {
		return nil, apperror.Validation("basket is empty", nil)
	}

	order, err := s.insertOrder(ctx, tx, &userID, req.CurrencyID, rate, req.DeliveryID, req.PromoCode)
	if err != nil {
		return nil, err
	}

	for _, b := range basket {
		item := models.OrderLineItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: b.ProductID,
			Title:     b.Title,
			Cost:      b.Price,
			Quantity:  b.Quantity,
		}
		if err := insertOrderItem(ctx, tx, &item); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM basket_items WHERE user_id = $1", userID); err != nil {
		return nil, fmt.Errorf("failed to clear basket: %w", err)
	}

	if err := s.recalcTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      userID,
		"items":        len(order.Items),
		"total_amount": order.TotalAmount,
	}).Info("Basket checked out")

	return order, nil
}

// GetOrder получает заказ по ID вместе с позициями и суммами в валюте покупателя
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("order not found", err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.Items, err = loadOrderItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	order.RefreshDisplay()

	return order, nil
}

// ListOrders получает список заказов с фильтрацией
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.RefreshDisplay()
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// Recalc пересчитывает суммы заказа по текущим позициям, промокоду и доставке
func (s *OrderService) Recalc(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Recalc")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	return s.mutate(ctx, orderID, func(tx *sql.Tx, order *models.Order) error {
		return nil
	})
}

// ApplyPromoCode проверяет код и привязывает его к заказу с пересчётом
func (s *OrderService) ApplyPromoCode(ctx context.Context, orderID uuid.UUID, code string) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ApplyPromoCode")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.String("promo.code", code))

	if code == "" {
		return nil, apperror.Validation("code is required", nil)
	}

	return s.mutate(ctx, orderID, func(tx *sql.Tx, order *models.Order) error {
		if _, err := s.promo.resolveForOrder(ctx, tx, code, order.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE orders SET promo_code = $1 WHERE id = $2", code, order.ID); err != nil {
			return fmt.Errorf("failed to attach promo code: %w", err)
		}
		order.PromoCode = &code
		return nil
	})
}

// SetDelivery выбирает способ доставки и пересчитывает заказ
func (s *OrderService) SetDelivery(ctx context.Context, orderID, deliveryID uuid.UUID) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.SetDelivery")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	return s.mutate(ctx, orderID, func(tx *sql.Tx, order *models.Order) error {
		if _, err := loadDelivery(ctx, tx, deliveryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE orders SET delivery_id = $1 WHERE id = $2", deliveryID, order.ID); err != nil {
			return fmt.Errorf("failed to set delivery: %w", err)
		}
		order.DeliveryID = &deliveryID
		return nil
	})
}

// mutate блокирует заказ, применяет change и пересчитывает суммы в одной транзакции.
// Оплаченный, завершённый или отменённый заказ менять нельзя.
func (s *OrderService) mutate(ctx context.Context, orderID uuid.UUID, change func(tx *sql.Tx, order *models.Order) error) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !isEditable(order) {
		return nil, apperror.Conflict("order can no longer be modified", nil)
	}

	if err := change(tx, order); err != nil {
		return nil, err
	}

	if err := s.recalcTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

func isEditable(order *models.Order) bool {
	if order.IsPaid {
		return false
	}
	return order.Status == models.OrderStatusNew || order.Status == models.OrderStatusProcessing
}

// recalcTx выводит суммы заказа из позиций. Курс не перечитывается: RateCurrency остаётся
// зафиксированным при создании. Устаревший промокод продолжает действовать: проверка
// происходит при привязке.
func (s *OrderService) recalcTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	items, err := loadOrderItems(ctx, tx, order.ID)
	if err != nil {
		return err
	}

	full := money.Round2(LineItemsTotal(items))

	var discount float64
	if order.PromoCode != nil && *order.PromoCode != "" {
		promo, err := loadPromoCode(ctx, tx, *order.PromoCode)
		switch {
		case err == nil:
			discount = money.Round2(promo.Discount(full))
		case apperror.Is(err, apperror.KindNotFound):
			discount = 0
		default:
			return err
		}
	}

	var delivery float64
	if order.DeliveryID != nil {
		delivery, err = deliveryCost(ctx, tx, *order.DeliveryID, money.Sum(full, discount))
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return err
		}
	}

	order.Items = items
	order.FullAmount = full
	order.DiscountAmount = discount
	order.CostOfDelivery = delivery
	order.TotalAmount = money.Sum(full, discount, delivery)
	order.UpdatedAt = s.now()
	order.RoundAmounts()

	query := `
		UPDATE orders
		SET full_amount = $1, discount_amount = $2, cost_of_delivery = $3, total_amount = $4, updated_at = $5
		WHERE id = $6
	`
	if _, err := tx.ExecContext(ctx, query, order.FullAmount, order.DiscountAmount, order.CostOfDelivery,
		order.TotalAmount, order.UpdatedAt, order.ID); err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}

	order.RefreshDisplay()
	return nil
}
