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
)

// BasketService управляет корзиной пользователя.
// Цена строки фиксируется при добавлении и дальше не сверяется с каталогом.
type BasketService struct {
	db  *database.DB
	log *logger.Logger
}

// NewBasketService создаёт сервис корзины
func NewBasketService(db *database.DB, log *logger.Logger) *BasketService {
	return &BasketService{db: db, log: log}
}

const basketColumns = "id, user_id, product_id, title, price, quantity, updated_at"

func scanBasketItems(rows *sql.Rows) ([]models.BasketItem, error) {
	defer rows.Close()

	var items []models.BasketItem
	for rows.Next() {
		var b models.BasketItem
		if err := rows.Scan(&b.ID, &b.UserID, &b.ProductID, &b.Title, &b.Price, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan basket item: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate basket items: %w", err)
	}
	return items, nil
}

// lockBasketItems читает корзину с блокировкой строк для оформления заказа
func lockBasketItems(ctx context.Context, tx *sql.Tx, userID uuid.UUID) ([]models.BasketItem, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+basketColumns+" FROM basket_items WHERE user_id = $1 ORDER BY updated_at FOR UPDATE", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock basket: %w", err)
	}
	return scanBasketItems(rows)
}

// AddToBasket добавляет товар; повторное добавление увеличивает количество
func (s *BasketService) AddToBasket(ctx context.Context, userID uuid.UUID, req *models.AddToBasketRequest) (*models.Basket, error) {
	if req == nil || req.ProductID == uuid.Nil {
		return nil, apperror.Validation("product_id is required", nil)
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, apperror.Validation("quantity must be positive", nil)
	}

	product, err := loadProduct(ctx, s.db, req.ProductID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO basket_items (id, user_id, product_id, title, price, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = basket_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.New(), userID, product.ID, product.Title, product.Price, qty, time.Now()); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound("user not found", err)
		}
		return nil, fmt.Errorf("failed to add basket item: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":    userID,
		"product_id": product.ID,
		"quantity":   qty,
	}).Info("Product added to basket")

	return s.GetBasket(ctx, userID)
}

// UpdateQuantity задаёт количество строки; ноль удаляет строку
func (s *BasketService) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Basket, error) {
	if quantity < 0 {
		return nil, apperror.Validation("quantity must not be negative", nil)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE basket_items SET quantity = $1, updated_at = $2 WHERE user_id = $3 AND product_id = $4",
		quantity, time.Now(), userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to update basket item: %w", err)
	}
	if err := requireAffected(result, "basket item not found"); err != nil {
		return nil, err
	}
	return s.GetBasket(ctx, userID)
}

// RemoveItem удаляет строку корзины
func (s *BasketService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Basket, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM basket_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove basket item: %w", err)
	}
	if err := requireAffected(result, "basket item not found"); err != nil {
		return nil, err
	}
	return s.GetBasket(ctx, userID)
}

// GetBasket возвращает корзину с итогом
func (s *BasketService) GetBasket(ctx context.Context, userID uuid.UUID) (*models.Basket, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+basketColumns+" FROM basket_items WHERE user_id = $1 ORDER BY updated_at", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}
	items, err := scanBasketItems(rows)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.BasketItem{}
	}

	return &models.Basket{
		UserID: userID,
		Items:  items,
		Total:  money.Round2(LineItemsTotal(items)),
	}, nil
}

// Clear очищает корзину
func (s *BasketService) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM basket_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear basket: %w", err)
	}
	s.log.WithField("user_id", userID).Info("Basket cleared")
	return nil
}

func requireAffected(result sql.Result, notFoundMsg string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound(notFoundMsg, nil)
	}
	return nil
}
