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

// Notifier приёмник уведомлений для подписчиков. Отправка однонаправленная.
type Notifier interface {
	NotifyPriceDrop(ctx context.Context, subscriberIDs []uuid.UUID, title string, newPrice float64) error
	NotifyRestock(ctx context.Context, subscriberIDs []uuid.UUID, title string) error
}

// CatalogService ведёт цены и остатки товаров
type CatalogService struct {
	db            *database.DB
	log           *logger.Logger
	subscriptions *SubscriptionService
	notifier      Notifier
}

// NewCatalogService создаёт сервис каталога
func NewCatalogService(db *database.DB, log *logger.Logger, subscriptions *SubscriptionService, notifier Notifier) *CatalogService {
	return &CatalogService{
		db:            db,
		log:           log,
		subscriptions: subscriptions,
		notifier:      notifier,
	}
}

// CreateProduct создаёт товар
func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if req == nil || req.Title == "" {
		return nil, apperror.Validation("title is required", nil)
	}
	if req.Price < 0 {
		return nil, apperror.Validation("price must be non-negative", nil)
	}

	now := time.Now()
	p := &models.Product{
		ID:        uuid.New(),
		Title:     req.Title,
		Price:     money.Round2(req.Price),
		Stock:     req.Stock,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO products (id, title, price, old_price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Title, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.log.WithField("product_id", p.ID).Info("Product created")
	return p, nil
}

// GetProduct возвращает товар по ID
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return loadProduct(ctx, s.db, id)
}

func loadProduct(ctx context.Context, q querier, id uuid.UUID) (*models.Product, error) {
	p := &models.Product{}
	err := q.QueryRowContext(ctx,
		"SELECT id, title, price, old_price, stock, created_at, updated_at FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Title, &p.Price, &p.OldPrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("product not found", err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// UpdatePrice меняет цену. Прежняя цена сохраняется в old_price,
// подписчики price_drop уведомляются при любом изменении цены.
func (s *CatalogService) UpdatePrice(ctx context.Context, id uuid.UUID, price float64) (*models.Product, error) {
	if price < 0 {
		return nil, apperror.Validation("price must be non-negative", nil)
	}
	price = money.Round2(price)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := lockProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.Price == price {
		return p, nil
	}

	p.OldPrice = p.Price
	p.Price = price
	p.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, "UPDATE products SET price = $1, old_price = $2, updated_at = $3 WHERE id = $4",
		p.Price, p.OldPrice, p.UpdatedAt, p.ID); err != nil {
		return nil, fmt.Errorf("failed to update price: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit price update: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"product_id": p.ID,
		"old_price":  p.OldPrice,
		"new_price":  p.Price,
	}).Info("Product price updated")

	s.notify(ctx, p, models.SubscriptionPriceDrop, func(ids []uuid.UUID) error {
		return s.notifier.NotifyPriceDrop(ctx, ids, p.Title, p.Price)
	})

	return p, nil
}

// UpdateStock меняет остаток. Переход из нуля в плюс уведомляет подписчиков restock.
func (s *CatalogService) UpdateStock(ctx context.Context, id uuid.UUID, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, apperror.Validation("stock must be non-negative", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := lockProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	restocked := p.Stock <= 0 && stock > 0
	p.Stock = stock
	p.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, "UPDATE products SET stock = $1, updated_at = $2 WHERE id = $3",
		p.Stock, p.UpdatedAt, p.ID); err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock update: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"product_id": p.ID,
		"stock":      p.Stock,
	}).Info("Product stock updated")

	if restocked {
		s.notify(ctx, p, models.SubscriptionRestock, func(ids []uuid.UUID) error {
			return s.notifier.NotifyRestock(ctx, ids, p.Title)
		})
	}

	return p, nil
}

// notify рассылает уведомление после коммита. Ошибки приёмника только логируются.
func (s *CatalogService) notify(ctx context.Context, p *models.Product, kind models.SubscriptionKind, send func([]uuid.UUID) error) {
	if s.notifier == nil || s.subscriptions == nil {
		return
	}

	ids, err := s.subscriptions.Subscribers(ctx, p.ID, kind)
	if err != nil {
		s.log.WithError(err).WithField("product_id", p.ID).Error("Failed to load subscribers")
		return
	}
	if len(ids) == 0 {
		return
	}

	if err := send(ids); err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{
			"product_id": p.ID,
			"kind":       kind,
		}).Warn("Failed to notify subscribers")
	}
}

func lockProduct(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Product, error) {
	p := &models.Product{}
	err := tx.QueryRowContext(ctx,
		"SELECT id, title, price, old_price, stock, created_at, updated_at FROM products WHERE id = $1 FOR UPDATE", id,
	).Scan(&p.ID, &p.Title, &p.Price, &p.OldPrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("product not found", err)
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return p, nil
}
