package services

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/money"

	"github.com/google/uuid"
)

// PricingService хранит матрицы тарифов и способы доставки и считает стоимость доставки.
type PricingService struct {
	db  *database.DB
	log *logger.Logger
}

// NewPricingService создаёт сервис тарифов.
func NewPricingService(db *database.DB, log *logger.Logger) *PricingService {
	return &PricingService{
		db:  db,
		log: log,
	}
}

// ResolveCost считает стоимость по матрице для суммы amount.
// Диапазоны перебираются в порядке хранения, срабатывает первый подходящий.
// Нет матрицы или подходящего диапазона: доставка бесплатна.
func ResolveCost(matrix *models.PriceMatrix, amount float64) float64 {
	if matrix == nil {
		return 0
	}

	for _, tier := range matrix.Tiers {
		if !tier.Contains(amount) {
			continue
		}
		switch tier.Kind {
		case models.TierKindFixed:
			return money.Round2(tier.Value)
		case models.TierKindRelative:
			return money.Round2(money.Percent(amount, tier.Value))
		default:
			return 0
		}
	}

	return 0
}

// CreateMatrix создаёт матрицу; порядок диапазонов в запросе становится порядком проверки.
func (s *PricingService) CreateMatrix(ctx context.Context, req *models.CreateMatrixRequest) (*models.PriceMatrix, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("matrix name is required", nil)
	}
	for i, t := range req.Tiers {
		if !t.Kind.Valid() {
			return nil, apperror.Validationf("tier %d: invalid kind", i)
		}
		if t.MinValue >= t.MaxValue {
			return nil, apperror.Validationf("tier %d: min_value must be less than max_value", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	matrix := &models.PriceMatrix{ID: uuid.New(), Name: req.Name}
	if _, err := tx.ExecContext(ctx, "INSERT INTO price_matrices (id, name) VALUES ($1, $2)", matrix.ID, matrix.Name); err != nil {
		return nil, fmt.Errorf("failed to create price matrix: %w", err)
	}

	tierQuery := `
		INSERT INTO price_tiers (id, matrix_id, position, min_value, max_value, kind, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, t := range req.Tiers {
		tier := models.PriceTier{
			ID:       uuid.New(),
			MatrixID: matrix.ID,
			Position: i,
			MinValue: t.MinValue,
			MaxValue: t.MaxValue,
			Kind:     t.Kind,
			Value:    t.Value,
		}
		if _, err := tx.ExecContext(ctx, tierQuery, tier.ID, tier.MatrixID, tier.Position, tier.MinValue, tier.MaxValue, tier.Kind, tier.Value); err != nil {
			return nil, fmt.Errorf("failed to create price tier: %w", err)
		}
		matrix.Tiers = append(matrix.Tiers, tier)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"matrix_id": matrix.ID,
		"tiers":     len(matrix.Tiers),
	}).Info("Price matrix created")

	return matrix, nil
}

// GetMatrix возвращает матрицу с диапазонами в порядке проверки.
func (s *PricingService) GetMatrix(ctx context.Context, id uuid.UUID) (*models.PriceMatrix, error) {
	return loadMatrix(ctx, s.db, id)
}

func loadMatrix(ctx context.Context, q querier, id uuid.UUID) (*models.PriceMatrix, error) {
	matrix := &models.PriceMatrix{}
	if err := q.QueryRowContext(ctx, "SELECT id, name FROM price_matrices WHERE id = $1", id).Scan(&matrix.ID, &matrix.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("price matrix not found", err)
		}
		return nil, fmt.Errorf("failed to get price matrix: %w", err)
	}

	query := `
		SELECT id, matrix_id, position, min_value, max_value, kind, value
		FROM price_tiers
		WHERE matrix_id = $1
		ORDER BY position, id
	`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get price tiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.PriceTier
		if err := rows.Scan(&t.ID, &t.MatrixID, &t.Position, &t.MinValue, &t.MaxValue, &t.Kind, &t.Value); err != nil {
			return nil, fmt.Errorf("failed to scan price tier: %w", err)
		}
		matrix.Tiers = append(matrix.Tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price tiers: %w", err)
	}

	return matrix, nil
}

// CreateDelivery создаёт способ доставки.
func (s *PricingService) CreateDelivery(ctx context.Context, req *models.CreateDeliveryRequest) (*models.Delivery, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("delivery name is required", nil)
	}

	delivery := &models.Delivery{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		MatrixID:    req.MatrixID,
	}

	query := `
		INSERT INTO deliveries (id, name, description, matrix_id)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, delivery.ID, delivery.Name, delivery.Description, delivery.MatrixID); err != nil {
		return nil, fmt.Errorf("failed to create delivery: %w", err)
	}

	s.log.WithField("delivery_id", delivery.ID).Info("Delivery method created")
	return delivery, nil
}

// GetDelivery возвращает способ доставки.
func (s *PricingService) GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return loadDelivery(ctx, s.db, id)
}

func loadDelivery(ctx context.Context, q querier, id uuid.UUID) (*models.Delivery, error) {
	d := &models.Delivery{}
	err := q.QueryRowContext(ctx, "SELECT id, name, description, matrix_id FROM deliveries WHERE id = $1", id).
		Scan(&d.ID, &d.Name, &d.Description, &d.MatrixID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("delivery method not found", err)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return d, nil
}

// ListDeliveries возвращает все способы доставки.
func (s *PricingService) ListDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, matrix_id FROM deliveries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		d := &models.Delivery{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.MatrixID); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}

	return deliveries, nil
}

// DeliveryCost считает стоимость доставки для суммы amount выбранным способом.
func (s *PricingService) DeliveryCost(ctx context.Context, deliveryID uuid.UUID, amount float64) (float64, error) {
	return deliveryCost(ctx, s.db, deliveryID, amount)
}

func deliveryCost(ctx context.Context, q querier, deliveryID uuid.UUID, amount float64) (float64, error) {
	delivery, err := loadDelivery(ctx, q, deliveryID)
	if err != nil {
		return 0, err
	}
	if delivery.MatrixID == nil {
		return 0, nil
	}

	matrix, err := loadMatrix(ctx, q, *delivery.MatrixID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return ResolveCost(matrix, amount), nil
}
