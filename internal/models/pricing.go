package models

import "github.com/google/uuid"

// TierKind определяет способ расчёта стоимости в диапазоне матрицы.
type TierKind string

const (
	TierKindFixed    TierKind = "fixed"
	TierKindRelative TierKind = "relative"
)

// Valid проверяет, что значение входит в перечисление.
func (k TierKind) Valid() bool {
	return k == TierKindFixed || k == TierKindRelative
}

// PriceMatrix именованный упорядоченный набор диапазонов.
type PriceMatrix struct {
	ID    uuid.UUID   `json:"id" db:"id"`
	Name  string      `json:"name" db:"name"`
	Tiers []PriceTier `json:"tiers"`
}

// PriceTier диапазон [MinValue, MaxValue) со своим правилом расчёта.
type PriceTier struct {
	ID       uuid.UUID `json:"id" db:"id"`
	MatrixID uuid.UUID `json:"matrix_id" db:"matrix_id"`
	Position int       `json:"position" db:"position"`
	MinValue float64   `json:"min_value" db:"min_value"`
	MaxValue float64   `json:"max_value" db:"max_value"`
	Kind     TierKind  `json:"kind" db:"kind"`
	Value    float64   `json:"value" db:"value"`
}

// Contains сообщает, попадает ли сумма в полуинтервал тарифа.
func (t PriceTier) Contains(amount float64) bool {
	return t.MinValue <= amount && amount < t.MaxValue
}

// Delivery способ доставки; без матрицы доставка бесплатна.
type Delivery struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	MatrixID    *uuid.UUID `json:"matrix_id,omitempty" db:"matrix_id"`
}

// CreateMatrixRequest описывает создание матрицы вместе с диапазонами.
type CreateMatrixRequest struct {
	Name  string                   `json:"name" validate:"required,max=200"`
	Tiers []CreatePriceTierRequest `json:"tiers" validate:"dive"`
}

// CreatePriceTierRequest диапазон в запросе; порядок в массиве задаёт приоритет.
type CreatePriceTierRequest struct {
	MinValue float64  `json:"min_value"`
	MaxValue float64  `json:"max_value"`
	Kind     TierKind `json:"kind" validate:"required"`
	Value    float64  `json:"value"`
}

// CreateDeliveryRequest описывает создание способа доставки.
type CreateDeliveryRequest struct {
	Name        string     `json:"name" validate:"required,max=350"`
	Description *string    `json:"description,omitempty"`
	MatrixID    *uuid.UUID `json:"matrix_id,omitempty"`
}
