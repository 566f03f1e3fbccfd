package models

import (
	"time"

	"github.com/google/uuid"
)

// Product товар каталога. Используется ядром только для снимка названия и цены.
type Product struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Price     float64   `json:"price" db:"price"`
	OldPrice  float64   `json:"old_price" db:"old_price"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateProductRequest описывает создание товара
type CreateProductRequest struct {
	Title string  `json:"title" validate:"required,max=300"`
	Price float64 `json:"price" validate:"gte=0"`
	Stock int     `json:"stock"`
}

// UpdatePriceRequest изменяет цену товара
type UpdatePriceRequest struct {
	Price float64 `json:"price" validate:"gte=0"`
}

// UpdateStockRequest изменяет остаток товара
type UpdateStockRequest struct {
	Stock int `json:"stock"`
}

// Currency валюта с курсом относительно базовой
type Currency struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Name    string    `json:"name" db:"name"`
	Code    string    `json:"code" db:"code"`
	Rate    float64   `json:"rate" db:"rate"`
	Display string    `json:"display" db:"display"`
}

// CreateCurrencyRequest описывает создание валюты
type CreateCurrencyRequest struct {
	Name    string  `json:"name" validate:"required,max=50"`
	Code    string  `json:"code" validate:"max=15"`
	Rate    float64 `json:"rate" validate:"gt=0"`
	Display string  `json:"display" validate:"max=20"`
}

// UpdateRateRequest меняет курс валюты
type UpdateRateRequest struct {
	Rate float64 `json:"rate" validate:"gt=0"`
}

// SubscriptionKind вид подписки на товар
type SubscriptionKind string

const (
	SubscriptionPriceDrop SubscriptionKind = "price_drop"
	SubscriptionRestock   SubscriptionKind = "restock"
)

// Valid проверяет, что значение входит в перечисление.
func (k SubscriptionKind) Valid() bool {
	return k == SubscriptionPriceDrop || k == SubscriptionRestock
}

// Subscription подписка пользователя на изменения товара
type Subscription struct {
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	ProductID uuid.UUID        `json:"product_id" db:"product_id"`
	Kind      SubscriptionKind `json:"kind" db:"kind"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// SubscriptionRequest подписка или отписка
type SubscriptionRequest struct {
	UserID uuid.UUID        `json:"user_id" validate:"required"`
	Kind   SubscriptionKind `json:"kind" validate:"required"`
}

// RateProductRequest оценка товара пользователем
type RateProductRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Rating int       `json:"rating" validate:"min=1,max=5"`
}

// ProductRating агрегат оценок товара
type ProductRating struct {
	ProductID uuid.UUID `json:"product_id"`
	Average   float64   `json:"average"`
	Count     int       `json:"count"`
}
