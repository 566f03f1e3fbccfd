package models

import (
	"time"

	"github.com/google/uuid"
)

// BasketItem строка корзины. Цена хранится отдельно и не синхронизируется с каталогом.
type BasketItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Title     string    `json:"title" db:"title"`
	Price     float64   `json:"price" db:"price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LineQuantity реализует строку для подсчёта итога.
func (i BasketItem) LineQuantity() int { return i.Quantity }

// LinePrice реализует строку для подсчёта итога.
func (i BasketItem) LinePrice() float64 { return i.Price }

// Basket корзина пользователя с итогом
type Basket struct {
	UserID uuid.UUID    `json:"user_id"`
	Items  []BasketItem `json:"items"`
	Total  float64      `json:"total"`
}

// AddToBasketRequest добавляет товар в корзину
type AddToBasketRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity,omitempty" validate:"omitempty,min=1"` // 0 = 1
}

// UpdateBasketItemRequest задаёт количество строки; 0 удаляет строку
type UpdateBasketItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}
