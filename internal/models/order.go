package models

import (
	"time"

	"storefront/internal/money"

	"github.com/google/uuid"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFinished   OrderStatus = "finished"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid проверяет, что значение входит в перечисление.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusProcessing, OrderStatusPaid, OrderStatusFinished, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order представляет заказ в системе.
// Денежные поля хранятся в базовой валюте; RateCurrency фиксируется при создании.
type Order struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	FullAmount     float64         `json:"full_amount" db:"full_amount"`
	DiscountAmount float64         `json:"discount_amount" db:"discount_amount"`
	CostOfDelivery float64         `json:"cost_of_delivery" db:"cost_of_delivery"`
	TotalAmount    float64         `json:"total_amount" db:"total_amount"`
	CurrencyID     uuid.UUID       `json:"currency_id" db:"currency_id"`
	RateCurrency   float64         `json:"rate_currency" db:"rate_currency"`
	Status         OrderStatus     `json:"status" db:"status"`
	PromoCode      *string         `json:"promo_code,omitempty" db:"promo_code"`
	DeliveryID     *uuid.UUID      `json:"delivery_id,omitempty" db:"delivery_id"`
	IsPaid         bool            `json:"is_paid" db:"is_paid"`
	Items          []OrderLineItem `json:"items"`
	Display        OrderDisplay    `json:"display"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderDisplay суммы заказа в валюте покупателя. Не хранятся, вычисляются из курса.
type OrderDisplay struct {
	FullAmount     float64 `json:"full_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	CostOfDelivery float64 `json:"cost_of_delivery"`
	TotalAmount    float64 `json:"total_amount"`
}

// RoundAmounts округляет денежные поля до копеек перед сохранением.
func (o *Order) RoundAmounts() {
	o.FullAmount = money.Round2(o.FullAmount)
	o.DiscountAmount = money.Round2(o.DiscountAmount)
	o.CostOfDelivery = money.Round2(o.CostOfDelivery)
	o.TotalAmount = money.Round2(o.TotalAmount)
}

// RefreshDisplay пересчитывает суммы в валюте покупателя.
func (o *Order) RefreshDisplay() {
	o.Display = OrderDisplay{
		FullAmount:     money.Convert(o.FullAmount, o.RateCurrency),
		DiscountAmount: money.Convert(o.DiscountAmount, o.RateCurrency),
		CostOfDelivery: money.Convert(o.CostOfDelivery, o.RateCurrency),
		TotalAmount:    money.Convert(o.TotalAmount, o.RateCurrency),
	}
}

// OrderLineItem позиция заказа. Название и цена копируются из каталога при добавлении.
type OrderLineItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Title     string    `json:"title" db:"title"`
	Cost      float64   `json:"cost" db:"cost"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

// LineQuantity реализует строку для подсчёта итога.
func (i OrderLineItem) LineQuantity() int { return i.Quantity }

// LinePrice реализует строку для подсчёта итога.
func (i OrderLineItem) LinePrice() float64 { return i.Cost }

// CreateOrderRequest представляет запрос на создание пустого заказа
type CreateOrderRequest struct {
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	CurrencyID uuid.UUID  `json:"currency_id" validate:"required"`
	DeliveryID *uuid.UUID `json:"delivery_id,omitempty"`
	PromoCode  *string    `json:"promo_code,omitempty" validate:"omitempty,max=64"`
}

// CheckoutRequest оформляет заказ из корзины пользователя
type CheckoutRequest struct {
	CurrencyID uuid.UUID  `json:"currency_id" validate:"required"`
	DeliveryID *uuid.UUID `json:"delivery_id,omitempty"`
	PromoCode  *string    `json:"promo_code,omitempty" validate:"omitempty,max=64"`
}

// AddLineItemRequest добавляет товар в заказ или правит существующую позицию.
// При заданном ItemID Price указывается в валюте заказа.
type AddLineItemRequest struct {
	ItemID    *uuid.UUID `json:"item_id,omitempty"`
	ProductID uuid.UUID  `json:"product_id"`
	Quantity  *int       `json:"quantity,omitempty" validate:"omitempty,min=1"`
	Price     *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Title     *string    `json:"title,omitempty" validate:"omitempty,max=300"`
}

// UpdateOrderStatusRequest представляет запрос на обновление статуса заказа
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}

// ApplyPromoRequest привязывает промокод к заказу
type ApplyPromoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// SetDeliveryRequest выбирает способ доставки
type SetDeliveryRequest struct {
	DeliveryID uuid.UUID `json:"delivery_id" validate:"required"`
}

// PaymentFailureReason причина отказа в оплате
type PaymentFailureReason string

const (
	PaymentReasonInsufficientFunds PaymentFailureReason = "insufficient_funds"
)

// PaymentResult результат оплаты с баланса. Нехватка средств не считается ошибкой.
type PaymentResult struct {
	Paid    bool                 `json:"paid"`
	Reason  PaymentFailureReason `json:"reason,omitempty"`
	Balance float64              `json:"balance"`
	Order   *Order               `json:"order"`
}

// OrderFilter фильтр списка заказов
type OrderFilter struct {
	Status *OrderStatus
	UserID *uuid.UUID
	Limit  int
	Offset int
}
