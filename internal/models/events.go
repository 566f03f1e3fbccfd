package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType тип доменного события
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderPaid          EventType = "order.paid"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypePriceDropped       EventType = "product.price_dropped"
	EventTypeRestocked          EventType = "product.restocked"
)

// Event событие, публикуемое в Kafka
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// OrderStatusChangedData полезная нагрузка смены статуса
type OrderStatusChangedData struct {
	OrderID   uuid.UUID   `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
}

// PriceDropData полезная нагрузка уведомления о цене
type PriceDropData struct {
	SubscriberIDs []uuid.UUID `json:"subscriber_ids"`
	ProductTitle  string      `json:"product_title"`
	NewPrice      float64     `json:"new_price"`
}

// RestockData полезная нагрузка уведомления о поступлении
type RestockData struct {
	SubscriberIDs []uuid.UUID `json:"subscriber_ids"`
	ProductTitle  string      `json:"product_title"`
}
