package models

import (
	"time"

	"github.com/google/uuid"
)

// SalesGroupBy шаг группировки отчёта по продажам
type SalesGroupBy string

const (
	SalesGroupNone  SalesGroupBy = "none"
	SalesGroupDay   SalesGroupBy = "day"
	SalesGroupWeek  SalesGroupBy = "week"
	SalesGroupMonth SalesGroupBy = "month"
)

// Valid проверяет, что значение входит в перечисление.
func (g SalesGroupBy) Valid() bool {
	switch g {
	case SalesGroupNone, SalesGroupDay, SalesGroupWeek, SalesGroupMonth:
		return true
	default:
		return false
	}
}

// SalesFilter параметры отчёта. Границы периода включительные.
type SalesFilter struct {
	From     time.Time
	To       time.Time
	GroupBy  SalesGroupBy
	TopLimit int
}

// SalesReport сводка по оплаченным заказам в базовой валюте
type SalesReport struct {
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	Revenue       float64       `json:"revenue"`
	OrdersCount   int           `json:"orders_count"`
	AverageCheck  float64       `json:"average_check"`
	DiscountTotal float64       `json:"discount_total"`
	TopProducts   []TopProduct  `json:"top_products"`
	Periods       []SalesPeriod `json:"periods,omitempty"`
	GroupBy       SalesGroupBy  `json:"group_by"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// SalesPeriod метрики за один интервал группировки
type SalesPeriod struct {
	Period      string  `json:"period"`
	Revenue     float64 `json:"revenue"`
	OrdersCount int     `json:"orders_count"`
}

// TopProduct товар из топа продаж
type TopProduct struct {
	ProductID uuid.UUID `json:"product_id"`
	Title     string    `json:"title"`
	Quantity  int       `json:"quantity"`
	Revenue   float64   `json:"revenue"`
}
