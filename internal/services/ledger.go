package services

import (
	"storefront/internal/money"

	"github.com/shopspring/decimal"
)

// lineItem строка с количеством и ценой: позиция заказа или корзины
type lineItem interface {
	LineQuantity() int
	LinePrice() float64
}

// LineItemsTotal возвращает сумму quantity * price по всем строкам.
func LineItemsTotal[T lineItem](items []T) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(money.Mul(item.LinePrice(), item.LineQuantity()))
	}
	return total.InexactFloat64()
}
