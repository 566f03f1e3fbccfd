// Package money содержит арифметику денежных сумм. Суммы хранятся как float64
// с двумя знаками после запятой, вычисления идут через decimal.
package money

import "github.com/shopspring/decimal"

// Round2 округляет сумму до копеек
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Mul умножает сумму на количество без потери точности
func Mul(price float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
}

// Percent возвращает base * pct / 100
func Percent(base, pct float64) float64 {
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}

// Sum складывает суммы
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// Convert переводит сумму в валюту отображения по курсу
func Convert(amount, rate float64) float64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).Round(2).InexactFloat64()
}

// FromDisplay переводит сумму в валюте отображения в базовую валюту
func FromDisplay(amount, rate float64) float64 {
	if rate == 0 {
		return amount
	}
	return decimal.NewFromFloat(amount).Div(decimal.NewFromFloat(rate)).InexactFloat64()
}
