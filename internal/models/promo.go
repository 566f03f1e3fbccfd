package models

import (
	"time"

	"storefront/internal/money"
)

// DiscountKind описывает тип промокода.
type DiscountKind string

const (
	DiscountKindFixed    DiscountKind = "fixed"
	DiscountKindRelative DiscountKind = "relative"
)

// Valid проверяет, что значение входит в перечисление.
func (k DiscountKind) Valid() bool {
	return k == DiscountKindFixed || k == DiscountKindRelative
}

// ReuseKind описывает, сколько раз можно применять промокод.
type ReuseKind string

const (
	ReuseKindSingleUse ReuseKind = "single_use"
	ReuseKindReusable  ReuseKind = "reusable"
)

// Valid проверяет, что значение входит в перечисление.
func (k ReuseKind) Valid() bool {
	return k == ReuseKindSingleUse || k == ReuseKindReusable
}

// PromoCode представляет промокод в системе.
// DiscountValue со знаком: отрицательное значение уменьшает сумму заказа.
type PromoCode struct {
	Code          string       `json:"code" db:"code"`
	DiscountKind  DiscountKind `json:"discount_kind" db:"discount_kind"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	ReuseKind     ReuseKind    `json:"reuse_kind" db:"reuse_kind"`
	Active        bool         `json:"active" db:"active"`
	StartDate     *time.Time   `json:"start_date,omitempty" db:"start_date"`
	EndDate       *time.Time   `json:"end_date,omitempty" db:"end_date"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// IsValid сообщает, действует ли промокод на дату now.
// Обе границы периода включительные, любая может отсутствовать.
func (p *PromoCode) IsValid(now time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	day := dateOnly(now)
	if p.StartDate != nil && day.Before(dateOnly(*p.StartDate)) {
		return false
	}
	if p.EndDate != nil && day.After(dateOnly(*p.EndDate)) {
		return false
	}
	return true
}

// Discount возвращает скидку для суммы base. Знак не меняется и не ограничивается.
func (p *PromoCode) Discount(base float64) float64 {
	if p == nil {
		return 0
	}
	switch p.DiscountKind {
	case DiscountKindFixed:
		return p.DiscountValue
	case DiscountKindRelative:
		return money.Percent(base, p.DiscountValue)
	default:
		return 0
	}
}

// CalendarDay оставляет от момента только дату в его собственной зоне, как полночь UTC.
// Граница периода из запроса с любым смещением хранится в DATE-колонке без сдвига на сутки.
func CalendarDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	day := dateOnly(*t)
	return &day
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreatePromoCodeRequest описывает запрос на создание промокода.
type CreatePromoCodeRequest struct {
	Code          string       `json:"code" validate:"required,max=64"`
	DiscountKind  DiscountKind `json:"discount_kind" validate:"required"`
	DiscountValue float64      `json:"discount_value"`
	ReuseKind     ReuseKind    `json:"reuse_kind,omitempty"` // пусто = reusable
	Active        bool         `json:"active"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	EndDate       *time.Time   `json:"end_date,omitempty"`
}

// UpdatePromoCodeRequest описывает запрос на обновление промокода.
type UpdatePromoCodeRequest struct {
	DiscountKind  DiscountKind `json:"discount_kind" validate:"required"`
	DiscountValue float64      `json:"discount_value"`
	ReuseKind     ReuseKind    `json:"reuse_kind,omitempty"`
	Active        bool         `json:"active"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	EndDate       *time.Time   `json:"end_date,omitempty"`
}

// GeneratePromoCodesRequest описывает пакетную генерацию случайных промокодов.
type GeneratePromoCodesRequest struct {
	DiscountKind  DiscountKind `json:"discount_kind" validate:"required"`
	ReuseKind     ReuseKind    `json:"reuse_kind" validate:"required"`
	DiscountValue float64      `json:"discount_value"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	EndDate       *time.Time   `json:"end_date,omitempty"`
	CodeLength    int          `json:"code_length,omitempty" validate:"omitempty,min=4,max=64"` // 0 = из конфигурации
	Count         int          `json:"count,omitempty" validate:"omitempty,min=1,max=1000"`     // 0 = один код
}
