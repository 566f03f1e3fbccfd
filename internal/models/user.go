package models

import (
	"time"

	"github.com/google/uuid"
)

// BalanceChangeReason причина изменения баланса
type BalanceChangeReason string

const (
	BalanceChangePayment BalanceChangeReason = "payment"
	BalanceChangeRefund  BalanceChangeReason = "refund"
)

// BalanceChange запись журнала изменений баланса. Журнал только дописывается.
type BalanceChange struct {
	ID        uuid.UUID           `json:"id" db:"id"`
	UserID    uuid.UUID           `json:"user_id" db:"user_id"`
	OrderID   uuid.UUID           `json:"order_id" db:"order_id"`
	Amount    float64             `json:"amount" db:"amount"`
	Reason    BalanceChangeReason `json:"reason" db:"reason"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}
