package services

import (
	"context"
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func expectLockBalance(mock sqlmock.Sqlmock, f orderFixture, balance float64) {
	mock.ExpectQuery(`SELECT balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(*f.userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balance))
}

func TestOrderService_Pay_Success(t *testing.T) {
	service, mock, done := newTestOrderService(t, 1)
	defer done()

	f := newOrderFixture()
	f.full, f.total = 125, 125

	mock.ExpectBegin()
	expectLockOrder(mock, f)
	expectLockBalance(mock, f, 200)
	mock.ExpectExec(`UPDATE users SET balance = balance - \$1`).
		WithArgs(125.0, *f.userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET is_paid").
		WithArgs(true, models.OrderStatusPaid, sqlmock.AnyArg(), f.id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO balance_changes").
		WithArgs(sqlmock.AnyArg(), *f.userID, f.id, -125.0, models.BalanceChangePayment, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := service.Pay(context.Background(), f.id)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Paid || result.Balance != 75 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Order.IsPaid || result.Order.Status != models.OrderStatusPaid {
		t.Fatalf("order not marked paid: %+v", result.Order)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderService_Pay_InsufficientFunds(t *testing.T) {
	service, mock, done := newTestOrderService(t, 1)
	defer done()

	f := newOrderFixture()
	f.full, f.total = 125, 125

	mock.ExpectBegin()
	expectLockOrder(mock, f)
	expectLockBalance(mock, f, 100)
	mock.ExpectRollback()

	result, err := service.Pay(context.Background(), f.id)
	if err != nil {
		t.Fatalf("insufficient funds must not be an error, got %v", err)
	}
	if result.Paid || result.Reason != models.PaymentReasonInsufficientFunds || result.Balance != 100 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderService_Pay_GuardedDebitLosesRace(t *testing.T) {
	service, mock, done := newTestOrderService(t, 1)
	defer done()

	f := newOrderFixture()
	f.full, f.total = 50, 50

	mock.ExpectBegin()
	expectLockOrder(mock, f)
	expectLockBalance(mock, f, 60)
	mock.ExpectExec(`UPDATE users SET balance = balance - \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	result, err := service.Pay(context.Background(), f.id)
	if err != nil {
		t.Fatalf("expected declined payment, got %v", err)
	}
	if result.Paid {
		t.Fatalf("payment must be declined: %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderService_Pay_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *orderFixture)
		kind   apperror.Kind
	}{
		{
			name: "already paid",
			mutate: func(f *orderFixture) {
				f.paid = true
				f.status = models.OrderStatusPaid
			},
			kind: apperror.KindConflict,
		},
		{
			name:   "cancelled",
			mutate: func(f *orderFixture) { f.status = models.OrderStatusCancelled },
			kind:   apperror.KindConflict,
		},
		{
			name:   "guest order",
			mutate: func(f *orderFixture) { f.userID = nil },
			kind:   apperror.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock, done := newTestOrderService(t, 1)
			defer done()

			f := newOrderFixture()
			tt.mutate(&f)

			mock.ExpectBegin()
			expectLockOrder(mock, f)
			mock.ExpectRollback()

			if _, err := service.Pay(context.Background(), f.id); !apperror.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestOrderService_Cancel_RefundsPaidOrder(t *testing.T) {
	service, mock, done := newTestOrderService(t, 1)
	defer done()

	f := newOrderFixture()
	f.full, f.total = 125, 125
	f.paid = true
	f.status = models.OrderStatusPaid

	mock.ExpectBegin()
	expectLockOrder(mock, f)
	expectLockBalance(mock, f, 75)
	mock.ExpectExec(`UPDATE users SET balance = balance \+ \$1`).
		WithArgs(125.0, *f.userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO balance_changes").
		WithArgs(sqlmock.AnyArg(), *f.userID, f.id, 125.0, models.BalanceChangeRefund, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders SET is_paid").
		WithArgs(false, models.OrderStatusCancelled, sqlmock.AnyArg(), f.id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := service.Cancel(context.Background(), f.id)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if order.IsPaid || order.Status != models.OrderStatusCancelled {
		t.Fatalf("unexpected order: %+v", order)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderService_Cancel_RepeatDoesNotRefund(t *testing.T) {
	service, mock, done := newTestOrderService(t, 1)
	defer done()

	f := newOrderFixture()
	f.full, f.total = 125, 125
	f.status = models.OrderStatusCancelled

	mock.ExpectBegin()
	expectLockOrder(mock, f)
	mock.ExpectExec("UPDATE orders SET is_paid").
		WithArgs(false, models.OrderStatusCancelled, sqlmock.AnyArg(), f.id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := service.Cancel(context.Background(), f.id); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderService_ChangeStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    models.OrderStatus
		to      models.OrderStatus
		updates bool
		kind    apperror.Kind
	}{
		{name: "new to processing", from: models.OrderStatusNew, to: models.OrderStatusProcessing, updates: true},
		{name: "paid to finished", from: models.OrderStatusPaid, to: models.OrderStatusFinished, updates: true},
		{name: "same status", from: models.OrderStatusProcessing, to: models.OrderStatusProcessing},
		{name: "new to finished", from: models.OrderStatusNew, to: models.OrderStatusFinished, kind: apperror.KindConflict},
		{name: "finished to new", from: models.OrderStatusFinished, to: models.OrderStatusNew, kind: apperror.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock, done := newTestOrderService(t, 1)
			defer done()

			f := newOrderFixture()
			f.status = tt.from

			mock.ExpectBegin()
			expectLockOrder(mock, f)
			if tt.updates {
				mock.ExpectExec("UPDATE orders SET status").
					WithArgs(tt.to, sqlmock.AnyArg(), f.id).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			order, err := service.ChangeStatus(context.Background(), f.id, tt.to)
			if tt.kind != "" {
				if !apperror.Is(err, tt.kind) {
					t.Fatalf("expected %s, got %v", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if order.Status != tt.to {
				t.Fatalf("expected status %s, got %s", tt.to, order.Status)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestOrderService_ChangeStatus_RejectsPaidAndUnknown(t *testing.T) {
	service, _, done := newTestOrderService(t, 1)
	defer done()

	f := newOrderFixture()
	if _, err := service.ChangeStatus(context.Background(), f.id, models.OrderStatusPaid); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for paid, got %v", err)
	}
	if _, err := service.ChangeStatus(context.Background(), f.id, "shipped"); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}
