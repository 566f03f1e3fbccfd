package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var promoRowColumns = []string{"code", "discount_kind", "discount_value", "reuse_kind", "active", "start_date", "end_date", "created_at", "updated_at"}

func newTestPromoService(t *testing.T, cfg *config.PromoConfig) (*PromoService, sqlmock.Sqlmock, func()) {
	db, mock := newMockDB(t)
	service := NewPromoService(db, newTestLogger(), cfg)
	service.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return service, mock, func() { _ = db.Close() }
}

func promoRow(code string, kind models.DiscountKind, value float64, reuse models.ReuseKind, active bool, start, end interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(promoRowColumns).
		AddRow(code, string(kind), value, string(reuse), active, start, end, now, now)
}

func TestPromoService_CreatePromoCode(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	mock.ExpectExec("INSERT INTO promo_codes").
		WithArgs("SALE10", models.DiscountKindRelative, 10.0, models.ReuseKindReusable, true, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	promo, err := service.CreatePromoCode(context.Background(), &models.CreatePromoCodeRequest{
		Code:          "SALE10",
		DiscountKind:  models.DiscountKindRelative,
		DiscountValue: 10,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if promo.ReuseKind != models.ReuseKindReusable {
		t.Fatalf("expected reusable by default, got %s", promo.ReuseKind)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_CreatePromoCode_Duplicate(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	mock.ExpectExec("INSERT INTO promo_codes").WillReturnError(&pq.Error{Code: "23505"})

	_, err := service.CreatePromoCode(context.Background(), &models.CreatePromoCodeRequest{
		Code:         "DUP",
		DiscountKind: models.DiscountKindFixed,
	})
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPromoService_CreatePromoCode_NegativeValueAccepted(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	mock.ExpectExec("INSERT INTO promo_codes").
		WithArgs("MINUS10", models.DiscountKindFixed, -10.0, models.ReuseKindSingleUse, true, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if _, err := service.CreatePromoCode(context.Background(), &models.CreatePromoCodeRequest{
		Code:          "MINUS10",
		DiscountKind:  models.DiscountKindFixed,
		DiscountValue: -10,
		ReuseKind:     models.ReuseKindSingleUse,
		Active:        true,
	}); err != nil {
		t.Fatalf("negative discount must be accepted, got %v", err)
	}
}

func TestPromoService_CreatePromoCode_WindowStoredAsCalendarDays(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	moscow := time.FixedZone("MSK", 3*60*60)
	newYork := time.FixedZone("EST", -5*60*60)
	start := time.Date(2024, 1, 1, 23, 30, 0, 0, newYork)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, moscow)

	wantStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO promo_codes").
		WithArgs("WINTER", models.DiscountKindFixed, -5.0, models.ReuseKindReusable, true, wantStart, wantEnd, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	promo, err := service.CreatePromoCode(context.Background(), &models.CreatePromoCodeRequest{
		Code:          "WINTER",
		DiscountKind:  models.DiscountKindFixed,
		DiscountValue: -5,
		Active:        true,
		StartDate:     &start,
		EndDate:       &end,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !promo.IsValid(time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("last day of the window must be inclusive, end=%v", promo.EndDate)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_CreatePromoCode_InvalidPayload(t *testing.T) {
	service, _, done := newTestPromoService(t, nil)
	defer done()

	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []*models.CreatePromoCodeRequest{
		{Code: "X", DiscountKind: "percent"},
		{Code: "X", DiscountKind: models.DiscountKindFixed, ReuseKind: "twice"},
		{Code: "X", DiscountKind: models.DiscountKindFixed, StartDate: &start, EndDate: &end},
		{DiscountKind: models.DiscountKindFixed},
	}
	for _, req := range cases {
		if _, err := service.CreatePromoCode(context.Background(), req); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestPromoService_UpdateDeleteAndList(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()
	ctx := context.Background()

	mock.ExpectExec("UPDATE promo_codes").
		WithArgs(models.DiscountKindRelative, 15.0, models.ReuseKindReusable, true, nil, nil, sqlmock.AnyArg(), "NEW").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT code, discount_kind").
		WithArgs("NEW").
		WillReturnRows(promoRow("NEW", models.DiscountKindRelative, 15, models.ReuseKindReusable, true, nil, nil))

	updated, err := service.UpdatePromoCode(ctx, "NEW", &models.UpdatePromoCodeRequest{
		DiscountKind:  models.DiscountKindRelative,
		DiscountValue: 15,
		Active:        true,
	})
	if err != nil || updated.DiscountValue != 15 {
		t.Fatalf("update failed: %v", err)
	}

	mock.ExpectExec("DELETE FROM promo_codes").
		WithArgs("NEW").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := service.DeletePromoCode(ctx, "NEW"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	rows := sqlmock.NewRows(promoRowColumns).
		AddRow("A", "fixed", 5.0, "reusable", true, nil, nil, time.Now(), time.Now()).
		AddRow("B", "relative", 10.0, "single_use", true, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT code, discount_kind").
		WithArgs(50, 0).
		WillReturnRows(rows)

	list, err := service.ListPromoCodes(ctx, 0, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("list failed: %v (len=%d)", err, len(list))
	}
	if list[1].ReuseKind != models.ReuseKindSingleUse {
		t.Fatalf("unexpected reuse kind: %s", list[1].ReuseKind)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_UpdateAndDelete_NotFound(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()
	ctx := context.Background()

	mock.ExpectExec("UPDATE promo_codes").WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := service.UpdatePromoCode(ctx, "MISSING", &models.UpdatePromoCodeRequest{DiscountKind: models.DiscountKindFixed}); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	mock.ExpectExec("DELETE FROM promo_codes").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := service.DeletePromoCode(ctx, "MISSING"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}

	mock.ExpectExec("DELETE FROM promo_codes").WillReturnError(&pq.Error{Code: "23503"})
	if err := service.DeletePromoCode(ctx, "USED"); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for attached code, got %v", err)
	}
}

func TestPromoService_CheckPromoCode(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()
	ctx := context.Background()

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT code, discount_kind").
		WithArgs("JUNE").
		WillReturnRows(promoRow("JUNE", models.DiscountKindFixed, -10, models.ReuseKindReusable, true, start, end))
	if err := service.CheckPromoCode(ctx, "JUNE"); err != nil {
		t.Fatalf("code valid through its end date, got %v", err)
	}

	mock.ExpectQuery("SELECT code, discount_kind").
		WithArgs("OFF").
		WillReturnRows(promoRow("OFF", models.DiscountKindFixed, -10, models.ReuseKindReusable, false, nil, nil))
	if err := service.CheckPromoCode(ctx, "OFF"); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for inactive code, got %v", err)
	}

	mock.ExpectQuery("SELECT code, discount_kind").
		WithArgs("NONE").
		WillReturnError(sql.ErrNoRows)
	if err := service.CheckPromoCode(ctx, "NONE"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPromoService_CheckPromoCode_Repeatable(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	for i := 0; i < 3; i++ {
		mock.ExpectQuery("SELECT code, discount_kind").
			WithArgs("ONCE").
			WillReturnRows(promoRow("ONCE", models.DiscountKindFixed, -5, models.ReuseKindSingleUse, true, nil, nil))
	}
	for i := 0; i < 3; i++ {
		if err := service.CheckPromoCode(context.Background(), "ONCE"); err != nil {
			t.Fatalf("check %d: single-use code must stay valid without enforcement, got %v", i, err)
		}
	}
}

func TestSingleUsePolicy(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	policy := NewUsagePolicy(true)
	orderID := uuid.New()
	promo := &models.PromoCode{Code: "ONCE", ReuseKind: models.ReuseKindSingleUse}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ONCE", orderID, models.OrderStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	if err := policy.CheckUsage(context.Background(), db, promo, orderID); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for used single-use code, got %v", err)
	}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ONCE", orderID, models.OrderStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	if err := policy.CheckUsage(context.Background(), db, promo, orderID); err != nil {
		t.Fatalf("expected unused code to pass, got %v", err)
	}

	reusable := &models.PromoCode{Code: "MANY", ReuseKind: models.ReuseKindReusable}
	if err := policy.CheckUsage(context.Background(), db, reusable, orderID); err != nil {
		t.Fatalf("reusable code must not be checked, got %v", err)
	}

	if err := NewUsagePolicy(false).CheckUsage(context.Background(), db, promo, orderID); err != nil {
		t.Fatalf("default policy must allow reuse, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_GetPromoCode_DBError(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	mock.ExpectQuery("SELECT code, discount_kind").WillReturnError(errors.New("connection reset"))
	_, err := service.GetPromoCode(context.Background(), "X")
	if err == nil || apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
