package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func TestRandomCode_Alphabet(t *testing.T) {
	code, err := randomCode(15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != 15 {
		t.Fatalf("expected 15 chars, got %d", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("unexpected rune %q in %s", r, code)
		}
	}
}

func TestGeneratePromoCodes_RetriesOnCollision(t *testing.T) {
	service, mock, done := newTestPromoService(t, &config.PromoConfig{CodeLength: 8, MaxAttempts: 5})
	defer done()

	codes := []string{"AAAAAAAA", "BBBBBBBB"}
	service.random = func(n int) (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	mock.ExpectExec("INSERT INTO promo_codes").
		WithArgs("AAAAAAAA", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("INSERT INTO promo_codes").
		WithArgs("BBBBBBBB", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := service.GeneratePromoCodes(context.Background(), &models.GeneratePromoCodesRequest{
		DiscountKind:  models.DiscountKindRelative,
		ReuseKind:     models.ReuseKindSingleUse,
		DiscountValue: -5,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(created) != 1 || created[0].Code != "BBBBBBBB" {
		t.Fatalf("unexpected codes: %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGeneratePromoCodes_Exhausted(t *testing.T) {
	service, mock, done := newTestPromoService(t, &config.PromoConfig{MaxAttempts: 3})
	defer done()

	service.random = func(n int) (string, error) { return "SAME", nil }
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO promo_codes").WillReturnError(&pq.Error{Code: "23505"})
	}

	_, err := service.GeneratePromoCodes(context.Background(), &models.GeneratePromoCodesRequest{
		DiscountKind: models.DiscountKindFixed,
		ReuseKind:    models.ReuseKindReusable,
	})
	if !apperror.Is(err, apperror.KindExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGeneratePromoCodes_Batch(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	var lengths []int
	service.random = func(n int) (string, error) {
		lengths = append(lengths, n)
		return randomCode(n)
	}
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO promo_codes").WillReturnResult(sqlmock.NewResult(1, 1))
	}

	created, err := service.GeneratePromoCodes(context.Background(), &models.GeneratePromoCodesRequest{
		DiscountKind: models.DiscountKindFixed,
		ReuseKind:    models.ReuseKindReusable,
		Count:        3,
	})
	if err != nil || len(created) != 3 {
		t.Fatalf("expected 3 codes, got %d (%v)", len(created), err)
	}
	for _, n := range lengths {
		if n != defaultCodeLength {
			t.Fatalf("expected default length %d, got %d", defaultCodeLength, n)
		}
	}
}

func TestGeneratePromoCodes_InsertFailure(t *testing.T) {
	service, mock, done := newTestPromoService(t, nil)
	defer done()

	mock.ExpectExec("INSERT INTO promo_codes").WillReturnError(errors.New("disk full"))

	_, err := service.GeneratePromoCodes(context.Background(), &models.GeneratePromoCodesRequest{
		DiscountKind: models.DiscountKindFixed,
		ReuseKind:    models.ReuseKindReusable,
	})
	if err == nil || apperror.Is(err, apperror.KindExhausted) {
		t.Fatalf("expected plain internal error, got %v", err)
	}
}
