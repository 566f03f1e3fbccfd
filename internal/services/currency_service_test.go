package services

import (
	"context"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/redis"

	"github.com/DATA-DOG/go-sqlmock"
	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func newTestCurrencyService(t *testing.T) (*CurrencyService, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock := newMockDB(t)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := redis.New(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}), newTestLogger())
	t.Cleanup(func() { _ = client.Close() })

	return NewCurrencyService(db, newTestLogger(), client, &config.CurrencyConfig{CacheTTLMinutes: 5}), mock, mr
}

func currencyRow(id uuid.UUID, rate float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "code", "rate", "display"}).
		AddRow(id.String(), "Euro", "EUR", rate, "€")
}

func TestCurrencyService_GetRate_CachesValue(t *testing.T) {
	service, mock, mr := newTestCurrencyService(t)

	id := uuid.New()
	mock.ExpectQuery("SELECT id, name, code, rate, display FROM currencies").
		WithArgs(id).
		WillReturnRows(currencyRow(id, 1.5))

	for i := 0; i < 2; i++ {
		rate, err := service.GetRate(context.Background(), id)
		if err != nil {
			t.Fatalf("attempt %d: expected success, got %v", i, err)
		}
		if rate != 1.5 {
			t.Fatalf("attempt %d: expected 1.5, got %v", i, rate)
		}
	}

	key := redis.GenerateKey(redis.KeyPrefixCurrency, id.String())
	if !mr.Exists(key) {
		t.Fatalf("expected %s to be cached", key)
	}
	if ttl := mr.TTL(key); ttl != 5*time.Minute {
		t.Fatalf("expected ttl 5m, got %v", ttl)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("second call must hit the cache: %v", err)
	}
}

func TestCurrencyService_UpdateRate_InvalidatesCache(t *testing.T) {
	service, mock, mr := newTestCurrencyService(t)

	id := uuid.New()
	key := redis.GenerateKey(redis.KeyPrefixCurrency, id.String())
	if err := mr.Set(key, "1.5"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	mock.ExpectExec("UPDATE currencies SET rate").
		WithArgs(2.0, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM currencies").
		WithArgs(id).
		WillReturnRows(currencyRow(id, 2))

	c, err := service.UpdateRate(context.Background(), id, 2)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if c.Rate != 2 {
		t.Fatalf("expected rate 2, got %v", c.Rate)
	}
	if mr.Exists(key) {
		t.Fatalf("expected cache entry to be removed")
	}
}

func TestCurrencyService_UpdateRate_Errors(t *testing.T) {
	service, mock, _ := newTestCurrencyService(t)

	if _, err := service.UpdateRate(context.Background(), uuid.New(), 0); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	mock.ExpectExec("UPDATE currencies SET rate").WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := service.UpdateRate(context.Background(), uuid.New(), 3); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCurrencyService_WithoutCache(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewCurrencyService(db, newTestLogger(), nil, nil)

	id := uuid.New()
	mock.ExpectQuery("FROM currencies").WithArgs(id).WillReturnRows(currencyRow(id, 0.9))
	mock.ExpectQuery("FROM currencies").WithArgs(id).WillReturnRows(sqlmock.NewRows(nil))

	if rate, err := service.GetRate(context.Background(), id); err != nil || rate != 0.9 {
		t.Fatalf("expected 0.9, got %v (%v)", rate, err)
	}
	if _, err := service.GetRate(context.Background(), id); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCurrencyService_CreateCurrency(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewCurrencyService(db, newTestLogger(), nil, nil)

	mock.ExpectExec("INSERT INTO currencies").
		WithArgs(sqlmock.AnyArg(), "Euro", "EUR", 1.1, "€").
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, err := service.CreateCurrency(context.Background(), &models.CreateCurrencyRequest{Name: "Euro", Code: "EUR", Rate: 1.1, Display: "€"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if c.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}

	if _, err := service.CreateCurrency(context.Background(), &models.CreateCurrencyRequest{Name: "Bad", Rate: -1}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
