package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"storefront/internal/config"
	"storefront/internal/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &DB{DB: sqlDB}, mock
}

func TestHealth(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection reset"))

	if err := db.Health(); err != nil {
		t.Fatalf("expected healthy database, got %v", err)
	}
	if err := db.Health(); err == nil {
		t.Fatalf("expected failed ping to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNilDB(t *testing.T) {
	for name, db := range map[string]*DB{"nil pointer": nil, "empty": {}} {
		if err := db.Health(); err == nil {
			t.Fatalf("%s: health must fail for uninitialised pool", name)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("%s: close must be a no-op, got %v", name, err)
		}
	}
}

func TestConnect_Failure(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.DatabaseConfig{Host: "127.0.0.1", Port: "0", User: "storefront", Password: "secret", DBName: "storefront", SSLMode: "disable"}
	if _, err := Connect(cfg, log); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestClose(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	mock.ExpectClose()
	if err := (&DB{DB: sqlDB}).Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTransaction(context.Background(), TxOptions{}, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE users SET balance = 1")
		return err
	})
	if err != nil {
		t.Fatalf("expected commit, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.WithTransaction(context.Background(), TxOptions{}, func(tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithRetry_RetriesSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := db.WithRetry(context.Background(), TxOptions{MaxRetries: 2}, func(tx *sql.Tx) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := db.WithRetry(context.Background(), TxOptions{MaxRetries: 3}, func(tx *sql.Tx) error {
		calls++
		return &pq.Error{Code: UniqueViolation}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single failed attempt, got calls=%d err=%v", calls, err)
	}
}

func TestClassifyError(t *testing.T) {
	if ClassifyError(&pq.Error{Code: "40P01"}) != ErrorClassDeadlock {
		t.Fatalf("expected deadlock class")
	}
	if ClassifyError(errors.New("plain")) != ErrorClassPermanent {
		t.Fatalf("expected permanent class for plain error")
	}
	if !IsUniqueViolation(fmt.Errorf("wrap: %w", &pq.Error{Code: UniqueViolation})) {
		t.Fatalf("expected wrapped unique violation detected")
	}
	if IsRetryable(&pq.Error{Code: UniqueViolation}) {
		t.Fatalf("unique violation must not be retryable")
	}
	if !IsForeignKeyViolation(fmt.Errorf("delete promo: %w", &pq.Error{Code: "23503"})) {
		t.Fatalf("expected foreign key violation detected")
	}
	if IsForeignKeyViolation(&pq.Error{Code: UniqueViolation}) {
		t.Fatalf("unique violation is not a foreign key violation")
	}
}
