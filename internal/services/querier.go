package services

import (
	"context"
	"database/sql"
)

// querier общий интерфейс *sql.DB и *sql.Tx для чтения внутри и вне транзакции
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
