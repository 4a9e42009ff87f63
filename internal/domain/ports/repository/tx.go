package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque, infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories MUST accept NoTX and fall back to the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a single storage transaction and passes
// the handle to repositories through tx. Returning an error rolls back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
