// README: Transaction manager keeping the active pgx.Tx in the context.
package infra

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// Conn returns the transaction bound to ctx, or db when there is none.
func Conn(ctx context.Context, db *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// PgTxManager runs fn inside a single pgx transaction. Nested calls reuse the
// outer transaction.
type PgTxManager struct {
	db *pgxpool.Pool
}

func NewTxManager(db *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{db: db}
}

func (m *PgTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	ctx = context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("rollback tx: %v (original error: %w)", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit tx: %w", commitErr)
		}
	}()

	return fn(ctx)
}

// InlineTx runs fn with no atomicity: writes made before a failing step stay
// in place. Only for callers that never need rollback.
type InlineTx struct{}

func (InlineTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Snapshotter is an in-memory store that can undo every write made after
// Snapshot by calling the returned restore func.
type Snapshotter interface {
	Snapshot() (restore func())
}

type memTxKey struct{}

// MemoryTx gives the in-memory stores all-or-nothing transactions by
// snapshotting them before fn and restoring them when fn fails. Transactions
// are serialized. Writes made outside a transaction while one is failing are
// lost on restore, so memory stores are meant for tests and bench runs only.
type MemoryTx struct {
	mu     sync.Mutex
	stores []Snapshotter
}

func NewMemoryTx(stores ...Snapshotter) *MemoryTx {
	return &MemoryTx{stores: stores}
}

func (m *MemoryTx) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(memTxKey{}) == m {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	restores := make([]func(), len(m.stores))
	for i, s := range m.stores {
		restores[i] = s.Snapshot()
	}
	rollback := func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err != nil {
			rollback()
		}
	}()

	return fn(context.WithValue(ctx, memTxKey{}, m))
}
