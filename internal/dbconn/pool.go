// Package dbconn provides the database connection abstraction used by the
// loader: a pgx/v5 + pgxpool-backed connection pool, a narrow per-table
// transaction interface, and the Flavor abstraction for PostgreSQL vs a
// Redshift-like warehouse. Both flavors speak the Postgres wire protocol, so
// a single driver serves both.
package dbconn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the minimal interface internal/stager and internal/runner depend on.
// Its only real implementation is *Pool; tests may supply a fake.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
	Close()
}

// Tx is a single table's transaction: manual-commit, one table at a time,
// matching the stage-and-publish coordinator's "a connection is open in
// manual-commit mode for this table only" precondition.
type Tx interface {
	Exec(ctx context.Context, sql string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool wraps a pgxpool.Pool.
type Pool struct {
	pool *pgxpool.Pool
}

// Open creates a connection pool for dsn. Both postgres and redshift flavors
// use the same DSN form and driver since Redshift speaks the Postgres wire
// protocol.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbconn: connecting: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Close releases all pooled connections.
func (p *Pool) Close() {
	p.pool.Close()
}

// Begin starts a new transaction.
func (p *Pool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbconn: beginning transaction: %w", err)
	}
	return &pgxTx{tx: tx}, nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, sql string) error {
	if _, err := t.tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("dbconn: exec: %w", err)
	}
	return nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
