package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provider owns the pgx connection pool and implements the unit of work.
// Repositories constructed from the same provider join the transaction the
// unit of work stores in the context.
type Provider struct {
	pool *pgxpool.Pool
}

// NewProvider wraps an established pgx pool.
func NewProvider(pool *pgxpool.Pool) (*Provider, error) {
	if pool == nil {
		return nil, errors.New("postgres: pool is required")
	}
	return &Provider{pool: pool}, nil
}

// Connect dials the database and verifies connectivity before returning a provider.
func Connect(ctx context.Context, dsn string, maxConns int32) (*Provider, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, wrapError("postgres.connect", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wrapError("postgres.connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapError("postgres.connect", err)
	}
	return &Provider{pool: pool}, nil
}

// Close releases the underlying pool.
func (p *Provider) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

// Ping reports datastore reachability.
func (p *Provider) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return errors.New("postgres: provider is not initialised")
	}
	if err := p.pool.Ping(ctx); err != nil {
		return wrapError("postgres.ping", err)
	}
	return nil
}

type txContextKey struct{}

// RunInTx executes fn inside a database transaction. Nested calls join the
// transaction already carried by the context instead of opening a new one.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p == nil || p.pool == nil {
		return errors.New("postgres: provider is not initialised")
	}
	if _, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return wrapError("postgres.tx.begin", err)
	}

	txCtx := context.WithValue(ctx, txContextKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return wrapError("postgres.tx.commit", err)
	}
	return nil
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *Provider) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.pool
}
