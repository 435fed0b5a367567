package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
)

var (
	// ErrNoPendingException is returned by ClaimPending when the queue is empty.
	ErrNoPendingException = errors.New("no pending exception")
	ErrNotFound           = errors.New("not found")
)

// DBTX is the subset of *pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store implements exception, knowledge and vector persistence on PostgreSQL + pgvector.
type Store struct {
	db         DBTX
	casesTable string
	docsTable  string
	dim        int
}

// Open connects a pgx pool configured from cfg.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return pool, nil
}

// New wraps db. Table names come from validated configuration.
func New(db DBTX, vec config.VectorConfig) *Store {
	return &Store{
		db:         db,
		casesTable: vec.CasesTable,
		docsTable:  vec.DocsTable,
		dim:        vec.Dim,
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
