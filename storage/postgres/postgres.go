// Package postgres implements the persistence gateway on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Gateway is the PostgreSQL persistence gateway. It backs the sync
// engine's store, the scheduler's schedule store and quota persistence.
type Gateway struct {
	db *sqlx.DB
	tm *TransactionManager
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Gateway, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewGateway(db), nil
}

// NewGateway wraps an existing connection pool.
func NewGateway(db *sqlx.DB) *Gateway {
	return &Gateway{db: db, tm: NewTransactionManager(db)}
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}
