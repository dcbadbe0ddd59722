package store

import (
	"github.com/jackc/pgx/v4/pgxpool"
)

// Registry is the persistence layer for Server and Meeting entities.
// It mediates all Postgres access through pgx + squirrel, exactly as
// the teacher's store package does for its backend/meeting states -
// generalized here to the spec's Server/Meeting vocabulary.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry wraps an already-connected pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}
