package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
)

func scanServer(row pgx.Row) (*Server, error) {
	s := &Server{}
	err := row.Scan(&s.ID, &s.ServerID, &s.URL, &s.Secret, &s.State,
		&s.Reachable, &s.Unreachable, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan server: %w", err)
	}
	return s, nil
}

var serverColumns = []string{
	"id", "server_id", "url", "secret", "state",
	"reachable", "unreachable", "created_at", "updated_at",
}

// GetServer looks up a server by its surrogate id.
func (r *Registry) GetServer(ctx context.Context, id string) (*Server, error) {
	sql, args, err := Select(serverColumns...).
		From("servers").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return scanServer(r.pool.QueryRow(ctx, sql, args...))
}

// GetServerByServerID looks up a server by its operator-assigned id.
func (r *Registry) GetServerByServerID(ctx context.Context, serverID int64) (*Server, error) {
	sql, args, err := Select(serverColumns...).
		From("servers").
		Where("server_id = ?", serverID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return scanServer(r.pool.QueryRow(ctx, sql, args...))
}

// GetServerByURLPrefix looks up the server whose URL is a prefix of
// the given request path. Nothing in this repository calls it; it is
// kept as a lookup primitive for external collaborators.
func (r *Registry) GetServerByURLPrefix(ctx context.Context, url string) (*Server, error) {
	sql, args, err := Select(serverColumns...).
		From("servers").
		Where("? LIKE url || '%'", url).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return scanServer(r.pool.QueryRow(ctx, sql, args...))
}

// ListServers returns every server in the fleet, ordered by server_id.
func (r *Registry) ListServers(ctx context.Context) ([]*Server, error) {
	sql, args, err := Select(serverColumns...).
		From("servers").
		OrderBy("server_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list servers: %w", err)
	}
	defer rows.Close()

	var servers []*Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// ListEligibleServers returns servers a new meeting could be placed
// on: ENABLED state, independent of reachability (placement.GetNextServer
// applies the reachability filter itself).
func (r *Registry) ListEligibleServers(ctx context.Context) ([]*Server, error) {
	sql, args, err := Select(serverColumns...).
		From("servers").
		Where("state = ?", StateEnabled).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list eligible servers: %w", err)
	}
	defer rows.Close()

	var servers []*Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// CreateServer inserts a new backend. Reachable/Unreachable are stored
// as given (zero for a fresh Server value); the poller brings a server
// with a zero reachable counter into rotation once it has observed it
// healthy.
func (r *Registry) CreateServer(ctx context.Context, s *Server) error {
	sql, args, err := Insert("servers").
		Columns("server_id", "url", "secret", "state", "reachable", "unreachable").
		Values(s.ServerID, s.URL, s.Secret, s.State, s.Reachable, s.Unreachable).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build query: %w", err)
	}
	return r.pool.QueryRow(ctx, sql, args...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// UpdateServer persists every mutable column of s.
func (r *Registry) UpdateServer(ctx context.Context, s *Server) error {
	sql, args, err := Update("servers").
		Set("url", s.URL).
		Set("secret", s.Secret).
		Set("state", s.State).
		Set("reachable", s.Reachable).
		Set("unreachable", s.Unreachable).
		Set("updated_at", sq.Expr("now()")).
		Where("id = ?", s.ID).
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build query: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("store: update server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteServer removes a server. Callers are expected to have already
// migrated away any meetings still assigned to it.
func (r *Registry) DeleteServer(ctx context.Context, id string) error {
	sql, args, err := Delete("servers").Where("id = ?", id).ToSql()
	if err != nil {
		return fmt.Errorf("store: build query: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("store: delete server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
