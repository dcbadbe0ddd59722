package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
)

var meetingColumns = []string{
	"id", "meeting_id", "internal_id", "server_id", "ended", "load",
	"create_query", "created_at", "moved_to",
}

func scanMeeting(row pgx.Row) (*Meeting, error) {
	m := &Meeting{}
	var query string
	var movedTo *string
	err := row.Scan(&m.ID, &m.MeetingID, &m.InternalID, &m.ServerID, &m.Ended,
		&m.Load, &query, &m.CreatedAt, &movedTo)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan meeting: %w", err)
	}
	m.CreateQuery = bbb.ParamsFromRawQuery(query)
	m.MovedTo = movedTo
	return m, nil
}

// GetMeetingByID looks up a meeting by its surrogate key, following no
// moved_to redirection - callers that need the redirected target call
// ResolveMovedTo themselves.
func (r *Registry) GetMeetingByID(ctx context.Context, id string) (*Meeting, error) {
	sql, args, err := Select(meetingColumns...).
		From("meetings").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return scanMeeting(r.pool.QueryRow(ctx, sql, args...))
}

// GetRunningMeeting looks up a meeting by its externally visible
// meetingID, excluding rows that have ended.
func (r *Registry) GetRunningMeeting(ctx context.Context, meetingID string) (*Meeting, error) {
	sql, args, err := Select(meetingColumns...).
		From("meetings").
		Where(sq.Eq{"meeting_id": meetingID, "ended": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return scanMeeting(r.pool.QueryRow(ctx, sql, args...))
}

// GetMeetingByInternalID looks up a meeting by the id BBB itself
// assigned once the create call landed.
func (r *Registry) GetMeetingByInternalID(ctx context.Context, internalID string) (*Meeting, error) {
	sql, args, err := Select(meetingColumns...).
		From("meetings").
		Where("internal_id = ?", internalID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return scanMeeting(r.pool.QueryRow(ctx, sql, args...))
}

// ResolveMovedTo walks the moved_to chain to its end, returning the
// live meeting a caller following redirects should ultimately reach.
func (r *Registry) ResolveMovedTo(ctx context.Context, m *Meeting) (*Meeting, error) {
	seen := map[string]bool{m.ID: true}
	for m.MovedTo != nil {
		if seen[*m.MovedTo] {
			return nil, fmt.Errorf("store: moved_to cycle at meeting %s", m.ID)
		}
		next, err := r.GetMeetingByID(ctx, *m.MovedTo)
		if err != nil {
			return nil, err
		}
		seen[next.ID] = true
		m = next
	}
	return m, nil
}

// CreateMeeting inserts a placeholder row with TempInternalID before
// the create call is sent upstream. The row reserves the meetingID so
// concurrent join/create races see it as already in flight.
func (r *Registry) CreateMeeting(ctx context.Context, meetingID, serverID string, query bbb.Params) (*Meeting, error) {
	sql, args, err := Insert("meetings").
		Columns("meeting_id", "internal_id", "server_id", "ended", "load", "create_query").
		Values(meetingID, TempInternalID, serverID, false, 0, query.String()).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	m := &Meeting{
		MeetingID:   meetingID,
		InternalID:  TempInternalID,
		ServerID:    serverID,
		CreateQuery: query,
	}
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: create meeting: %w", err)
	}
	return m, nil
}

// DeleteMeeting removes a meeting row outright. Used to roll back a
// TEMP placeholder when the upstream create call itself fails.
func (r *Registry) DeleteMeeting(ctx context.Context, id string) error {
	sql, args, err := Delete("meetings").Where("id = ?", id).ToSql()
	if err != nil {
		return fmt.Errorf("store: build query: %w", err)
	}
	_, err = r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("store: delete meeting: %w", err)
	}
	return nil
}

// SetInternalID replaces a meeting's TempInternalID placeholder once
// BBB's create response reports the real internal meeting id.
func (r *Registry) SetInternalID(ctx context.Context, id, internalID string) error {
	return r.updateMeeting(ctx, id, map[string]interface{}{"internal_id": internalID})
}

// SetLoad records the weight this meeting contributes to its server's
// load (the create call's load parameter, or the value carried over on
// a move), used by placement to pick the least loaded server.
func (r *Registry) SetLoad(ctx context.Context, id string, load int) error {
	return r.updateMeeting(ctx, id, map[string]interface{}{"load": load})
}

// SetEnded marks a meeting as no longer running. Ended meetings are
// never chosen by placement and are excluded from poll candidates.
func (r *Registry) SetEnded(ctx context.Context, id string, ended bool) error {
	return r.updateMeeting(ctx, id, map[string]interface{}{"ended": ended})
}

// SetMovedTo records that a meeting was migrated to a fresh row on a
// different server, leaving a forward pointer so clients that still
// hold the old meetingID rejoin at the right place.
func (r *Registry) SetMovedTo(ctx context.Context, id, movedToID string) error {
	return r.updateMeeting(ctx, id, map[string]interface{}{"moved_to": movedToID})
}

func (r *Registry) updateMeeting(ctx context.Context, id string, set map[string]interface{}) error {
	b := Update("meetings")
	for col, val := range set {
		b = b.Set(col, val)
	}
	sql, args, err := b.Where("id = ?", id).ToSql()
	if err != nil {
		return fmt.Errorf("store: build query: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("store: update meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMeetingsByServer returns every non-ended meeting currently
// assigned to a server, used by the panic migrator to enumerate what
// needs to be evacuated.
func (r *Registry) ListMeetingsByServer(ctx context.Context, serverID string) ([]*Meeting, error) {
	sql, args, err := Select(meetingColumns...).
		From("meetings").
		Where(sq.Eq{"server_id": serverID, "ended": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return r.queryMeetings(ctx, sql, args...)
}

// ListCandidateMeetingsForPoll returns non-ended, non-TEMP meetings
// old enough that BBB has had time to confirm their creation - the
// poller's per-meeting liveness sweep skips anything younger than the
// grace period to avoid racing a create call still in flight.
func (r *Registry) ListCandidateMeetingsForPoll(ctx context.Context, grace time.Duration) ([]*Meeting, error) {
	cutoff := time.Now().Add(-grace)
	sql, args, err := Select(meetingColumns...).
		From("meetings").
		Where(sq.Eq{"ended": false}).
		Where(sq.NotEq{"internal_id": TempInternalID}).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	return r.queryMeetings(ctx, sql, args...)
}

func (r *Registry) queryMeetings(ctx context.Context, sql string, args ...interface{}) ([]*Meeting, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// ServerLoad is one row of the aggregate load-per-server report used
// by placement's minimum-load tie-breaking step.
type ServerLoad struct {
	ServerID string
	Load     int
}

// ListServersWithLoad sums the live load across each server's
// non-ended meetings; it is the load source placement uses.
func (r *Registry) ListServersWithLoad(ctx context.Context) ([]ServerLoad, error) {
	sql, args, err := Select("server_id", "COALESCE(SUM(load), 0)").
		From("meetings").
		Where(sq.Eq{"ended": false}).
		GroupBy("server_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build query: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list server load: %w", err)
	}
	defer rows.Close()

	var loads []ServerLoad
	for rows.Next() {
		var l ServerLoad
		if err := rows.Scan(&l.ServerID, &l.Load); err != nil {
			return nil, fmt.Errorf("store: scan server load: %w", err)
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}
