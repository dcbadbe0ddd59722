// Package panicmigrator evacuates meetings from a server transitioning
// into PANIC state.
package panicmigrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/placement"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// Migrator moves meetings off a panicking server onto a healthy one.
// It is re-entrant per meeting: meetings already marked ended are
// skipped. Invoking it on a server already in PANIC only skips the
// state write; running meetings still on that server are migrated.
type Migrator struct {
	registry Registry
	client   *bbb.Client
}

// New builds a Migrator.
func New(registry Registry, client *bbb.Client) *Migrator {
	return &Migrator{registry: registry, client: client}
}

// Migrate sets server to PANIC (if not already) and re-creates each of
// its running meetings on a different eligible server, linking
// moved_to so rejoin can follow clients to the new location.
func (m *Migrator) Migrate(ctx context.Context, server *store.Server) error {
	if server.State != store.StatePanic {
		server.State = store.StatePanic
		if err := m.registry.UpdateServer(ctx, server); err != nil {
			return err
		}
	}

	meetings, err := m.registry.ListMeetingsByServer(ctx, server.ID)
	if err != nil {
		return err
	}

	for _, meeting := range meetings {
		m.migrateMeeting(ctx, server, meeting)
	}
	return nil
}

func (m *Migrator) migrateMeeting(ctx context.Context, server *store.Server, meeting *store.Meeting) {
	if meeting.Ended {
		return
	}

	endReq := bbb.EndRequest(server.BBB(), meeting.CreateQuery.Clone())
	if _, err := m.client.Send(ctx, endReq); err != nil {
		log.Warn().Str("meeting", meeting.ID).Err(err).Msg("panic migration: end call failed, continuing")
	}
	if err := m.registry.SetEnded(ctx, meeting.ID, true); err != nil {
		log.Error().Str("meeting", meeting.ID).Err(err).Msg("panic migration: failed to mark meeting ended")
		return
	}

	dest, err := m.pickDestination(ctx, server.ID)
	if err != nil {
		log.Error().Str("meeting", meeting.ID).Err(err).Msg("panic migration: no destination server available")
		return
	}

	next, err := m.registry.CreateMeeting(ctx, meeting.MeetingID, dest.ID, meeting.CreateQuery)
	if err != nil {
		log.Error().Str("meeting", meeting.ID).Err(err).Msg("panic migration: failed to reserve destination row")
		return
	}

	createReq := bbb.CreateRequest(dest.BBB(), meeting.CreateQuery.Clone())
	body, err := m.client.Send(ctx, createReq)
	if err != nil {
		m.registry.DeleteMeeting(ctx, next.ID)
		log.Error().Str("meeting", meeting.ID).Err(err).Msg("panic migration: upstream create failed")
		return
	}
	res, err := bbb.UnmarshalCreateResponse(body)
	if err != nil || !res.Success() {
		m.registry.DeleteMeeting(ctx, next.ID)
		log.Error().Str("meeting", meeting.ID).Msg("panic migration: upstream create rejected")
		return
	}

	if err := m.registry.SetInternalID(ctx, next.ID, res.InternalMeetingID); err != nil {
		log.Error().Str("meeting", next.ID).Err(err).Msg("panic migration: failed to confirm internal id")
	}
	if err := m.registry.SetLoad(ctx, next.ID, meeting.Load); err != nil {
		log.Error().Str("meeting", next.ID).Err(err).Msg("panic migration: failed to carry over load")
	}
	if err := m.registry.SetMovedTo(ctx, meeting.ID, next.ID); err != nil {
		log.Error().Str("meeting", meeting.ID).Err(err).Msg("panic migration: failed to link moved_to")
	}

	log.Info().
		Str("meeting", meeting.MeetingID).
		Str("from", server.ID).
		Str("to", dest.ID).
		Msg("panic migration: meeting recreated")
}

func (m *Migrator) pickDestination(ctx context.Context, exclude string) (*store.Server, error) {
	candidates, err := m.registry.ListEligibleServers(ctx)
	if err != nil {
		return nil, err
	}
	filtered := candidates[:0]
	for _, s := range candidates {
		if s.ID != exclude {
			filtered = append(filtered, s)
		}
	}

	loads, err := m.registry.ListServersWithLoad(ctx)
	byServer := make(map[string]int, len(loads))
	if err == nil {
		for _, l := range loads {
			byServer[l.ServerID] = l.Load
		}
	}
	return placement.GetNextServer(filtered, func(id string) int { return byServer[id] })
}
