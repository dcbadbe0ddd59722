package panicmigrator

import (
	"context"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// Registry is the slice of pkg/store the migrator needs, satisfied by
// *store.Registry; tests substitute an in-memory fake.
type Registry interface {
	UpdateServer(ctx context.Context, s *store.Server) error
	ListEligibleServers(ctx context.Context) ([]*store.Server, error)
	ListServersWithLoad(ctx context.Context) ([]store.ServerLoad, error)
	ListMeetingsByServer(ctx context.Context, serverID string) ([]*store.Meeting, error)
	CreateMeeting(ctx context.Context, meetingID, serverID string, query bbb.Params) (*store.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	SetEnded(ctx context.Context, id string, ended bool) error
	SetInternalID(ctx context.Context, id, internalID string) error
	SetLoad(ctx context.Context, id string, load int) error
	SetMovedTo(ctx context.Context, id, movedToID string) error
}
