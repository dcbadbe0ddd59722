package gateway

import (
	"context"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// Registry is the slice of pkg/store's persistence API the gateway
// needs. It is satisfied by *store.Registry; tests substitute an
// in-memory fake instead of standing up Postgres.
type Registry interface {
	GetServer(ctx context.Context, id string) (*store.Server, error)
	GetServerByServerID(ctx context.Context, serverID int64) (*store.Server, error)
	ListServers(ctx context.Context) ([]*store.Server, error)
	ListEligibleServers(ctx context.Context) ([]*store.Server, error)
	ListServersWithLoad(ctx context.Context) ([]store.ServerLoad, error)

	GetRunningMeeting(ctx context.Context, meetingID string) (*store.Meeting, error)
	GetMeetingByID(ctx context.Context, id string) (*store.Meeting, error)
	GetMeetingByInternalID(ctx context.Context, internalID string) (*store.Meeting, error)
	ResolveMovedTo(ctx context.Context, m *store.Meeting) (*store.Meeting, error)
	CreateMeeting(ctx context.Context, meetingID, serverID string, query bbb.Params) (*store.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	SetInternalID(ctx context.Context, id, internalID string) error
	SetLoad(ctx context.Context, id string, load int) error
	SetEnded(ctx context.Context, id string, ended bool) error
	SetMovedTo(ctx context.Context, id, movedToID string) error
}
