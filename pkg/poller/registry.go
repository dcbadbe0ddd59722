package poller

import (
	"context"
	"time"

	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// Registry is the slice of pkg/store the scheduler needs, satisfied
// by *store.Registry; tests substitute an in-memory fake.
type Registry interface {
	GetServer(ctx context.Context, id string) (*store.Server, error)
	ListServers(ctx context.Context) ([]*store.Server, error)
	UpdateServer(ctx context.Context, s *store.Server) error
	ListCandidateMeetingsForPoll(ctx context.Context, grace time.Duration) ([]*store.Meeting, error)
	SetEnded(ctx context.Context, id string, ended bool) error
}
