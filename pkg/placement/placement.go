// Package placement chooses which server a newly created meeting
// lands on.
package placement

import (
	"errors"
	"math/rand"

	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// ErrNoServerAvailable is returned when no candidate server is both
// enabled and currently reachable.
var ErrNoServerAvailable = errors.New("placement: no server available")

// LoadSource supplies the current load of a server, keyed by
// store.Server.ID. The gateway and the panic migrator pass a closure
// backed by the registry's aggregate query.
type LoadSource func(serverID string) int

// GetNextServer picks one server from candidates as the target for a
// new meeting: filter to ENABLED servers with a positive reachability
// counter, find the minimum load among them, then break ties uniformly
// at random. Candidates is typically the full fleet; callers narrow it
// to restrict placement (e.g. excluding a server mid-migration).
func GetNextServer(candidates []*store.Server, load LoadSource) (*store.Server, error) {
	var eligible []*store.Server
	for _, s := range candidates {
		if s.Eligible() {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoServerAvailable
	}

	minLoad := load(eligible[0].ID)
	for _, s := range eligible[1:] {
		if l := load(s.ID); l < minLoad {
			minLoad = l
		}
	}

	var tied []*store.Server
	for _, s := range eligible {
		if load(s.ID) == minLoad {
			tied = append(tied, s)
		}
	}

	return tied[rand.Intn(len(tied))], nil
}
