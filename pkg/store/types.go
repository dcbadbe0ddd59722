package store

import (
	"time"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
)

// ServerState enumerates a Server's lifecycle state.
type ServerState string

// Server lifecycle states.
const (
	StateEnabled  ServerState = "ENABLED"
	StateDisabled ServerState = "DISABLED"
	StatePanic    ServerState = "PANIC"
)

// Server is one BigBlueButton backend in the fleet.
type Server struct {
	ID       string // surrogate key
	ServerID int64  // operator-assigned, unique
	URL      string
	Secret   string
	State    ServerState

	Reachable   int // 0..20
	Unreachable int // 0..2

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BBB returns the bbb.Server view used to sign and send requests.
func (s *Server) BBB() *bbb.Server {
	return &bbb.Server{ID: s.ID, URL: s.URL, Secret: s.Secret}
}

// Eligible reports whether a server can receive newly placed meetings:
// ENABLED and with a positive reachability counter.
func (s *Server) Eligible() bool {
	return s.State == StateEnabled && s.Reachable > 0
}

// TempInternalID is the sentinel internal_id used while a create call
// is in flight upstream.
const TempInternalID = "**TEMP**"

// Meeting is one registry row binding a public meeting id to a server.
type Meeting struct {
	ID          string // surrogate key
	MeetingID   string // externally visible id
	InternalID  string // BBB's id, or TempInternalID
	ServerID    string // FK to Server.ID
	Ended       bool
	Load        int
	CreateQuery bbb.Params
	CreatedAt   time.Time
	MovedTo     *string // FK to Meeting.ID
}

// IsTemp reports whether the meeting is still waiting for BBB to
// confirm its internal id.
func (m *Meeting) IsTemp() bool {
	return m.InternalID == TempInternalID
}
