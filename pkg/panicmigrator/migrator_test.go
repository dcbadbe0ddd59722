package panicmigrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// fakeRegistry is a minimal in-memory stand-in for *store.Registry,
// just enough to exercise migration without a database.
type fakeRegistry struct {
	servers  map[string]*store.Server
	meetings map[string]*store.Meeting
	nextID   int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		servers:  map[string]*store.Server{},
		meetings: map[string]*store.Meeting{},
	}
}

func (f *fakeRegistry) UpdateServer(ctx context.Context, s *store.Server) error {
	f.servers[s.ID] = s
	return nil
}

func (f *fakeRegistry) ListEligibleServers(ctx context.Context) ([]*store.Server, error) {
	var out []*store.Server
	for _, s := range f.servers {
		if s.Eligible() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRegistry) ListServersWithLoad(ctx context.Context) ([]store.ServerLoad, error) {
	return nil, nil
}

func (f *fakeRegistry) ListMeetingsByServer(ctx context.Context, serverID string) ([]*store.Meeting, error) {
	var out []*store.Meeting
	for _, m := range f.meetings {
		if m.ServerID == serverID && !m.Ended {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRegistry) CreateMeeting(ctx context.Context, meetingID, serverID string, query bbb.Params) (*store.Meeting, error) {
	f.nextID++
	m := &store.Meeting{
		ID:          fmt.Sprintf("m%d", f.nextID),
		MeetingID:   meetingID,
		InternalID:  store.TempInternalID,
		ServerID:    serverID,
		CreateQuery: query,
	}
	f.meetings[m.ID] = m
	return m, nil
}

func (f *fakeRegistry) DeleteMeeting(ctx context.Context, id string) error {
	delete(f.meetings, id)
	return nil
}

func (f *fakeRegistry) SetEnded(ctx context.Context, id string, ended bool) error {
	f.meetings[id].Ended = ended
	return nil
}

func (f *fakeRegistry) SetInternalID(ctx context.Context, id, internalID string) error {
	f.meetings[id].InternalID = internalID
	return nil
}

func (f *fakeRegistry) SetLoad(ctx context.Context, id string, load int) error {
	f.meetings[id].Load = load
	return nil
}

func (f *fakeRegistry) SetMovedTo(ctx context.Context, id, movedToID string) error {
	f.meetings[id].MovedTo = &movedToID
	return nil
}

func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := bbb.EndpointFromPath(r)
		switch endpoint {
		case "end":
			w.Write([]byte(`<response><returncode>SUCCESS</returncode></response>`))
		case "create":
			w.Write([]byte(`<response><returncode>SUCCESS</returncode><internalMeetingID>internal-new</internalMeetingID></response>`))
		default:
			w.Write([]byte(`<response><returncode>FAILED</returncode></response>`))
		}
	}))
}

func TestMigrateEvacuatesRunningMeetings(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	reg := newFakeRegistry()
	panicking := &store.Server{ID: "srv-a", URL: upstream.URL, State: store.StateEnabled, Reachable: 5}
	healthy := &store.Server{ID: "srv-b", URL: upstream.URL, State: store.StateEnabled, Reachable: 5}
	reg.servers[panicking.ID] = panicking
	reg.servers[healthy.ID] = healthy

	meeting, _ := reg.CreateMeeting(context.Background(), "room1", panicking.ID, bbb.NewParams("moderatorPW", "mp"))
	reg.SetInternalID(context.Background(), meeting.ID, "internal-1")

	m := New(reg, bbb.NewClient())
	if err := m.Migrate(context.Background(), panicking); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if panicking.State != store.StatePanic {
		t.Fatalf("expected server to be in PANIC, got %s", panicking.State)
	}
	if !reg.meetings[meeting.ID].Ended {
		t.Fatalf("expected original meeting to be ended")
	}
	if reg.meetings[meeting.ID].MovedTo == nil {
		t.Fatalf("expected moved_to to be set")
	}

	next := reg.meetings[*reg.meetings[meeting.ID].MovedTo]
	if next.ServerID != healthy.ID {
		t.Fatalf("expected migrated meeting on healthy server, got %s", next.ServerID)
	}
	if next.InternalID != "internal-new" {
		t.Fatalf("expected internal id to be updated, got %s", next.InternalID)
	}
}

func TestMigrateIsReentrant(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	reg := newFakeRegistry()
	panicking := &store.Server{ID: "srv-a", URL: upstream.URL, State: store.StatePanic, Reachable: 0}
	reg.servers[panicking.ID] = panicking

	meeting, _ := reg.CreateMeeting(context.Background(), "room1", panicking.ID, bbb.Params{})
	reg.SetEnded(context.Background(), meeting.ID, true)

	m := New(reg, bbb.NewClient())
	if err := m.Migrate(context.Background(), panicking); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(reg.meetings) != 1 {
		t.Fatalf("already-ended meeting should not be recreated")
	}
}
