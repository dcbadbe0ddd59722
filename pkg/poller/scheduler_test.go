package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

type fakeRegistry struct {
	servers  map[string]*store.Server
	meetings []*store.Meeting
	ended    map[string]bool
}

func (f *fakeRegistry) GetServer(ctx context.Context, id string) (*store.Server, error) {
	return f.servers[id], nil
}
func (f *fakeRegistry) ListServers(ctx context.Context) ([]*store.Server, error) {
	var out []*store.Server
	for _, s := range f.servers {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeRegistry) UpdateServer(ctx context.Context, s *store.Server) error {
	f.servers[s.ID] = s
	return nil
}
func (f *fakeRegistry) ListCandidateMeetingsForPoll(ctx context.Context, grace time.Duration) ([]*store.Meeting, error) {
	return f.meetings, nil
}
func (f *fakeRegistry) SetEnded(ctx context.Context, id string, ended bool) error {
	f.ended[id] = ended
	return nil
}

type fakeMigrator struct {
	calls chan string
}

func (f *fakeMigrator) Migrate(ctx context.Context, server *store.Server) error {
	f.calls <- server.ID
	return nil
}

func TestApplyHysteresisEscalatesToPanic(t *testing.T) {
	reg := &fakeRegistry{servers: map[string]*store.Server{}, ended: map[string]bool{}}
	migrator := &fakeMigrator{calls: make(chan string, 1)}
	s := New(reg, bbb.NewClient(), migrator, &Options{})

	server := &store.Server{ID: "srv-a", State: store.StateEnabled, Reachable: 5, Unreachable: 1}
	reg.servers[server.ID] = server

	s.applyHysteresis(context.Background(), server, false)

	if server.Unreachable != maxUnreachable {
		t.Fatalf("expected unreachable counter at threshold, got %d", server.Unreachable)
	}
	if server.State != store.StatePanic {
		t.Fatalf("expected state PANIC, got %s", server.State)
	}

	select {
	case id := <-migrator.calls:
		if id != server.ID {
			t.Fatalf("migrator called for wrong server: %s", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected migrator to be invoked")
	}
}

func TestApplyHysteresisRecoversFromPanic(t *testing.T) {
	reg := &fakeRegistry{servers: map[string]*store.Server{}, ended: map[string]bool{}}
	migrator := &fakeMigrator{calls: make(chan string, 1)}
	s := New(reg, bbb.NewClient(), migrator, &Options{})

	server := &store.Server{ID: "srv-a", State: store.StatePanic, Reachable: maxReachable - 1}
	reg.servers[server.ID] = server

	s.applyHysteresis(context.Background(), server, true)

	if server.Reachable != maxReachable {
		t.Fatalf("expected reachable counter at max, got %d", server.Reachable)
	}
	if server.State != store.StateEnabled {
		t.Fatalf("expected state ENABLED, got %s", server.State)
	}
}

func TestApplyHysteresisCountersClampAndStayIdempotent(t *testing.T) {
	reg := &fakeRegistry{servers: map[string]*store.Server{}, ended: map[string]bool{}}
	migrator := &fakeMigrator{calls: make(chan string, 4)}
	s := New(reg, bbb.NewClient(), migrator, &Options{})

	server := &store.Server{ID: "srv-a", State: store.StateEnabled, Unreachable: maxUnreachable}
	reg.servers[server.ID] = server

	s.applyHysteresis(context.Background(), server, false)
	s.applyHysteresis(context.Background(), server, false)

	if server.Unreachable != maxUnreachable {
		t.Fatalf("unreachable counter should clamp at %d, got %d", maxUnreachable, server.Unreachable)
	}
	select {
	case <-migrator.calls:
	case <-time.After(time.Second):
		t.Fatalf("expected migrator to fire once for the ENABLED server at the threshold")
	}
	if len(migrator.calls) != 0 {
		t.Fatalf("migrator should not fire once state is already PANIC")
	}
}

func TestCheckMeetingLivenessMarksEndedOnNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><returncode>FAILED</returncode><messageKey>notFound</messageKey></response>`))
	}))
	defer upstream.Close()

	reg := &fakeRegistry{servers: map[string]*store.Server{
		"srv-a": {ID: "srv-a", URL: upstream.URL},
	}, ended: map[string]bool{}}
	s := New(reg, bbb.NewClient(), &fakeMigrator{calls: make(chan string, 1)}, &Options{})

	meeting := &store.Meeting{ID: "m1", MeetingID: "room1", ServerID: "srv-a"}
	s.checkMeetingLiveness(context.Background(), meeting)

	if !reg.ended["m1"] {
		t.Fatalf("expected meeting to be marked ended")
	}
}

func TestCheckMeetingLivenessLeavesRunningMeeting(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><returncode>SUCCESS</returncode><running>true</running></response>`))
	}))
	defer upstream.Close()

	reg := &fakeRegistry{servers: map[string]*store.Server{
		"srv-a": {ID: "srv-a", URL: upstream.URL},
	}, ended: map[string]bool{}}
	s := New(reg, bbb.NewClient(), &fakeMigrator{calls: make(chan string, 1)}, &Options{})

	meeting := &store.Meeting{ID: "m1", MeetingID: "room1", ServerID: "srv-a"}
	s.checkMeetingLiveness(context.Background(), meeting)

	if reg.ended["m1"] {
		t.Fatalf("expected meeting to remain running")
	}
}
