package gateway

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/player"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

const testSecret = "shared-secret"

type fakeRegistry struct {
	servers  map[string]*store.Server
	meetings map[string]*store.Meeting
	nextID   int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{servers: map[string]*store.Server{}, meetings: map[string]*store.Meeting{}}
}

func (f *fakeRegistry) GetServer(ctx context.Context, id string) (*store.Server, error) {
	s, ok := f.servers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeRegistry) GetServerByServerID(ctx context.Context, serverID int64) (*store.Server, error) {
	for _, s := range f.servers {
		if s.ServerID == serverID {
			return s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRegistry) ListServers(ctx context.Context) ([]*store.Server, error) {
	var out []*store.Server
	for _, s := range f.servers {
		out = append(out, s)
	}
	return out, nil
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
	loads := map[string]int{}
	for _, m := range f.meetings {
		if !m.Ended {
			loads[m.ServerID] += m.Load
		}
	}
	var out []store.ServerLoad
	for id, l := range loads {
		out = append(out, store.ServerLoad{ServerID: id, Load: l})
	}
	return out, nil
}

func (f *fakeRegistry) GetRunningMeeting(ctx context.Context, meetingID string) (*store.Meeting, error) {
	for _, m := range f.meetings {
		if m.MeetingID == meetingID && !m.Ended {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRegistry) GetMeetingByID(ctx context.Context, id string) (*store.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeRegistry) GetMeetingByInternalID(ctx context.Context, internalID string) (*store.Meeting, error) {
	for _, m := range f.meetings {
		if m.InternalID == internalID {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRegistry) ResolveMovedTo(ctx context.Context, m *store.Meeting) (*store.Meeting, error) {
	for m.MovedTo != nil {
		next, ok := f.meetings[*m.MovedTo]
		if !ok {
			return nil, store.ErrNotFound
		}
		m = next
	}
	return m, nil
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

func (f *fakeRegistry) SetInternalID(ctx context.Context, id, internalID string) error {
	f.meetings[id].InternalID = internalID
	return nil
}

func (f *fakeRegistry) SetLoad(ctx context.Context, id string, load int) error {
	f.meetings[id].Load = load
	return nil
}

func (f *fakeRegistry) SetEnded(ctx context.Context, id string, ended bool) error {
	f.meetings[id].Ended = ended
	return nil
}

func (f *fakeRegistry) SetMovedTo(ctx context.Context, id, movedToID string) error {
	f.meetings[id].MovedTo = &movedToID
	return nil
}

func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch bbb.EndpointFromPath(r) {
		case "create":
			w.Write([]byte(`<response><returncode>SUCCESS</returncode><internalMeetingID>internal-1</internalMeetingID></response>`))
		default:
			w.Write([]byte(`<response><returncode>SUCCESS</returncode></response>`))
		}
	}))
}

func signedRequest(t *testing.T, endpoint, secret string, params url.Values) *http.Request {
	t.Helper()
	query := params.Encode()
	sum := sha1.Sum([]byte(endpoint + query + secret))
	checksum := hex.EncodeToString(sum[:])
	full := query + "&checksum=" + checksum
	r := httptest.NewRequest(http.MethodGet, "/bigbluebutton/api/"+endpoint+"?"+full, nil)
	return r
}

func newTestGateway(reg *fakeRegistry) *Gateway {
	return New(reg, bbb.NewClient(), player.New("http://player.invalid", "player-secret"), nil, &Options{
		Secret:   testSecret,
		Hostname: "lb.example.org",
	})
}

func TestCreatePlacesOnEligibleServer(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	reg := newFakeRegistry()
	reg.servers["a"] = &store.Server{ID: "a", URL: upstream.URL, State: store.StateEnabled, Reachable: 1}
	reg.servers["b"] = &store.Server{ID: "b", URL: upstream.URL, State: store.StateEnabled, Reachable: 1}

	g := newTestGateway(reg)
	params := url.Values{"meetingID": {"room1"}}
	r := signedRequest(t, "create", testSecret, params)
	w := httptest.NewRecorder()

	g.Router().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "SUCCESS") {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}

	meeting, err := reg.GetRunningMeeting(context.Background(), "room1")
	if err != nil {
		t.Fatalf("expected meeting to be registered: %v", err)
	}
	if meeting.ServerID != "a" && meeting.ServerID != "b" {
		t.Fatalf("expected meeting placed on one of the candidates, got %s", meeting.ServerID)
	}
}

func TestCreateReusesRunningMeeting(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	reg := newFakeRegistry()
	reg.servers["a"] = &store.Server{ID: "a", URL: upstream.URL, State: store.StateEnabled, Reachable: 1}
	reg.CreateMeeting(context.Background(), "room1", "a", bbb.Params{})

	g := newTestGateway(reg)
	params := url.Values{"meetingID": {"room1"}}
	r := signedRequest(t, "create", testSecret, params)
	w := httptest.NewRecorder()

	g.Router().ServeHTTP(w, r)

	if len(reg.meetings) != 1 {
		t.Fatalf("expected no new meeting row, got %d rows", len(reg.meetings))
	}
}

func TestIsMeetingRunning(t *testing.T) {
	reg := newFakeRegistry()
	reg.servers["a"] = &store.Server{ID: "a", State: store.StateEnabled, Reachable: 1}
	reg.CreateMeeting(context.Background(), "room1", "a", bbb.Params{})
	g := newTestGateway(reg)

	r := signedRequest(t, "isMeetingRunning", testSecret, url.Values{"meetingID": {"room1"}})
	w := httptest.NewRecorder()
	g.Router().ServeHTTP(w, r)
	if !strings.Contains(w.Body.String(), "<running>true</running>") {
		t.Fatalf("expected running=true, got %s", w.Body.String())
	}

	r = signedRequest(t, "isMeetingRunning", testSecret, url.Values{"meetingID": {"ghost"}})
	w = httptest.NewRecorder()
	g.Router().ServeHTTP(w, r)
	if !strings.Contains(w.Body.String(), "<running>false</running>") {
		t.Fatalf("expected running=false, got %s", w.Body.String())
	}
}

func TestInvalidChecksumIsRejected(t *testing.T) {
	reg := newFakeRegistry()
	g := newTestGateway(reg)

	r := httptest.NewRequest(http.MethodGet, "/bigbluebutton/api/create?meetingID=x&checksum=deadbeef", nil)
	w := httptest.NewRecorder()
	g.Router().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200 even on failure, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("expected text/xml content type, got %s", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<returncode>FAILED</returncode>") || !strings.Contains(body, "checksumError") {
		t.Fatalf("expected checksumError envelope, got %s", body)
	}
}
