package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/placement"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

func requireMeetingID(req *bbb.Request) (string, error) {
	id, ok := req.Params.MeetingID()
	if !ok || id == "" {
		return "", fmt.Errorf("%w: meetingID", ErrMissingParam)
	}
	return id, nil
}

// loadFromParams reads the optional "load" create parameter BBB
// clients may set to weight a meeting's contribution to its server's
// total; meetings that don't specify one count as 1.
func loadFromParams(req *bbb.Request) int {
	if raw, ok := req.Params.Get("load"); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func (g *Gateway) pickServer(ctx context.Context, exclude string) (*store.Server, error) {
	candidates, err := g.registry.ListEligibleServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway: list eligible servers: %w", err)
	}
	if exclude != "" {
		filtered := candidates[:0]
		for _, s := range candidates {
			if s.ID != exclude {
				filtered = append(filtered, s)
			}
		}
		candidates = filtered
	}
	return placement.GetNextServer(candidates, g.loadSource(ctx))
}

// loadSource closes over the registry's aggregate load query, the
// only load source placement uses; the routing cache is not consulted.
func (g *Gateway) loadSource(ctx context.Context) placement.LoadSource {
	loads, err := g.registry.ListServersWithLoad(ctx)
	byServer := make(map[string]int, len(loads))
	if err == nil {
		for _, l := range loads {
			byServer[l.ServerID] = l.Load
		}
	}
	return func(serverID string) int { return byServer[serverID] }
}

// handleCreate implements the `create` endpoint: reuse a running
// meeting if one exists, otherwise place a new one on the
// least-loaded eligible server and proxy the create call there.
func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	meetingID, err := requireMeetingID(req)
	if err != nil {
		return err
	}

	if existing, err := g.registry.GetRunningMeeting(ctx, meetingID); err == nil {
		server, err := g.registry.GetServer(ctx, existing.ServerID)
		if err != nil {
			return err
		}
		upstream := bbb.CreateRequest(server.BBB(), req.Params.Clone())
		body, err := g.client.Send(ctx, upstream)
		if err != nil {
			return err
		}
		writeUpstream(w, body)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	server, err := g.pickServer(ctx, "")
	if err != nil {
		return err
	}

	meeting, err := g.registry.CreateMeeting(ctx, meetingID, server.ID, req.Params.Clone())
	if err != nil {
		return err
	}

	params := req.Params.Clone()
	params.Set("logoutURL", g.rejoinURL(r, meeting.ID))

	upstream := bbb.CreateRequest(server.BBB(), params)
	body, err := g.client.Send(ctx, upstream)
	if err != nil {
		g.registry.DeleteMeeting(ctx, meeting.ID)
		return err
	}

	res, err := bbb.UnmarshalCreateResponse(body)
	if err != nil {
		g.registry.DeleteMeeting(ctx, meeting.ID)
		return err
	}
	if !res.Success() {
		g.registry.DeleteMeeting(ctx, meeting.ID)
		writeUpstream(w, body)
		return nil
	}

	if err := g.registry.SetInternalID(ctx, meeting.ID, res.InternalMeetingID); err != nil {
		return err
	}
	load := loadFromParams(req)
	if err := g.registry.SetLoad(ctx, meeting.ID, load); err != nil {
		return err
	}
	if g.index != nil {
		g.index.SetServer(ctx, meetingID, server.ID)
		g.index.SetLoad(ctx, meetingID, load)
	}

	writeUpstream(w, body)
	return nil
}

// rejoinURL builds the logoutURL override pointing back at this
// gateway's rejoin endpoint, carrying the surrogate meeting id.
func (g *Gateway) rejoinURL(r *http.Request, surrogateID string) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/bigbluebutton/api/rejoin/%s", scheme, r.Host, surrogateID)
}
