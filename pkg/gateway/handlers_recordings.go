package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// recordIDs resolves the recordID list a recordings endpoint should
// act on, either taken directly from the request or translated from
// meetingIDs to their meetings' internal ids.
func (g *Gateway) recordIDs(ctx context.Context, req *bbb.Request) ([]string, error) {
	if raw, ok := req.Params.Get("recordID"); ok && raw != "" {
		return strings.Split(raw, ","), nil
	}
	raw, ok := req.Params.Get("meetingID")
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: recordID or meetingID", ErrMissingParam)
	}

	var ids []string
	for _, meetingID := range strings.Split(raw, ",") {
		meeting, err := g.registry.GetRunningMeeting(ctx, meetingID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		ids = append(ids, meeting.InternalID)
	}
	return ids, nil
}

// handleGetRecordings forwards the resolved recording ids to the
// player service and inlines its XML response.
func (g *Gateway) handleGetRecordings(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	ids, err := g.recordIDs(ctx, req)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		writeXML(w, informational(KeyNoRecordings, "no recordings found"))
		return nil
	}

	body, err := g.player.GetRecordings(ctx, ids)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		writeXML(w, informational(KeyNoRecordings, "no recordings found"))
		return nil
	}
	writeUpstream(w, body)
	return nil
}

// handleDeleteRecordings forwards to the player service.
func (g *Gateway) handleDeleteRecordings(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	ids, err := g.recordIDs(ctx, req)
	if err != nil {
		return err
	}
	if _, err := g.player.DeleteRecordings(ctx, ids); err != nil {
		return err
	}
	writeXML(w, success(nil))
	return nil
}

// recordingsByServer resolves each recordID's owning server through the
// meeting it belongs to - a recordID is a meeting's internal_id - and
// groups them so a publish/update call only ever names recordings a
// given server actually owns. recordIDs that match no known meeting
// (e.g. long since purged) are silently dropped, same as an unknown
// meetingID would be.
func (g *Gateway) recordingsByServer(ctx context.Context, ids []string) (map[*store.Server][]string, error) {
	grouped := map[string][]string{}
	servers := map[string]*store.Server{}
	for _, id := range ids {
		meeting, err := g.registry.GetMeetingByInternalID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if _, ok := servers[meeting.ServerID]; !ok {
			server, err := g.registry.GetServer(ctx, meeting.ServerID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			servers[meeting.ServerID] = server
		}
		grouped[meeting.ServerID] = append(grouped[meeting.ServerID], id)
	}

	out := make(map[*store.Server][]string, len(grouped))
	for serverID, recordings := range grouped {
		out[servers[serverID]] = recordings
	}
	return out, nil
}

// handlePublishRecordings calls each owning, enabled server once with
// only the recordIDs it owns, succeeding if any call succeeded.
func (g *Gateway) handlePublishRecordings(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	return g.fanOutRecordingsCall(w, r, req, bbb.PublishRecordingsRequest)
}

// handleUpdateRecordings fans out identically to publish, forwarding
// all other parameters untouched.
func (g *Gateway) handleUpdateRecordings(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	return g.fanOutRecordingsCall(w, r, req, bbb.UpdateRecordingsRequest)
}

func (g *Gateway) fanOutRecordingsCall(w http.ResponseWriter, r *http.Request, req *bbb.Request, build func(*bbb.Server, bbb.Params) *bbb.Request) error {
	ctx := r.Context()
	ids, err := g.recordIDs(ctx, req)
	if err != nil {
		return err
	}
	grouped, err := g.recordingsByServer(ctx, ids)
	if err != nil {
		return err
	}

	anySuccess := false
	var lastBody []byte
	for server, recordings := range grouped {
		if server.State != store.StateEnabled {
			continue
		}
		params := req.Params.Clone()
		params.Set("recordID", strings.Join(recordings, ","))
		upstream := build(server.BBB(), params)
		body, err := g.client.Send(ctx, upstream)
		if err != nil {
			continue
		}
		res, err := bbb.UnmarshalPublishRecordingsResponse(body)
		if err == nil && res.Success() {
			anySuccess = true
			lastBody = body
		}
	}

	if !anySuccess {
		return ErrNotFound
	}
	writeUpstream(w, lastBody)
	return nil
}
