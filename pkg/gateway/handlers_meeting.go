package gateway

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// handleIsMeetingRunning answers purely from the registry - no
// upstream call needed.
func (g *Gateway) handleIsMeetingRunning(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	meetingID, err := requireMeetingID(req)
	if err != nil {
		return err
	}

	running := true
	if _, err := g.registry.GetRunningMeeting(r.Context(), meetingID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		running = false
	}

	type isMeetingRunningInner struct {
		XMLName xml.Name `xml:"running"`
		Running bool     `xml:",chardata"`
	}
	inner, _ := xml.Marshal(isMeetingRunningInner{Running: running})
	writeXML(w, success(inner))
	return nil
}

// handleEnd proxies to the meeting's server and marks it ended on
// upstream success.
func (g *Gateway) handleEnd(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	meetingID, err := requireMeetingID(req)
	if err != nil {
		return err
	}
	meeting, err := g.registry.GetRunningMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	server, err := g.registry.GetServer(ctx, meeting.ServerID)
	if err != nil {
		return err
	}

	upstream := bbb.EndRequest(server.BBB(), req.Params.Clone())
	body, err := g.client.Send(ctx, upstream)
	if err != nil {
		return err
	}
	if res, err := bbb.UnmarshalEndResponse(body); err == nil && res.Success() {
		g.registry.SetEnded(ctx, meeting.ID, true)
		if g.index != nil {
			g.index.Delete(ctx, meetingID)
		}
	}
	writeUpstream(w, body)
	return nil
}

// handleGetMeetingInfo proxies to the meeting's server and wraps its
// response unchanged.
func (g *Gateway) handleGetMeetingInfo(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	meetingID, err := requireMeetingID(req)
	if err != nil {
		return err
	}
	meeting, err := g.registry.GetRunningMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	server, err := g.registry.GetServer(ctx, meeting.ServerID)
	if err != nil {
		return err
	}

	upstream := bbb.GetMeetingInfoRequest(server.BBB(), req.Params.Clone())
	body, err := g.client.Send(ctx, upstream)
	if err != nil {
		return err
	}
	writeUpstream(w, body)
	return nil
}

// handleGetMeetings fans out to every ENABLED server and concatenates
// their meeting lists.
func (g *Gateway) handleGetMeetings(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	servers, err := g.registry.ListEligibleServers(ctx)
	if err != nil {
		return err
	}

	var meetings []*bbb.Meeting
	for _, server := range servers {
		upstream := bbb.GetMeetingsRequest(server.BBB(), bbb.Params{})
		body, err := g.client.Send(ctx, upstream)
		if err != nil {
			continue
		}
		res, err := bbb.UnmarshalGetMeetingsResponse(body)
		if err != nil || !res.Success() {
			continue
		}
		meetings = append(meetings, res.Meetings...)
	}

	if len(meetings) == 0 {
		writeXML(w, informational(KeyNoMeetings, "no meetings are running"))
		return nil
	}

	type meetingsInner struct {
		XMLName  xml.Name       `xml:"meetings"`
		Meetings []*bbb.Meeting `xml:"meeting"`
	}
	inner, _ := xml.Marshal(meetingsInner{Meetings: meetings})
	writeXML(w, success(inner))
	return nil
}

// statisticsEntry is the projection handleGetStatistics produces for
// each meeting, per the custom getStatistics endpoint.
type statisticsEntry struct {
	MeetingID             string `xml:"meetingID"`
	ParticipantCount      int    `xml:"participantCount"`
	ListenerCount         int    `xml:"listenerCount"`
	VoiceParticipantCount int    `xml:"voiceParticipantCount"`
	VideoCount            int    `xml:"videoCount"`
}

// handleGetStatistics is like getMeetings but projects each meeting
// down to its participation counters.
func (g *Gateway) handleGetStatistics(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	servers, err := g.registry.ListEligibleServers(ctx)
	if err != nil {
		return err
	}

	var stats []statisticsEntry
	for _, server := range servers {
		upstream := bbb.GetMeetingsRequest(server.BBB(), bbb.Params{})
		body, err := g.client.Send(ctx, upstream)
		if err != nil {
			continue
		}
		res, err := bbb.UnmarshalGetMeetingsResponse(body)
		if err != nil || !res.Success() {
			continue
		}
		for _, m := range res.Meetings {
			stats = append(stats, statisticsEntry{
				MeetingID:             m.MeetingID,
				ParticipantCount:      m.ParticipantCount,
				ListenerCount:         m.ListenerCount,
				VoiceParticipantCount: m.VoiceParticipantCount,
				VideoCount:            m.VideoCount,
			})
		}
	}

	if len(stats) == 0 {
		writeXML(w, informational(KeyNoMeetings, "no meetings are running"))
		return nil
	}

	type statisticsInner struct {
		XMLName  xml.Name          `xml:"meetings"`
		Meetings []statisticsEntry `xml:"meeting"`
	}
	inner, _ := xml.Marshal(statisticsInner{Meetings: stats})
	writeXML(w, success(inner))
	return nil
}

// handleMove ends a meeting on its current server and recreates it on
// a different one, leaving a moved_to forward pointer.
func (g *Gateway) handleMove(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
	ctx := r.Context()
	meetingID, err := requireMeetingID(req)
	if err != nil {
		return err
	}
	meeting, err := g.registry.GetRunningMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	var dest *store.Server
	if raw, ok := req.Params.Get("serverID"); ok && raw != "" {
		targetID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: serverID", ErrMissingParam)
		}
		dest, err = g.registry.GetServerByServerID(ctx, targetID)
		if err != nil {
			return err
		}
		if dest.ID == meeting.ServerID {
			return ErrSameServer
		}
	} else {
		dest, err = g.pickServer(ctx, meeting.ServerID)
		if err != nil {
			return err
		}
	}

	current, err := g.registry.GetServer(ctx, meeting.ServerID)
	if err != nil {
		return err
	}
	endReq := bbb.EndRequest(current.BBB(), meeting.CreateQuery.Clone())
	g.client.Send(ctx, endReq)
	g.registry.SetEnded(ctx, meeting.ID, true)

	next, err := g.registry.CreateMeeting(ctx, meetingID, dest.ID, meeting.CreateQuery)
	if err != nil {
		return err
	}
	createReq := bbb.CreateRequest(dest.BBB(), meeting.CreateQuery.Clone())
	body, err := g.client.Send(ctx, createReq)
	if err != nil {
		g.registry.DeleteMeeting(ctx, next.ID)
		return err
	}
	res, err := bbb.UnmarshalCreateResponse(body)
	if err != nil || !res.Success() {
		g.registry.DeleteMeeting(ctx, next.ID)
		return fmt.Errorf("gateway: move recreate failed")
	}
	g.registry.SetInternalID(ctx, next.ID, res.InternalMeetingID)
	g.registry.SetLoad(ctx, next.ID, meeting.Load)
	g.registry.SetMovedTo(ctx, meeting.ID, next.ID)
	if g.index != nil {
		g.index.SetServer(ctx, meetingID, dest.ID)
	}

	writeXML(w, success(nil))
	return nil
}
