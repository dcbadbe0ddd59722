package gateway

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/templates"
)

// handleJoin redirects the browser straight to the meeting's server
// and drops a bbb_join cookie so rejoin can replay this request after
// a move or panic migration changes which server owns the meeting.
func (g *Gateway) handleJoin(w http.ResponseWriter, r *http.Request, req *bbb.Request) error {
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

	upstream := bbb.JoinRequest(server.BBB(), req.Params.Clone())
	g.setJoinCookie(w, upstream, meeting.ID)

	w.Header().Set("Location", upstream.URL())
	w.WriteHeader(http.StatusFound)
	w.Write(templates.Redirect(upstream.URL()))
	return nil
}

// handleRejoin follows a meeting's moved_to chain to its terminal
// target and replays the original join request there.
func (g *Gateway) handleRejoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	surrogateID := mux.Vars(r)["surrogateID"]

	meeting, err := g.registry.GetMeetingByID(ctx, surrogateID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write(templates.MeetingNotFound())
		return
	}

	terminal, err := g.registry.ResolveMovedTo(ctx, meeting)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write(templates.MeetingNotFound())
		return
	}

	if terminal.ID == meeting.ID {
		target := g.logoutURL
		if target == "" {
			target = "/"
		}
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusFound)
		w.Write(templates.Redirect(target))
		return
	}

	joinReq, _, err := g.readJoinCookie(r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(templates.MeetingNotFound())
		return
	}

	server, err := g.registry.GetServer(ctx, terminal.ServerID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write(templates.MeetingNotFound())
		return
	}

	joinReq.Server = server.BBB()
	w.Header().Set("Location", joinReq.URL())
	w.WriteHeader(http.StatusFound)
	w.Write(templates.RetryJoin(joinReq.URL()))
}
