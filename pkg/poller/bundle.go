package poller

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// runCheckBundle executes one server's fixed check sequence, stopping
// at the first failing step - the rest of the bundle is skipped and
// the server is deemed offline for this cycle.
func (s *Scheduler) runCheckBundle(ctx context.Context, server *store.Server) bool {
	host := hostOf(server.URL)

	for _, proc := range processChecks {
		if err := checkProcess(ctx, s.scripts, host, s.sshUser, proc); err != nil {
			log.Debug().Str("server", server.ID).Str("check", proc).Err(err).Msg("check failed")
			return false
		}
	}
	for _, unit := range unitChecks {
		if err := checkSystemdUnit(ctx, s.scripts, host, s.sshUser, unit); err != nil {
			log.Debug().Str("server", server.ID).Str("check", unit).Err(err).Msg("check failed")
			return false
		}
	}
	if err := s.client.PingAPI(ctx, server.BBB()); err != nil {
		log.Debug().Str("server", server.ID).Err(err).Msg("api ping failed")
		return false
	}
	return true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(bbb.NormalizeURL(rawURL))
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// applyHysteresis updates a server's reachability counters from this
// cycle's online/offline verdict, escalating to PANIC or recovering to
// ENABLED at the configured thresholds.
func (s *Scheduler) applyHysteresis(ctx context.Context, server *store.Server, online bool) {
	if online {
		server.Unreachable = 0
		if server.Reachable < maxReachable {
			server.Reachable++
		}
		if server.State == store.StatePanic && server.Reachable == maxReachable {
			server.State = store.StateEnabled
		}
	} else {
		server.Reachable = 0
		if server.Unreachable < maxUnreachable {
			server.Unreachable++
		}
		if server.State == store.StateEnabled && server.Unreachable == maxUnreachable {
			server.State = store.StatePanic
			go s.migrator.Migrate(context.Background(), server)
		}
	}

	if err := s.registry.UpdateServer(ctx, server); err != nil {
		log.Error().Str("server", server.ID).Err(err).Msg("failed to persist reachability state")
	}
}

// checkMeetingLiveness calls getMeetingInfo upstream; a "not found"
// response means the meeting ended upstream without the gateway
// observing an `end` call, so the registry is updated to match. Any
// other failure is treated conservatively as "still alive".
func (s *Scheduler) checkMeetingLiveness(ctx context.Context, m *store.Meeting) {
	server, err := s.registry.GetServer(ctx, m.ServerID)
	if err != nil {
		return
	}
	req := bbb.GetMeetingInfoRequest(server.BBB(), bbb.NewParams("meetingID", m.MeetingID))
	body, err := s.client.Send(ctx, req)
	if err != nil {
		return
	}
	res, err := bbb.UnmarshalGetMeetingInfoResponse(body)
	if err != nil {
		return
	}
	if !res.Success() && strings.Contains(strings.ToLower(res.MessageKey), "notfound") {
		if err := s.registry.SetEnded(ctx, m.ID, true); err != nil {
			log.Error().Str("meeting", m.ID).Err(err).Msg("failed to mark meeting ended")
		}
	}
}
