// Package gateway is the HTTP front of the load balancer: it
// authenticates BBB API calls, dispatches them by endpoint, and
// composes the registry, placement engine, BBB client, and player
// client into the responses upstream clients expect.
package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/cache"
	"gitlab.com/infra.run/public/bbblb/pkg/player"
)

// Options configure a Gateway.
type Options struct {
	Secret    string
	Hostname  string
	LogoutURL string
}

// Gateway wires the registry, BBB client, placement, cache, and
// player client behind a single HTTP handler.
type Gateway struct {
	registry Registry
	client   *bbb.Client
	player   *player.Client
	index    *cache.Index

	secret    string
	hostname  string
	logoutURL string
}

// New builds a Gateway. player may be nil if no recording endpoints
// are needed; index may be nil to skip updating the routing cache.
// Placement load always comes from the registry; the index is written
// to but never read here.
func New(registry Registry, client *bbb.Client, p *player.Client, index *cache.Index, opts *Options) *Gateway {
	return &Gateway{
		registry:  registry,
		client:    client,
		player:    p,
		index:     index,
		secret:    opts.Secret,
		hostname:  opts.Hostname,
		logoutURL: opts.LogoutURL,
	}
}

// handlerFunc is a gateway endpoint handler: it reports a result or an
// error, which the dispatcher turns uniformly into an envelope.
type handlerFunc func(w http.ResponseWriter, r *http.Request, req *bbb.Request) error

// dispatch authenticates the request, looks up the handler for its
// endpoint, and funnels any returned error through errorToEnvelope.
// Handlers that write their own response (redirects, getServers) are
// responsible for not double-writing.
func (g *Gateway) dispatch(handlers map[string]handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := g.authenticate(r)
		if err != nil {
			writeXML(w, errorToEnvelope(err))
			return
		}

		handler, ok := handlers[req.Resource]
		if !ok {
			writeXML(w, failure(KeyNotFound, "unknown endpoint"))
			return
		}

		if err := handler(w, r, req); err != nil {
			log.Error().Err(err).Str("endpoint", req.Resource).Msg("handler failed")
			writeXML(w, errorToEnvelope(err))
		}
	}
}

// Router builds the gorilla/mux router exposing the BBB API surface
// plus the custom move/getStatistics/rejoin/getServers endpoints.
func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()

	handlers := map[string]handlerFunc{
		"create":            g.handleCreate,
		"join":              g.handleJoin,
		"isMeetingRunning":  g.handleIsMeetingRunning,
		"end":               g.handleEnd,
		"getMeetingInfo":    g.handleGetMeetingInfo,
		"getMeetings":       g.handleGetMeetings,
		"getRecordings":     g.handleGetRecordings,
		"publishRecordings": g.handlePublishRecordings,
		"updateRecordings":  g.handleUpdateRecordings,
		"deleteRecordings":  g.handleDeleteRecordings,
		"move":              g.handleMove,
		"getStatistics":     g.handleGetStatistics,
	}
	r.HandleFunc("/bigbluebutton/api/{endpoint}", g.dispatch(handlers))
	r.HandleFunc("/bigbluebutton/api/rejoin/{surrogateID}", g.handleRejoin)
	r.HandleFunc("/monitoring/getServers", g.handleGetServers)

	return r
}
