package gateway

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// monitoringSalt binds the getServers endpoint's Authorization header
// checksum, separate from the BBB checksum scheme the API surface uses.
const monitoringSalt = "getServers"

// monitoringWindow is how far a request's timestamp may drift from now
// before its checksum is rejected, guarding against replay.
const monitoringWindow = 5 * time.Minute

// serverCounts is the JSON body returned by getServers.
type serverCounts struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
	Panic    int `json:"panic"`
}

func (g *Gateway) signMonitoring(timestamp string) string {
	mac := hmac.New(sha1.New, []byte(g.secret))
	mac.Write([]byte(monitoringSalt))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// handleGetServers serves a JSON count of servers by state, used by
// operators for basic fleet monitoring without a full admin UI.
func (g *Gateway) handleGetServers(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	timestamp, checksum, ok := strings.Cut(strings.TrimPrefix(auth, "HMAC "), ":")
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || absDuration(time.Since(time.Unix(ts, 0))) > monitoringWindow {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !hmac.Equal([]byte(checksum), []byte(g.signMonitoring(timestamp))) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	servers, err := g.registry.ListServers(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	counts := serverCounts{Total: len(servers)}
	for _, s := range servers {
		switch s.State {
		case store.StateEnabled:
			counts.Enabled++
		case store.StateDisabled:
			counts.Disabled++
		case store.StatePanic:
			counts.Panic++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(counts)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
