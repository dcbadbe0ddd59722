package bbb

import "strings"

// Server is everything the client needs to address and sign requests
// against one upstream BigBlueButton instance.
type Server struct {
	ID     string
	URL    string
	Secret string
}

const apiPath = "/bigbluebutton/api/"

// NormalizeURL brings a raw, operator-entered server URL into the
// canonical form `https://<host>/bigbluebutton/api/`: it adds a scheme
// if missing, truncates any existing path and appends the API path.
// It is idempotent - normalizing an already-normalized URL is a no-op.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	if strings.HasSuffix(u, apiPath) {
		return u
	}

	scheme := "https://"
	rest := u
	if strings.HasPrefix(u, "http://") {
		scheme = "http://"
		rest = strings.TrimPrefix(u, "http://")
	} else {
		rest = strings.TrimPrefix(u, "https://")
	}

	if idx := strings.Index(rest, "/"); idx != -1 {
		rest = rest[:idx]
	}
	return scheme + rest + apiPath
}
