package gateway

import (
	"net/http"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
)

// authenticate verifies an inbound request's checksum against the
// gateway's shared secret, returning the parsed bbb.Request on
// success. endpoint is the last path segment; rest is the raw query
// string with the checksum pair stripped, byte-exact.
func (g *Gateway) authenticate(r *http.Request) (*bbb.Request, error) {
	endpoint := bbb.EndpointFromPath(r)
	checksum := r.URL.Query().Get("checksum")
	rest := bbb.StripChecksum(r.URL.RawQuery)

	req := &bbb.Request{
		Resource: endpoint,
		Params:   bbb.ParamsFromRawQuery(r.URL.RawQuery),
		Rest:     rest,
	}
	if err := req.Verify(g.secret, checksum); err != nil {
		return nil, err
	}
	return req, nil
}
