package bbb

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
)

// checksumParamRegex mirrors the original implementation's
// `&checksum=[^&]+` stripping regex exactly: it only matches a
// checksum parameter preceded by '&', so a checksum placed first in
// the query string (no leading '&') is left untouched in rest. This
// is a known quirk of the original, not a bug to fix here - clients
// that put checksum first simply fail validation, on both sides.
var checksumParamRegex = regexp.MustCompile(`&checksum=[^&]+`)

// ErrChecksum is returned by Verify when none of the supported hash
// algorithms produce the expected checksum.
var ErrChecksum = errors.New("bbb: checksum mismatch")

// checksumAlgos are tried in order when verifying an inbound request.
// The gateway accepts either so older and newer BBB clients can coexist.
var checksumAlgos = []func(string) string{
	func(s string) string {
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	},
}

// Request is a single call to a BBB resource (e.g. "create", "join"),
// either outbound to a Server we sign ourselves, or inbound from a
// client whose checksum we need to verify against rest.
type Request struct {
	Server   *Server
	Resource string
	Params   Params

	// Rest is the raw, byte-exact query string of an inbound request
	// with the checksum key/value pair removed. It is only set when
	// the Request was decoded from an incoming HTTP request, and is
	// what Verify checks against - never Params.String(), since that
	// re-serializes and would not catch a tampered raw query.
	Rest string

	// HTTPBody, when non-nil, makes Client.Send issue a POST with this body
	// instead of a GET.
	HTTPBody url.Values
}

// Sign computes the outbound checksum for call+query+secret using the
// Server's secret.
func (r *Request) Sign() string {
	payload := r.Resource + r.Params.String() + r.Server.Secret
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// URL builds the signed API URL for this request against its Server.
func (r *Request) URL() string {
	base := NormalizeURL(r.Server.URL)
	query := r.Params.String()
	checksum := r.Sign()
	if query == "" {
		return base + r.Resource + "?checksum=" + checksum
	}
	return base + r.Resource + "?" + query + "&checksum=" + checksum
}

// Verify checks an inbound request's checksum against rest, using the
// shared secret, trying every supported hash algorithm in order.
func (r *Request) Verify(secret, checksum string) error {
	for _, algo := range checksumAlgos {
		if algo(r.Resource+r.Rest+secret) == checksum {
			return nil
		}
	}
	return ErrChecksum
}

// urlSafeRequest is the JSON shape persisted in the bbb_join cookie and
// used by the rejoin flow to replay the original join parameters.
type urlSafeRequest struct {
	Resource string `json:"resource"`
	Query    string `json:"query"`
	Path     string `json:"path"`
}

// MarshalURLSafe encodes the request as base64(JSON), suitable for
// storing in a cookie. Params round-trips through its encoded query
// string rather than a map so its insertion order survives.
func (r *Request) MarshalURLSafe(path string) []byte {
	payload := urlSafeRequest{
		Resource: r.Resource,
		Query:    r.Params.String(),
		Path:     path,
	}
	data, _ := json.Marshal(payload)
	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(data)))
	base64.RawURLEncoding.Encode(out, data)
	return out
}

// UnmarshalURLSafeRequest decodes a cookie payload produced by
// MarshalURLSafe back into a Request (Server is left nil; callers must
// attach it).
func UnmarshalURLSafeRequest(data []byte) (*Request, string, error) {
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(len(data)))
	n, err := base64.RawURLEncoding.Decode(raw, data)
	if err != nil {
		return nil, "", err
	}
	var payload urlSafeRequest
	if err := json.Unmarshal(raw[:n], &payload); err != nil {
		return nil, "", err
	}
	return &Request{
		Resource: payload.Resource,
		Params:   ParamsFromRawQuery(payload.Query),
	}, payload.Path, nil
}

// StripChecksum removes the `checksum=...` key/value pair from a raw
// query string, byte-exactly, preserving everything else including
// parameter order and any malformed-looking leftovers. If checksum was
// the first parameter it has no preceding '&', so nothing is removed
// and the query string is returned unchanged - callers must not
// "clean up" the result.
func StripChecksum(rawQuery string) string {
	return checksumParamRegex.ReplaceAllString(rawQuery, "")
}

// EndpointFromPath returns the last path segment of an HTTP request,
// which BBB clients use as the resource name in the checksum.
func EndpointFromPath(r *http.Request) string {
	path := r.URL.Path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
