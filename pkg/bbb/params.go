package bbb

import (
	"net/url"
	"strconv"
	"strings"
)

// Params is the set of query parameters exchanged with a BBB server,
// kept in the order they were set.
//
// BBB's checksum is computed over the literal query string a client
// sent (or we build), not a canonicalized form of it - signing the
// same parameters in a different order than they're placed on the
// wire produces a different, invalid checksum. A Go map has no stable
// iteration order, so Params tracks insertion order itself instead of
// being one.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams builds a Params set from alternating key/value strings, in
// the order given, e.g. NewParams("meetingID", id, "load", "2").
func NewParams(pairs ...string) Params {
	var p Params
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Set(pairs[i], pairs[i+1])
	}
	return p
}

// Set adds a new parameter or updates an existing one. Updating a key
// that was already set does not change its position.
func (p *Params) Set(key, value string) {
	if p.values == nil {
		p.values = map[string]string{}
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// SetBool stores a boolean parameter using BBB's lower-case convention.
func (p *Params) SetBool(key string, value bool) {
	p.Set(key, strconv.FormatBool(value))
}

// Get returns a parameter's value and whether it was set.
func (p Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// MeetingID returns the meetingID parameter, if present.
func (p Params) MeetingID() (string, bool) {
	return p.Get("meetingID")
}

// Len reports how many parameters are set.
func (p Params) Len() int {
	return len(p.keys)
}

// Clone returns a copy of the parameter set with its order intact.
func (p Params) Clone() Params {
	c := Params{
		keys:   append([]string(nil), p.keys...),
		values: make(map[string]string, len(p.values)),
	}
	for k, v := range p.values {
		c.values[k] = v
	}
	return c
}

// String encodes the parameters as a URL query string with keys in
// insertion order - the order a caller calls Set in is the order the
// query string (and therefore the checksum computed over it) ends up
// in.
func (p Params) String() string {
	if len(p.keys) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(p.values[k]))
	}
	return strings.Join(parts, "&")
}

// ParamsFromRawQuery parses an encoded query string into an
// order-preserving Params set, dropping any checksum pair.
//
// url.ParseQuery returns a map and loses the string's original
// ordering; this keeps parameters in the order they appear so a
// request rebuilt from them (a proxied call, a replayed create_query)
// signs and sends in the same order the original did.
func ParamsFromRawQuery(rawQuery string) Params {
	var p Params
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, keyErr := url.QueryUnescape(key)
		value, valErr := url.QueryUnescape(value)
		if keyErr != nil || valErr != nil || key == "checksum" {
			continue
		}
		p.Set(key, value)
	}
	return p
}
