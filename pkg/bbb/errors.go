package bbb

import "errors"

// ErrNoResponse is returned when the transport to an upstream server
// failed outright (connection refused, timeout, ...).
var ErrNoResponse = errors.New("bbb: no response from server")

// ErrXMLSyntax is returned by the Unmarshal*Response helpers when an
// upstream server's response body could not be parsed as XML.
var ErrXMLSyntax = errors.New("bbb: malformed XML response")
