package gateway

import "errors"

// Message keys surfaced in an envelope's <messageKey>, per the BBB
// error taxonomy this gateway extends.
const (
	KeyChecksumError         = "checksumError"
	KeyMissingParamMeetingID = "missingParamMeetingID"
	KeyNotFound              = "notFound"
	KeyNoResponse            = "noResponse"
	KeySameServer            = "sameServer"
	KeyNoJoinCookie          = "noJoinCookie"
	KeyNoMeetings            = "noMeetings"
	KeyNoRecordings          = "noRecordings"
	KeyInternalError         = "internalError"
)

// Sentinel errors a handler can return; dispatch maps them to the
// message keys above. Anything else is reported as internalError.
var (
	ErrChecksum     = errors.New("gateway: checksum mismatch")
	ErrMissingParam = errors.New("gateway: missing required parameter")
	ErrNotFound     = errors.New("gateway: not found")
	ErrSameServer   = errors.New("gateway: move target is the current server")
	ErrNoJoinCookie = errors.New("gateway: missing or invalid bbb_join cookie")
)
