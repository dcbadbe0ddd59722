package gateway

import (
	"encoding/xml"
	"errors"
	"net/http"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/placement"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// envelope is the uniform `{response: {returncode, messageKey?,
// message?, ...}}` XML wrapper every gateway response is shaped into.
type envelope struct {
	XMLName    xml.Name `xml:"response"`
	Returncode string   `xml:"returncode"`
	MessageKey string   `xml:"messageKey,omitempty"`
	Message    string   `xml:"message,omitempty"`
	Inner      []byte   `xml:",innerxml"`
}

func success(inner []byte) *envelope {
	return &envelope{Returncode: bbb.RetSuccess, Inner: inner}
}

func failure(key, message string) *envelope {
	return &envelope{Returncode: bbb.RetFailed, MessageKey: key, Message: message}
}

func informational(key, message string) *envelope {
	return &envelope{Returncode: bbb.RetSuccess, MessageKey: key, Message: message}
}

// writeXML serializes e and writes it as the HTTP response body with
// the content type BBB clients expect.
func writeXML(w http.ResponseWriter, e *envelope) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	out, err := xml.Marshal(e)
	if err != nil {
		w.Write([]byte(`<response><returncode>FAILED</returncode><messageKey>internalError</messageKey></response>`))
		return
	}
	w.Write(out)
}

// writeUpstream passes an upstream server's own response body through
// unchanged - it is already a complete `<response>` envelope, so
// re-wrapping it would nest two returncodes. Used by handlers that
// proxy a single call 1:1 (create, end, getMeetingInfo, publish/update
// recordings).
func writeUpstream(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// errorToEnvelope maps a handler's returned error to the response
// envelope the gateway sends, reporting unexpected errors as
// internalError without leaking their detail to the client. It does
// not log; dispatch logs handler errors before calling it.
func errorToEnvelope(err error) *envelope {
	switch {
	case errors.Is(err, bbb.ErrChecksum), errors.Is(err, ErrChecksum):
		return failure(KeyChecksumError, "checksum verification failed")
	case errors.Is(err, ErrMissingParam):
		return failure(KeyMissingParamMeetingID, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotFound):
		return failure(KeyNotFound, "not found")
	case errors.Is(err, bbb.ErrNoResponse):
		return failure(KeyNoResponse, "upstream server did not respond")
	case errors.Is(err, ErrSameServer):
		return failure(KeySameServer, "meeting is already on the requested server")
	case errors.Is(err, ErrNoJoinCookie):
		return failure(KeyNoJoinCookie, "missing or invalid join cookie")
	case errors.Is(err, placement.ErrNoServerAvailable):
		return failure(KeyInternalError, "no server available")
	default:
		return failure(KeyInternalError, "internal error")
	}
}
