// Package templates holds the handful of human-facing HTML pages the
// gateway renders directly, as opposed to the XML envelopes it
// returns to BBB API clients.
package templates

import (
	"bytes"
	_ "embed"
	"html/template"
)

var (
	//go:embed html/redirect.html
	tmplRedirectHTML string

	//go:embed html/retry-join.html
	tmplRetryJoinHTML string

	//go:embed html/meeting-not-found.html
	tmplMeetingNotFoundHTML string

	tmplRedirect        *template.Template
	tmplRetryJoin       *template.Template
	tmplMeetingNotFound *template.Template
)

func init() {
	tmplRedirect, _ = template.New("redirect").Parse(tmplRedirectHTML)
	tmplRetryJoin, _ = template.New("retry_join").Parse(tmplRetryJoinHTML)
	tmplMeetingNotFound, _ = template.New("meeting_not_found").
		Parse(tmplMeetingNotFoundHTML)
}

// Redirect renders a page that sends the browser on to url, used by
// rejoin once the moved_to chain resolves to a trivial target.
func Redirect(url string) []byte {
	res := new(bytes.Buffer)
	tmplRedirect.Execute(res, url)
	return res.Bytes()
}

// RetryJoin renders a page asking the client to retry joining at url,
// used when a meeting's create call is still in flight.
func RetryJoin(url string) []byte {
	res := new(bytes.Buffer)
	tmplRetryJoin.Execute(res, url)
	return res.Bytes()
}

// MeetingNotFound renders the page shown when rejoin's moved_to chain
// or cookie validation comes up empty.
func MeetingNotFound() []byte {
	res := new(bytes.Buffer)
	tmplMeetingNotFound.Execute(res, nil)
	return res.Bytes()
}
