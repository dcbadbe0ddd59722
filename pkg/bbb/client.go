package bbb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the socket timeout applied to every upstream call,
// matching the inherited operational default of the system this was
// ported from.
const DefaultTimeout = 5 * time.Second

// Client is a stateless helper for talking to one BBB server at a
// time; the Server to address is supplied per-request via Request.
type Client struct {
	http *http.Client
}

// NewClient builds a Client with the default timeout.
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: DefaultTimeout},
	}
}

// Send issues req against its Server and returns the raw response
// body. GET is used when req has no body, POST (form-encoded) when it
// does.
func (c *Client) Send(ctx context.Context, req *Request) ([]byte, error) {
	var (
		httpReq *http.Request
		err     error
	)
	if req.HTTPBody == nil {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, req.URL(), nil)
	} else {
		body := strings.NewReader(req.HTTPBody.Encode())
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, req.URL(), body)
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bbb: build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	return data, nil
}

// CreateRequest builds a `create` call.
func CreateRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "create", Params: params}
}

// JoinRequest builds a `join` call.
func JoinRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "join", Params: params}
}

// IsMeetingRunningRequest builds an `isMeetingRunning` call.
func IsMeetingRunningRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "isMeetingRunning", Params: params}
}

// EndRequest builds an `end` call.
func EndRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "end", Params: params}
}

// GetMeetingInfoRequest builds a `getMeetingInfo` call.
func GetMeetingInfoRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "getMeetingInfo", Params: params}
}

// GetMeetingsRequest builds a `getMeetings` call.
func GetMeetingsRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "getMeetings", Params: params}
}

// GetRecordingsRequest builds a `getRecordings` call.
func GetRecordingsRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "getRecordings", Params: params}
}

// PublishRecordingsRequest builds a `publishRecordings` call.
func PublishRecordingsRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "publishRecordings", Params: params}
}

// UpdateRecordingsRequest builds an `updateRecordings` call.
func UpdateRecordingsRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "updateRecordings", Params: params}
}

// DeleteRecordingsRequest builds a `deleteRecordings` call.
func DeleteRecordingsRequest(server *Server, params Params) *Request {
	return &Request{Server: server, Resource: "deleteRecordings", Params: params}
}

// PingAPI issues a bare GET against <server>/api, used by the poller's
// reachability check. This is deliberately outside BBB's own
// /bigbluebutton/api/ namespace - it is a plain healthcheck endpoint on
// the server's bare host, not a signed BBB call. It expects HTTP 200
// and nothing else.
func (c *Client) PingAPI(ctx context.Context, server *Server) error {
	pingURL, err := pingURL(server.URL)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bbb: unexpected status %d from api ping", resp.StatusCode)
	}
	return nil
}

// pingURL builds the bare healthcheck URL for a server's raw,
// operator-entered URL: scheme plus host, with any existing path
// discarded, joined with "/api" - never NormalizeURL's
// /bigbluebutton/api/ path, which is a different endpoint entirely.
func pingURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("bbb: parse server url: %w", err)
	}
	parsed.Path = "/api"
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}
