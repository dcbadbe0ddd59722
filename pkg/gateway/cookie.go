package gateway

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
)

const joinCookieName = "bbb_join"
const joinCookieTTL = 7 * 24 * time.Hour

// joinCookieSalt is used to bind the bbb_join cookie's checksum, so a
// client cannot forge one without the gateway's shared secret.
const joinCookieSalt = "rejoin"

func (g *Gateway) signCookie(payload []byte) string {
	mac := hmac.New(sha1.New, []byte(g.secret))
	mac.Write([]byte(joinCookieSalt))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// setJoinCookie stores the original join request so rejoin can replay
// it against a meeting's new server after a move or panic migration.
func (g *Gateway) setJoinCookie(w http.ResponseWriter, req *bbb.Request, surrogateID string) {
	payload := req.MarshalURLSafe(surrogateID)
	value := string(payload) + "." + g.signCookie(payload)

	http.SetCookie(w, &http.Cookie{
		Name:     joinCookieName,
		Value:    value,
		Domain:   g.hostname,
		Path:     "/",
		Expires:  time.Now().Add(joinCookieTTL),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// readJoinCookie validates and decodes the bbb_join cookie, returning
// the original join request and the surrogate meeting id it targeted.
func (g *Gateway) readJoinCookie(r *http.Request) (*bbb.Request, string, error) {
	c, err := r.Cookie(joinCookieName)
	if err != nil {
		return nil, "", ErrNoJoinCookie
	}

	sep := strings.LastIndexByte(c.Value, '.')
	if sep < 0 {
		return nil, "", ErrNoJoinCookie
	}
	payload, checksum := c.Value[:sep], c.Value[sep+1:]
	if hmac.Equal([]byte(checksum), []byte(g.signCookie([]byte(payload)))) {
		req, surrogateID, err := bbb.UnmarshalURLSafeRequest([]byte(payload))
		if err != nil {
			return nil, "", ErrNoJoinCookie
		}
		return req, surrogateID, nil
	}
	return nil, "", ErrNoJoinCookie
}
