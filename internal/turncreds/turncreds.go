// Package turncreds issues time-limited TURN credentials using the
// Coturn HMAC shared-secret scheme. The HMAC construction itself is a
// fixed external protocol (Coturn's static-auth-secret mechanism, the
// same shape webrtc/videoconference.go's generateTurnCredentials uses)
// and isn't this hub's to redesign; what it generalizes is where the
// secret and TTL come from: an Issuer built from internal/config at
// startup, instead of package-level globals reading os.Getenv
// directly the way the teacher's generateTurnCredentials/
// handleTurnCredentials pair did.
package turncreds

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Issuer mints Coturn credentials signed with one shared secret and
// valid for one fixed TTL, both supplied by the caller (see
// internal/config.Config) rather than read from the environment here.
type Issuer struct {
	secret string
	ttl    time.Duration
}

// New builds an Issuer. secret is the Coturn static-auth shared
// secret; ttl is how long issued credentials remain valid.
func New(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// Generate creates a Coturn username and HMAC-signed password valid
// from now until iss.ttl elapses.
func (iss *Issuer) Generate(user string) (username, password string) {
	expires := time.Now().Unix() + int64(iss.ttl.Seconds())
	username = fmt.Sprintf("%d:%s", expires, user)
	mac := hmac.New(sha1.New, []byte(iss.secret))
	mac.Write([]byte(username))
	password = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}

// Handler serves GET /turn-credentials?user=<name>, returning
// {"username": ..., "password": ...} for the caller to hand to
// RTCPeerConnection's iceServers config.
func (iss *Issuer) Handler(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = "anonymous"
	}
	username, password := iss.Generate(user)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"username": username, "password": password})
}
