// Package authsession implements the trivial name-claim session cookie:
// the Go analogue of original_source/intercomserver.py's Fernet-sealed
// aiohttp_session carrying a single `username` key. Cookie-encryption
// key lifecycle is intentionally out of scope; the key lives for the
// process's lifetime.
package authsession

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const cookieName = "audiohub_session"

type sessionData struct {
	Username string
}

// Manager seals and opens the participant name-claim cookie.
type Manager struct {
	codec *securecookie.SecureCookie
}

// New generates a fresh hash/block key pair and returns a ready Manager.
func New() *Manager {
	hashKey := securecookie.GenerateRandomKey(64)
	blockKey := securecookie.GenerateRandomKey(32)
	return &Manager{codec: securecookie.New(hashKey, blockKey)}
}

// SetUsername seals username into the response's session cookie.
func (m *Manager) SetUsername(w http.ResponseWriter, username string) error {
	encoded, err := m.codec.Encode(cookieName, sessionData{Username: username})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Username reads the claimed username from the request's session
// cookie. Returns "" if there is no cookie or it fails to validate.
func (m *Manager) Username(r *http.Request) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	var data sessionData
	if err := m.codec.Decode(cookieName, c.Value, &data); err != nil {
		return ""
	}
	return data.Username
}

// Clear removes the session cookie (logout).
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   cookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
