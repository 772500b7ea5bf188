package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n0remac/audiohub/internal/authsession"
	"github.com/n0remac/audiohub/internal/registry"
	"github.com/n0remac/audiohub/internal/signalling"
	"github.com/n0remac/audiohub/internal/turncreds"
	"github.com/n0remac/audiohub/internal/wsmonitor"
)

func newTestServer(t *testing.T) (*Server, *authsession.Manager) {
	t.Helper()
	reg := registry.New(nil)
	sig, err := signalling.New(reg)
	require.NoError(t, err)
	sess := authsession.New()
	mon := wsmonitor.New()
	turn := turncreds.New("test-secret", time.Hour)
	return New(reg, sig, sess, nil, mon, turn), sess
}

func TestUsersRequiresLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()

	srv.handleUsers(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersReturnsCurrentUserWhenLoggedIn(t *testing.T) {
	srv, sess := newTestServer(t)

	rec := httptest.NewRecorder()
	require.NoError(t, sess.SetUsername(rec, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()

	srv.handleUsers(rec2, req)

	require.Equal(t, http.StatusOK, rec2.Code)
	require.Contains(t, rec2.Body.String(), "alice")
}

func TestLoginPostWithoutUsernameIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.handleLogin(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginPostSetsSessionAndRedirects(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=bob"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.handleLogin(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.NotEmpty(t, rec.Result().Cookies())
}

func TestTestToneInjectsIntoCallersOwnMixer(t *testing.T) {
	srv, sess := newTestServer(t)
	rec := httptest.NewRecorder()
	require.NoError(t, sess.SetUsername(rec, "alice"))

	regSess := srv.reg.Register("alice", nil)
	require.NotNil(t, regSess)

	req := httptest.NewRequest(http.MethodPost, "/test-tone", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()

	srv.handleTestTone(rec2, req)

	require.Equal(t, http.StatusOK, rec2.Code)
	require.Contains(t, rec2.Body.String(), `"status":"success"`)
	require.Contains(t, regSess.Mixer.LiveSources(), "__test_tone__")
}

func TestHistoryWithNoStoreReturnsEmptyArray(t *testing.T) {
	srv, sess := newTestServer(t)
	rec := httptest.NewRecorder()
	require.NoError(t, sess.SetUsername(rec, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()

	srv.handleHistory(rec2, req)

	require.Equal(t, http.StatusOK, rec2.Code)
	require.JSONEq(t, "[]", rec2.Body.String())
}
