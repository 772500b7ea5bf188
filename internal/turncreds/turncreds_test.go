package turncreds

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateProducesVerifiableSignature(t *testing.T) {
	iss := New("topsecret", time.Hour)
	username, password := iss.Generate("alice")

	mac := hmac.New(sha1.New, []byte("topsecret"))
	mac.Write([]byte(username))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	require.Equal(t, want, password)
	require.True(t, strings.HasSuffix(username, ":alice"))
}

func TestGenerateUsesIssuerTTL(t *testing.T) {
	iss := New("s", 5*time.Second)
	username, _ := iss.Generate("alice")

	require.True(t, strings.HasSuffix(username, ":alice"))
	expiresStr := strings.TrimSuffix(username, ":alice")
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	require.NoError(t, err)
	require.InDelta(t, time.Now().Add(5*time.Second).Unix(), expires, 2)
}

func TestHandlerDefaultsToAnonymous(t *testing.T) {
	iss := New("s", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/turn-credentials", nil)
	rec := httptest.NewRecorder()

	iss.Handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "anonymous")
}
