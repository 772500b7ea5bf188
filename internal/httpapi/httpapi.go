// Package httpapi implements the control surface: login, offer/answer,
// the active-users and debug/monitor endpoints, and the additive
// /history and /ws/monitor routes. Route shapes ported from
// original_source/intercomserver.py's aiohttp route table; mounting
// style (plain *http.ServeMux, no framework) ported from
// webrtc/videoconference.go's VideoHandler.
package httpapi

import (
	"encoding/json"
	"html"
	"net/http"

	"github.com/n0remac/audiohub/internal/authsession"
	"github.com/n0remac/audiohub/internal/eventlog"
	"github.com/n0remac/audiohub/internal/observability"
	"github.com/n0remac/audiohub/internal/registry"
	"github.com/n0remac/audiohub/internal/signalling"
	"github.com/n0remac/audiohub/internal/tonegen"
	"github.com/n0remac/audiohub/internal/turncreds"
	"github.com/n0remac/audiohub/internal/wsmonitor"
)

// Server wires the control surface's dependencies together and mounts
// them on a *http.ServeMux.
type Server struct {
	reg     *registry.Registry
	sig     *signalling.Hub
	sess    *authsession.Manager
	events  *eventlog.Store
	monitor *wsmonitor.Hub
	turn    *turncreds.Issuer
}

// New builds a Server. events may be nil (no audit log / /history
// always returns an empty list).
func New(reg *registry.Registry, sig *signalling.Hub, sess *authsession.Manager, events *eventlog.Store, monitor *wsmonitor.Hub, turn *turncreds.Issuer) *Server {
	return &Server{reg: reg, sig: sig, sess: sess, events: events, monitor: monitor, turn: turn}
}

// Mount registers every route on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/users", s.handleUsers)
	mux.HandleFunc("/test-tone", s.handleTestTone)
	mux.HandleFunc("/offer", s.handleOffer)
	mux.HandleFunc("/debug", s.handleDebug)
	mux.HandleFunc("/audio-monitor", s.handleAudioMonitor)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/turn-credentials", s.turn.Handler)
	mux.HandleFunc("/ws/monitor", s.monitor.Handler)
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := s.sess.Username(r)
	if username == "" {
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return "", false
	}
	return username, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	username := s.sess.Username(r)
	if username == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body><h2>audiohub</h2><p>Signed in as " + html.EscapeString(username) + "</p></body></html>"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		username := r.FormValue("username")
		if username == "" {
			http.Error(w, "Please provide username", http.StatusBadRequest)
			return
		}
		if err := s.sess.SetUsername(w, username); err != nil {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(`<html>
<body style="font-family: Arial; padding: 50px; background: #f5f5f5;">
  <div style="max-width: 400px; margin: 0 auto; background: white; padding: 30px; border-radius: 10px;">
    <h2>Audio Intercom Login</h2>
    <form method="post">
      <input name="username" placeholder="Your name" style="width: 100%; padding: 15px; margin: 10px 0;" autofocus />
      <button type="submit" style="width: 100%; padding: 15px;">Login</button>
    </form>
  </div>
</body>
</html>`))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"users":        s.reg.List(),
		"current_user": username,
		"stats":        observability.Collect(s.reg),
	})
}

func (s *Server) handleTestTone(w http.ResponseWriter, r *http.Request) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	sess := s.reg.Get(username)
	if sess == nil {
		writeJSON(w, map[string]any{"status": "error", "message": "not registered"})
		return
	}
	if err := tonegen.Inject(sess.Mixer); err != nil {
		writeJSON(w, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, map[string]any{
		"status":   "success",
		"message":  "Test tone sent directly to " + username,
		"duration": "1 second",
	})
}

type offerRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	answerSDP, err := s.sig.AcceptOffer(username, req.SDP)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"sdp": answerSDP, "type": "answer"})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"user":     username,
		"peers":    s.reg.List(),
		"snapshot": observability.Collect(s.reg),
	})
}

func (s *Server) handleAudioMonitor(w http.ResponseWriter, r *http.Request) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	snap := observability.Collect(s.reg)
	writeJSON(w, map[string]any{
		"timestamp": snap.TakenAt,
		"user":      username,
		"mixers":    snap.Sessions,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	if s.events == nil {
		writeJSON(w, []eventlog.SessionEvent{})
		return
	}
	events, err := s.events.Recent(200)
	if err != nil {
		http.Error(w, "event log error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
