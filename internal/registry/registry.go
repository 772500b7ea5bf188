// Package registry implements the session registry: the single
// serialized control actor that owns participant lifecycle, funneling
// every register/unregister/routing mutation through one goroutine so
// participant and routing state stay consistent at every observable
// moment. Generalized from the single-select-loop idiom in
// websocket/websocket.go's Hub.Run().
package registry

import (
	"crypto/rand"
	"encoding/binary"
	"log"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/n0remac/audiohub/internal/codec"
	"github.com/n0remac/audiohub/internal/eventlog"
	"github.com/n0remac/audiohub/internal/mixer"
	"github.com/n0remac/audiohub/internal/routing"
	"github.com/n0remac/audiohub/internal/source"
)

// randomSSRC generates an RTP SSRC the way
// other_examples/...eleven-am-voice-backend.../peer.go does: crypto/rand
// rather than math/rand, since SSRCs are visible on the wire.
func randomSSRC() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// Session is one participant's live state: its inbound source (once a
// track has arrived) and its outbound mixer (created at registration).
type Session struct {
	ParticipantID string
	PeerConn      *webrtc.PeerConnection
	Source        *source.SourceTrack
	Mixer         *mixer.Mixer
	JoinedAt      time.Time
}

type command struct {
	kind    string
	id      string
	pc      *webrtc.PeerConnection
	track   *source.SourceTrack
	sources []string
	reason  string
	reply   chan any
}

// Registry is the single control actor. All exported methods send a
// command onto an internal channel and block for the actor's reply;
// the actor goroutine is the only thing that ever reads or writes the
// sessions map and routing table directly.
type Registry struct {
	cmds   chan command
	events *eventlog.Store

	sessions map[string]*Session
	routes   *routing.Table
}

// New builds a Registry and starts its control goroutine. events may
// be nil, in which case lifecycle events are silently dropped (useful
// for tests that don't need an audit trail).
func New(events *eventlog.Store) *Registry {
	r := &Registry{
		cmds:     make(chan command),
		events:   events,
		sessions: make(map[string]*Session),
		routes:   routing.New(),
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	for cmd := range r.cmds {
		switch cmd.kind {
		case "register":
			cmd.reply <- r.doRegister(cmd.id, cmd.pc)
		case "unregister":
			r.doUnregister(cmd.id, cmd.reason)
			cmd.reply <- nil
		case "attachSource":
			r.doAttachSource(cmd.id, cmd.track)
			cmd.reply <- nil
		case "setRouting":
			r.doSetRouting(cmd.id, cmd.sources)
			cmd.reply <- nil
		case "reconcile":
			r.doReconcileAll()
			cmd.reply <- nil
		case "get":
			cmd.reply <- r.sessions[cmd.id]
		case "list":
			ids := make([]string, 0, len(r.sessions))
			for id := range r.sessions {
				ids = append(ids, id)
			}
			cmd.reply <- ids
		}
	}
}

func (r *Registry) doRegister(id string, pc *webrtc.PeerConnection) *Session {
	if old, ok := r.sessions[id]; ok {
		log.Printf("[INFO] registry: re-register of %s, evicting old session", id)
		r.evict(old)
		r.logEvent(id, eventlog.KindEvict, "superseded by new offer")
	}

	enc, err := codec.NewEncoder()
	if err != nil {
		log.Printf("[ERROR] registry: new encoder for %s: %v", id, err)
		return nil
	}
	mx := mixer.New(id, nil, enc, randomSSRC())
	mx.Start()

	sess := &Session{
		ParticipantID: id,
		PeerConn:      pc,
		Mixer:         mx,
		JoinedAt:      time.Now(),
	}
	r.sessions[id] = sess
	r.routes.OnJoin(id)
	r.logEvent(id, eventlog.KindJoin, "")
	log.Printf("[INFO] registry: registered %s, total participants: %d", id, len(r.sessions))

	r.doReconcileAll()
	return sess
}

func (r *Registry) doUnregister(id, reason string) {
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	r.evict(sess)
	kind := eventlog.KindLeave
	if reason != "" {
		kind = eventlog.KindTerminalError
	}
	r.logEvent(id, kind, reason)
	log.Printf("[INFO] registry: unregistered %s (%s)", id, kind)
}

func (r *Registry) evict(sess *Session) {
	sess.Mixer.Stop()
	delete(r.sessions, sess.ParticipantID)
	r.routes.OnLeave(sess.ParticipantID)
	r.doReconcileAll()
}

func (r *Registry) doAttachSource(id string, st *source.SourceTrack) {
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	sess.Source = st
	log.Printf("[INFO] registry: attached incoming track for %s", id)
	r.doReconcileAll()
}

func (r *Registry) doSetRouting(listener string, sources []string) {
	r.routes.SetRouting(listener, sources)
	r.doReconcileAll()
}

// doReconcileAll diffs every listener's routing intent against its
// mixer's live subscriptions and applies the delta, mirroring
// AudioRouter._update_all_mixers but as an incremental diff instead of
// a full clear-and-rebuild.
func (r *Registry) doReconcileAll() {
	for listenerID, sess := range r.sessions {
		live := sess.Mixer.LiveSources()
		toAdd, toRemove := r.routes.Diff(listenerID, live)

		for _, srcID := range toRemove {
			sess.Mixer.RemoveSource(srcID)
		}
		for _, srcID := range toAdd {
			srcSess, ok := r.sessions[srcID]
			if !ok || srcSess.Source == nil {
				continue
			}
			if err := sess.Mixer.AddSource(srcID, srcSess.Source); err != nil {
				log.Printf("[ERROR] registry: reconcile %s<-%s: %v", listenerID, srcID, err)
			}
		}
	}
}

func (r *Registry) logEvent(participantID, kind, detail string) {
	if r.events == nil {
		return
	}
	if err := r.events.Append(participantID, kind, detail); err != nil {
		log.Printf("[ERROR] registry: event log append: %v", err)
	}
}

// Register creates a session and mixer for participantID, evicting any
// existing session under the same ID first.
func (r *Registry) Register(participantID string, pc *webrtc.PeerConnection) *Session {
	reply := make(chan any)
	r.cmds <- command{kind: "register", id: participantID, pc: pc, reply: reply}
	v := <-reply
	if v == nil {
		return nil
	}
	return v.(*Session)
}

// Unregister tears down participantID's session. Idempotent.
func (r *Registry) Unregister(participantID string) {
	reply := make(chan any)
	r.cmds <- command{kind: "unregister", id: participantID, reply: reply}
	<-reply
}

// UnregisterWithReason tears down participantID's session the way
// Unregister does, but records the teardown as a terminal_error event
// with reason as its detail rather than an ordinary leave. Used for
// the source-read-failure path, where the participant didn't choose
// to disconnect.
func (r *Registry) UnregisterWithReason(participantID, reason string) {
	reply := make(chan any)
	r.cmds <- command{kind: "unregister", id: participantID, reason: reason, reply: reply}
	<-reply
}

// AttachSource records participantID's inbound SourceTrack once its
// remote track has arrived, then reconciles routing.
func (r *Registry) AttachSource(participantID string, st *source.SourceTrack) {
	reply := make(chan any)
	r.cmds <- command{kind: "attachSource", id: participantID, track: st, reply: reply}
	<-reply
}

// SetRouting overrides which sources listener hears and reconciles.
func (r *Registry) SetRouting(listener string, sources []string) {
	reply := make(chan any)
	r.cmds <- command{kind: "setRouting", id: listener, sources: sources, reply: reply}
	<-reply
}

// Get returns participantID's session, or nil if not registered.
func (r *Registry) Get(participantID string) *Session {
	reply := make(chan any)
	r.cmds <- command{kind: "get", id: participantID, reply: reply}
	v := <-reply
	if v == nil {
		return nil
	}
	return v.(*Session)
}

// List returns every currently-registered participant ID.
func (r *Registry) List() []string {
	reply := make(chan any)
	r.cmds <- command{kind: "list", reply: reply}
	return (<-reply).([]string)
}

// MixerFor returns participantID's mixer, or nil if not registered.
// Satisfies internal/observability.SessionLister.
func (r *Registry) MixerFor(participantID string) *mixer.Mixer {
	sess := r.Get(participantID)
	if sess == nil {
		return nil
	}
	return sess.Mixer
}
