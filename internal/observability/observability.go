// Package observability exposes per-mixer and registry-wide stats for
// the /debug, /audio-monitor and /ws/monitor endpoints. Field set
// grounded on AudioMixerTrack.get_stats / AudioRouter's audio_stats map
// in original_source/intercomserver.py.
package observability

import (
	"time"

	"github.com/n0remac/audiohub/internal/mixer"
)

// MixerSnapshot is one listener's point-in-time stats, JSON-ready.
type MixerSnapshot struct {
	ParticipantID string    `json:"participant_id"`
	FramesSent    uint64    `json:"frames_sent"`
	Sources       []string  `json:"sources"`
	LastActivity  time.Time `json:"last_activity"`
	AvgAmplitude  float64   `json:"avg_amplitude"`
	Started       bool      `json:"started"`
}

// Snapshot is the full registry-wide view returned by /debug and
// /audio-monitor, and pushed over /ws/monitor.
type Snapshot struct {
	TakenAt  time.Time       `json:"taken_at"`
	Sessions []MixerSnapshot `json:"sessions"`
}

// SessionLister is the subset of *registry.Registry that Collect needs,
// kept as an interface so this package doesn't import registry and its
// tests can supply a fake lister instead of a running registry.
type SessionLister interface {
	List() []string
	MixerFor(participantID string) *mixer.Mixer
}

// Collect builds a Snapshot of every currently-registered participant's
// mixer stats.
func Collect(reg SessionLister) Snapshot {
	ids := reg.List()
	snap := Snapshot{TakenAt: time.Now(), Sessions: make([]MixerSnapshot, 0, len(ids))}
	for _, id := range ids {
		mx := reg.MixerFor(id)
		if mx == nil {
			continue
		}
		st := mx.Stats()
		snap.Sessions = append(snap.Sessions, MixerSnapshot{
			ParticipantID: id,
			FramesSent:    st.FramesSent,
			Sources:       st.Sources,
			LastActivity:  st.LastActivity,
			AvgAmplitude:  st.AvgAmplitude,
			Started:       st.Started,
		})
	}
	return snap
}
