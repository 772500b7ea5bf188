// Package tonegen implements the server-side test tone: a synthetic
// 440Hz source injected directly into one listener's own mixer,
// bypassing the routing table entirely. Ported from
// original_source/intercomserver.py's test_tone handler and its
// ToneGenerator track (duration, frequency, and amplitude match that
// implementation exactly).
package tonegen

import (
	"log"
	"math"
	"time"

	"github.com/n0remac/audiohub/internal/frame"
	"github.com/n0remac/audiohub/internal/mixer"
	"github.com/n0remac/audiohub/internal/source"
)

// SourceID is the fixed participant-style ID the tone is added under,
// matching the Python's "__test_tone__".
const SourceID = "__test_tone__"

const (
	frequencyHz  = 440.0
	amplitude    = 0.3
	playDuration = 1 * time.Second
	removeAfter  = 1100 * time.Millisecond
)

// Inject adds a one-second 440Hz tone as SourceID directly to m and
// schedules its removal removeAfter later, returning immediately. The
// tone stops producing frames once playDuration elapses; the extra
// 100ms before removal gives the mixer time to drain the last frame.
func Inject(m *mixer.Mixer) error {
	st := source.NewSynthetic(SourceID)
	if err := m.AddSource(SourceID, st); err != nil {
		return err
	}
	log.Printf("[INFO] tonegen: injected test tone into %s's mixer", m.Owner)

	go generate(st)
	time.AfterFunc(removeAfter, func() {
		m.RemoveSource(SourceID)
		st.CloseSynthetic()
		log.Printf("[INFO] tonegen: removed test tone from %s's mixer", m.Owner)
	})
	return nil
}

// generate pushes playDuration worth of 20ms 440Hz frames to st at the
// same tick cadence the mixer consumes them at.
func generate(st *source.SourceTrack) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	total := int(playDuration / (20 * time.Millisecond))
	var pts int64
	for i := 0; i < total; i++ {
		samples := make([]float32, frame.SamplesPerFrame)
		for j := range samples {
			t := float64(pts+int64(j)) / frame.SampleRate
			samples[j] = amplitude * float32(math.Sin(2*math.Pi*frequencyHz*t))
		}
		st.PushFrame(frame.FromFloat(samples, pts))
		pts += frame.SamplesPerFrame
		if i < total-1 {
			<-ticker.C
		}
	}
}
