// Package mixer implements the per-listener audio mixer: it pulls the
// latest frame from each subscribed source on a fixed 20ms tick,
// combines them with equal-power normalization, and writes the result
// out as Opus-in-RTP. Algorithm ported directly from
// original_source/intercomserver.py's AudioMixerTrack.recv().
package mixer

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/n0remac/audiohub/internal/codec"
	"github.com/n0remac/audiohub/internal/frame"
	"github.com/n0remac/audiohub/internal/source"
)

const tickInterval = 20 * time.Millisecond

const (
	fallbackToneHz  = 440.0
	fallbackToneAmp = 0.05
)

// opusPayloadType is the dynamic PT this hub negotiates for Opus; kept
// as a constant here because the mixer writes raw RTP packets rather
// than going through pion's SampleWriter, the same low-level pattern
// other_examples/...eleven-am-voice-backend.../peer.go's WriteRTP uses.
const opusPayloadType = 111

// Stats mirrors AudioMixerTrack.get_stats(): counters read by
// internal/observability, safe to read concurrently with an active
// mixer via Mixer.Stats().
type Stats struct {
	FramesSent    uint64
	Sources       []string
	LastActivity  time.Time
	AvgAmplitude  float64
	Started       bool
}

// Mixer owns one listener's outbound mixed stream. One goroutine per
// Mixer drives the tick loop; source add/remove calls and each tick's
// snapshot of the subscription set share a single mutex (the mix
// itself runs on the snapshot without holding it), matching the
// scale this hub targets (tens of participants in a small conferencing
// room, not an SFU fan-out at LiveKit scale).
type Mixer struct {
	Owner string

	out     *webrtc.TrackLocalStaticRTP
	enc     *codec.Encoder
	ssrc    uint32
	seq     uint16
	rtpTS   uint32

	mu          sync.Mutex
	subs        map[string]*source.Subscription
	started     bool
	audioSample int64

	statsMu      sync.Mutex
	framesSent   uint64
	lastActivity time.Time
	totalAmp     float64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Mixer whose output is written to out, encoding with enc.
// ssrc identifies the outbound RTP stream; callers generate it with
// crypto/rand the way internal/registry does for every mixer it
// creates.
func New(owner string, out *webrtc.TrackLocalStaticRTP, enc *codec.Encoder, ssrc uint32) *Mixer {
	return &Mixer{
		Owner:  owner,
		out:    out,
		enc:    enc,
		ssrc:   ssrc,
		subs:   make(map[string]*source.Subscription),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SetOutput rebinds the mixer's outbound RTP track. Used by
// internal/signalling once a PeerConnection (and its track) exists,
// since internal/registry constructs mixers before the pion layer is
// involved at all.
func (m *Mixer) SetOutput(out *webrtc.TrackLocalStaticRTP) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = out
}

// AddSource subscribes the mixer to sourceID's track.
func (m *Mixer) AddSource(sourceID string, st *source.SourceTrack) error {
	sub, err := st.Subscribe()
	if err != nil {
		return err
	}
	m.mu.Lock()
	if old, ok := m.subs[sourceID]; ok {
		old.Close()
	}
	m.subs[sourceID] = sub
	m.mu.Unlock()
	log.Printf("[INFO] mixer %s: added source %s", m.Owner, sourceID)
	return nil
}

// RemoveSource unsubscribes the mixer from sourceID, if present.
func (m *Mixer) RemoveSource(sourceID string) {
	m.mu.Lock()
	sub, ok := m.subs[sourceID]
	if ok {
		delete(m.subs, sourceID)
	}
	m.mu.Unlock()
	if ok {
		sub.Close()
		log.Printf("[INFO] mixer %s: removed source %s", m.Owner, sourceID)
	}
}

// LiveSources returns the set of source IDs currently subscribed, for
// internal/routing's reconciliation Diff.
func (m *Mixer) LiveSources() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.subs))
	for id := range m.subs {
		out[id] = struct{}{}
	}
	return out
}

// Start begins the 20ms tick loop in a new goroutine.
func (m *Mixer) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	log.Printf("[INFO] mixer %s: started", m.Owner)
	go m.run()
}

// Stop halts the tick loop and releases all subscriptions.
func (m *Mixer) Stop() {
	close(m.stopCh)
	<-m.doneCh

	m.mu.Lock()
	m.started = false
	subs := m.subs
	m.subs = make(map[string]*source.Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	log.Printf("[INFO] mixer %s: stopped", m.Owner)
}

func (m *Mixer) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick mixes exactly one frame via Mix and writes it out. Tests call
// Mix directly to drive single mixes without wall-clock timing.
func (m *Mixer) tick() {
	f := m.Mix()

	payload, err := m.enc.Encode(f)
	if err != nil {
		log.Printf("[ERROR] mixer %s: encode: %v", m.Owner, err)
		return
	}
	if m.out == nil {
		return
	}
	if err := m.writeRTP(payload); err != nil {
		log.Printf("[ERROR] mixer %s: write rtp: %v", m.Owner, err)
	}
}

// Mix computes exactly one mixed Frame from the current subscription
// snapshot, following AudioMixerTrack.recv()'s algorithm: fallback tone
// if there are no sources at all, otherwise sum every source's latest
// frame, normalize by sqrt(active_sources) when more than one source
// contributed, and advance pts by frame.SamplesPerFrame.
func (m *Mixer) Mix() frame.Frame {
	m.mu.Lock()
	subs := make(map[string]*source.Subscription, len(m.subs))
	for id, s := range m.subs {
		subs[id] = s
	}
	pts := m.audioSample
	m.audioSample += frame.SamplesPerFrame
	m.mu.Unlock()

	samples := make([]float32, frame.SamplesPerFrame)
	activeSources := 0
	var terminated []string

	if len(subs) == 0 {
		fillFallbackTone(samples)
		activeSources = 1
	}

	for id, sub := range subs {
		select {
		case f, ok := <-sub.Chan():
			if !ok {
				// The source ended or failed terminally; defer its
				// removal until after this tick instead of mutating
				// m.subs while iterating the snapshot.
				terminated = append(terminated, id)
				continue
			}
			var src [frame.SamplesPerFrame]float32
			f.ToFloat(src[:])
			for i := range samples {
				samples[i] += src[i]
			}
			activeSources++
		default:
			// No fresh frame this tick from this source; it simply
			// contributes nothing, matching the Python's behavior when
			// track.recv() would otherwise block (we never block).
		}
	}

	amp := meanAbs(samples)
	m.statsMu.Lock()
	m.framesSent++
	m.lastActivity = time.Now()
	m.totalAmp += amp
	m.statsMu.Unlock()

	if activeSources > 1 {
		div := float32(math.Sqrt(float64(activeSources)))
		for i := range samples {
			samples[i] /= div
		}
	}

	for _, id := range terminated {
		m.RemoveSource(id)
	}

	return frame.FromFloat(samples, pts)
}

func fillFallbackTone(samples []float32) {
	for i := range samples {
		t := float64(i) / frame.SampleRate
		samples[i] = fallbackToneAmp * float32(math.Sin(2*math.Pi*fallbackToneHz*t))
	}
}

func meanAbs(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += math.Abs(float64(v))
	}
	return sum / float64(len(samples))
}

// writeRTP packs payload into one RTP packet and writes it to the
// outbound track, advancing sequence number and timestamp by one frame
// worth of samples each call, ported from the seq/timestamp
// bookkeeping idiom in other_examples/...eleven-am-voice-backend
// .../peer.go's WriteRTP.
func (m *Mixer) writeRTP(payload []byte) error {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: m.seq,
			Timestamp:      m.rtpTS,
			SSRC:           m.ssrc,
		},
		Payload: payload,
	}
	m.seq++
	m.rtpTS += frame.SamplesPerFrame
	return m.out.WriteRTP(pkt)
}

// Stats returns a snapshot of this mixer's counters.
func (m *Mixer) Stats() Stats {
	m.mu.Lock()
	sources := make([]string, 0, len(m.subs))
	for id := range m.subs {
		sources = append(sources, id)
	}
	started := m.started
	m.mu.Unlock()

	m.statsMu.Lock()
	framesSent := m.framesSent
	lastActivity := m.lastActivity
	totalAmp := m.totalAmp
	m.statsMu.Unlock()

	avg := 0.0
	if framesSent > 0 {
		avg = totalAmp / float64(framesSent)
	}
	return Stats{
		FramesSent:   framesSent,
		Sources:      sources,
		LastActivity: lastActivity,
		AvgAmplitude: avg,
		Started:      started,
	}
}
