// Package source implements the inbound side of the hub: a SourceTrack
// wraps one participant's remote audio track and decodes it to canonical
// frame.Frame values, and Subscription provides a non-buffered fan-out so
// every listener's mixer sees only the most recent frame, never a queue.
package source

import (
	"errors"
	"io"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/n0remac/audiohub/internal/codec"
	"github.com/n0remac/audiohub/internal/frame"
)

// ErrClosed is returned by Subscribe on a SourceTrack that has already
// stopped reading.
var ErrClosed = errors.New("source: track closed")

// Subscription is a single listener's view onto a SourceTrack. Reads are
// non-buffered: Next always returns the most recently decoded frame, so a
// slow subscriber skips forward rather than building a backlog.
type Subscription struct {
	id   uint64
	src  *SourceTrack
	ch   chan frame.Frame
}

// Next blocks until the next frame is available or the subscription is
// closed, in which case ok is false.
func (s *Subscription) Next() (f frame.Frame, ok bool) {
	f, ok = <-s.ch
	return f, ok
}

// Chan exposes the underlying channel for non-blocking reads (select
// with default), which is how internal/mixer samples the latest frame
// on each tick without ever blocking the mix loop on a slow or silent
// source.
func (s *Subscription) Chan() <-chan frame.Frame {
	return s.ch
}

// NewTestSubscription builds a standalone Subscription backed by ch,
// for use by other packages' tests that need to feed a mixer frames
// without standing up a real pion TrackRemote.
func NewTestSubscription(ch chan frame.Frame) *Subscription {
	return &Subscription{ch: ch, src: &SourceTrack{subs: map[uint64]chan frame.Frame{}}}
}

// NewSynthetic builds a SourceTrack with no underlying pion track or
// Opus decoder, fed by explicit PushFrame calls instead of RTP. Used
// for server-generated sources like the test tone (internal/tonegen),
// which still need to go through a normal Mixer.AddSource/RemoveSource
// subscription lifecycle.
func NewSynthetic(participantID string) *SourceTrack {
	return &SourceTrack{
		ParticipantID: participantID,
		subs:          make(map[uint64]chan frame.Frame),
		done:          make(chan struct{}),
	}
}

// PushFrame broadcasts f to every current subscriber, the same
// fan-out readLoop uses for frames decoded off the wire.
func (st *SourceTrack) PushFrame(f frame.Frame) {
	st.broadcast(f)
}

// CloseSynthetic tears down a synthetic source's subscriptions. Real
// SourceTracks close themselves when readLoop exits; a synthetic one
// has no read loop, so its owner calls this explicitly once done.
func (st *SourceTrack) CloseSynthetic() {
	st.closeAll()
}

// Close detaches the subscription from its SourceTrack. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.src.unsubscribe(s.id)
}

// SourceTrack reads RTP from one participant's remote audio track,
// decodes Opus to canonical Frames, and fans each decoded frame out to
// all current subscriptions without buffering.
type SourceTrack struct {
	ParticipantID string

	remote *webrtc.TrackRemote
	dec    *codec.Decoder

	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan frame.Frame
	closed  bool
	done    chan struct{}
	onError func(error)
}

// New wraps remote in a SourceTrack and starts its read loop in a new
// goroutine. onError, if non-nil, is invoked once when the read loop
// exits due to a non-EOF error, so callers can treat a source read
// failure as a terminal error for that participant.
func New(participantID string, remote *webrtc.TrackRemote, onError func(error)) (*SourceTrack, error) {
	dec, err := codec.NewDecoder()
	if err != nil {
		return nil, err
	}
	st := &SourceTrack{
		ParticipantID: participantID,
		remote:        remote,
		dec:           dec,
		subs:          make(map[uint64]chan frame.Frame),
		done:          make(chan struct{}),
		onError:       onError,
	}
	go st.readLoop()
	return st, nil
}

func (st *SourceTrack) readLoop() {
	defer close(st.done)
	buf := make([]byte, 1500)
	for {
		n, _, err := st.remote.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("[ERROR] source %s: read: %v", st.ParticipantID, err)
				if st.onError != nil {
					st.onError(err)
				}
			} else {
				log.Printf("[INFO] source %s: track ended", st.ParticipantID)
			}
			st.closeAll()
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		f, err := st.dec.Decode(payload)
		if err != nil {
			log.Printf("[ERROR] source %s: decode: %v", st.ParticipantID, err)
			continue
		}
		st.broadcast(f)
	}
}

// broadcast delivers f to every current subscription without blocking: a
// subscriber whose channel already holds an undelivered frame has that
// frame dropped in favor of the newer one, which is the "skip forward"
// behavior this package exists to provide.
func (st *SourceTrack) broadcast(f frame.Frame) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, ch := range st.subs {
		select {
		case ch <- f:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f:
			default:
			}
		}
	}
}

// Subscribe registers a new listener and returns a handle to it.
func (st *SourceTrack) Subscribe() (*Subscription, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil, ErrClosed
	}
	id := st.nextID
	st.nextID++
	ch := make(chan frame.Frame, 1)
	st.subs[id] = ch
	return &Subscription{id: id, src: st, ch: ch}, nil
}

func (st *SourceTrack) unsubscribe(id uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ch, ok := st.subs[id]; ok {
		delete(st.subs, id)
		close(ch)
	}
}

func (st *SourceTrack) closeAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closed = true
	for id, ch := range st.subs {
		delete(st.subs, id)
		close(ch)
	}
}

// Done returns a channel closed once the read loop has exited.
func (st *SourceTrack) Done() <-chan struct{} {
	return st.done
}
