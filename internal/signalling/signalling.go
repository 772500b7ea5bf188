// Package signalling implements the offer/answer sequence: create a
// PeerConnection, attach the listener's outbound mixer track, wire
// the inbound track to a SourceTrack, set the remote offer, create
// and set the local answer, and hand the answer SDP back to the
// caller. API usage ported from
// webrtc/sfu.go/webrtc/videoconference.go and
// other_examples/...eleven-am-voice-backend.../peer.go's NewPeer.
package signalling

import (
	"fmt"
	"log"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/n0remac/audiohub/internal/mixer"
	"github.com/n0remac/audiohub/internal/registry"
	"github.com/n0remac/audiohub/internal/source"
)

// API builds PeerConnections with the codec set this hub needs: Opus
// audio only, mirroring newSFUAPI's MediaEngine registration but
// trimmed to the audio-only SFMU surface (no H264/video negotiation).
func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    1,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("signalling: register opus codec: %w", err)
	}
	i := &webrtc.InterceptorRegistry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("signalling: register interceptors: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)), nil
}

// Hub owns the pion API instance and wires new participants into the
// registry as their offers arrive.
type Hub struct {
	api *webrtc.API
	reg *registry.Registry
}

// New builds a signalling Hub backed by reg.
func New(reg *registry.Registry) (*Hub, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}
	return &Hub{api: api, reg: reg}, nil
}

// AcceptOffer runs the full offer/answer sequence for participantID's
// offer SDP and returns the answer SDP to send back to the browser.
func (h *Hub) AcceptOffer(participantID, offerSDP string) (answerSDP string, err error) {
	pc, err := h.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", fmt.Errorf("signalling: new peer connection: %w", err)
	}

	outTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio",
		participantID,
	)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("signalling: new local track: %w", err)
	}
	sender, err := pc.AddTrack(outTrack)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("signalling: add track: %w", err)
	}
	go drainRTCP(participantID, sender)

	sess := h.reg.Register(participantID, pc)
	if sess == nil {
		pc.Close()
		return "", fmt.Errorf("signalling: register %s failed", participantID)
	}
	rebindMixerOutput(sess.Mixer, outTrack)

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		st, err := source.New(participantID, remote, func(err error) {
			log.Printf("[ERROR] signalling: source %s terminal error: %v", participantID, err)
			h.reg.UnregisterWithReason(participantID, err.Error())
		})
		if err != nil {
			log.Printf("[ERROR] signalling: new source track for %s: %v", participantID, err)
			return
		}
		h.reg.AttachSource(participantID, st)
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("[INFO] signalling: %s ice state -> %s", participantID, state)
		switch state {
		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
			h.reg.Unregister(participantID)
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		h.reg.Unregister(participantID)
		return "", fmt.Errorf("signalling: set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		h.reg.Unregister(participantID)
		return "", fmt.Errorf("signalling: create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		h.reg.Unregister(participantID)
		return "", fmt.Errorf("signalling: set local description: %w", err)
	}

	return pc.LocalDescription().SDP, nil
}

// drainRTCP reads and logs NACK feedback for a listener's outbound
// sender. pion requires RTCP to be read off every sender or its buffer
// grows unbounded; this hub has no video keyframes to react to, so
// unlike the video SFU's PLI handling, NACKs are only logged: nothing
// is retransmitted and no PLI is sent.
func drainRTCP(participantID string, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range pkts {
			if nack, ok := pkt.(*rtcp.TransportLayerNack); ok {
				log.Printf("[INFO] signalling: %s nack for %d packet(s)", participantID, len(nack.Nacks))
			}
		}
	}
}

// rebindMixerOutput points sess's mixer at the track created for this
// peer connection. Registry.Register creates the mixer with a nil
// output track (the registry has no pion dependency of its own), so
// signalling supplies the real one once the PeerConnection exists.
func rebindMixerOutput(m *mixer.Mixer, out *webrtc.TrackLocalStaticRTP) {
	m.SetOutput(out)
}
