// Package codec implements the Opus boundary codec: the conversion
// between RTP-carried Opus payloads and the canonical PCM frame.Frame
// used everywhere else in the hub. Decoders and encoders are not
// goroutine-safe (gopus instances hold mutable internal state) and must
// be owned by exactly one SourceTrack or Mixer.
package codec

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/n0remac/audiohub/internal/frame"
)

// Decoder turns inbound Opus RTP payloads into canonical Frames.
type Decoder struct {
	dec *gopus.Decoder
	pts int64
}

// NewDecoder builds a mono, 48kHz Opus decoder for one inbound source.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(frame.SampleRate, frame.Channels)
	if err != nil {
		return nil, fmt.Errorf("codec: new opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes one Opus payload into exactly one canonical Frame.
// In-band FEC data is not decoded. The pts advances by
// frame.SamplesPerFrame on every call (as it does in DecodePLC),
// matching the steady 20ms cadence the mixer expects from a source.
func (d *Decoder) Decode(payload []byte) (frame.Frame, error) {
	pcm, err := d.dec.Decode(payload, frame.SamplesPerFrame, false)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("codec: opus decode: %w", err)
	}
	f := frame.IngestInt16(pcm, frame.Channels, d.pts)
	d.pts += frame.SamplesPerFrame
	return f, nil
}

// DecodePLC synthesizes a frame for a lost packet using Opus's built-in
// packet-loss concealment, keeping pts advancing continuously.
func (d *Decoder) DecodePLC() (frame.Frame, error) {
	pcm, err := d.dec.Decode(nil, frame.SamplesPerFrame, false)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("codec: opus plc: %w", err)
	}
	f := frame.IngestInt16(pcm, frame.Channels, d.pts)
	d.pts += frame.SamplesPerFrame
	return f, nil
}

// Encoder turns mixed canonical Frames into Opus payloads ready for RTP.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder builds a mono, 48kHz Opus VoIP-tuned encoder for one mixer.
func NewEncoder() (*Encoder, error) {
	enc, err := gopus.NewEncoder(frame.SampleRate, frame.Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("codec: new opus encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// Encode encodes one canonical Frame into an Opus payload.
func (e *Encoder) Encode(f frame.Frame) ([]byte, error) {
	pcm := make([]int16, frame.SamplesPerFrame)
	copy(pcm, f.Samples[:])
	payload, err := e.enc.Encode(pcm, frame.SamplesPerFrame, frame.SamplesPerFrame*4)
	if err != nil {
		return nil, fmt.Errorf("codec: opus encode: %w", err)
	}
	return payload, nil
}
