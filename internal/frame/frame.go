// Package frame defines the canonical PCM frame shape the mixer operates
// on, and the conversions that normalize arbitrary inbound audio into it.
package frame

import "math"

const (
	// SampleRate is the canonical sample rate in Hz.
	SampleRate = 48000
	// SamplesPerFrame is 20ms at SampleRate.
	SamplesPerFrame = 960
	// Channels is always 1 (mono) for the canonical shape.
	Channels = 1
)

// Frame is a fixed-shape mono/48kHz/s16 PCM buffer plus its presentation
// timestamp in sample units.
type Frame struct {
	Samples   [SamplesPerFrame]int16
	PTS       int64
	TimeBase  int // denominator; always SampleRate for canonical frames
}

// NewSilence returns a canonical zero-valued frame at the given pts.
func NewSilence(pts int64) Frame {
	return Frame{PTS: pts, TimeBase: SampleRate}
}

// ToFloat normalizes f into a [-1, 1] float32 scratch buffer supplied by
// the caller. len(out) must be SamplesPerFrame.
func (f Frame) ToFloat(out []float32) {
	for i := 0; i < SamplesPerFrame; i++ {
		out[i] = float32(f.Samples[i]) / 32768.0
	}
}

// FromFloat clips in to [-1, 1] and converts to s16, writing into a new
// canonical Frame at the given pts.
func FromFloat(in []float32, pts int64) Frame {
	fr := Frame{PTS: pts, TimeBase: SampleRate}
	n := len(in)
	if n > SamplesPerFrame {
		n = SamplesPerFrame
	}
	for i := 0; i < n; i++ {
		v := in[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		fr.Samples[i] = int16(v * 32767)
	}
	return fr
}

// IngestInt16 converts an arbitrary inbound s16 PCM buffer into a
// canonical Frame.
//
//   - channels > 1: downmixed by arithmetic mean across channels.
//   - samples: scaled to float by dividing by 32768 (int16 is the only
//     integer width this package ingests; IngestFloat32 covers float
//     input).
//   - length != SamplesPerFrame: linearly resized (nearest-index stretch;
//     higher-quality resampling is explicitly out of scope for this hub).
func IngestInt16(samples []int16, channels int, pts int64) Frame {
	mono := downmixInt16(samples, channels)
	resized := resizeFloat(toFloat32Int16(mono), SamplesPerFrame)
	return FromFloat(resized, pts)
}

// IngestFloat32 normalizes an already-float PCM buffer (e.g. from a
// codec decoder that emits float) into a canonical Frame.
func IngestFloat32(samples []float32, channels int, pts int64) Frame {
	mono := downmixFloat32(samples, channels)
	mono = rescaleIfOutOfRange(mono)
	resized := resizeFloat(mono, SamplesPerFrame)
	return FromFloat(resized, pts)
}

func downmixInt16(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

func downmixFloat32(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func toFloat32Int16(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// rescaleIfOutOfRange divides by max(|x|,1) so already-float inbound
// samples that exceed unity get scaled back into [-1, 1] instead of
// clipped outright.
func rescaleIfOutOfRange(samples []float32) []float32 {
	var peak float32 = 1
	for _, v := range samples {
		a := float32(math.Abs(float64(v)))
		if a > peak {
			peak = a
		}
	}
	if peak == 1 {
		return samples
	}
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = v / peak
	}
	return out
}

// resizeFloat linearly resizes samples to exactly n entries. A trivial
// nearest-index stretch/shrink is all this hub needs; higher-quality
// resampling is a non-goal.
func resizeFloat(samples []float32, n int) []float32 {
	if len(samples) == n {
		return samples
	}
	if len(samples) == 0 {
		return make([]float32, n)
	}
	out := make([]float32, n)
	ratio := float64(len(samples)) / float64(n)
	for i := 0; i < n; i++ {
		src := int(float64(i) * ratio)
		if src >= len(samples) {
			src = len(samples) - 1
		}
		out[i] = samples[src]
	}
	return out
}
