package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSilenceIsZero(t *testing.T) {
	f := NewSilence(960)
	for _, s := range f.Samples {
		require.Equal(t, int16(0), s)
	}
	require.Equal(t, int64(960), f.PTS)
	require.Equal(t, SampleRate, f.TimeBase)
}

func TestFloatRoundTrip(t *testing.T) {
	in := make([]float32, SamplesPerFrame)
	for i := range in {
		in[i] = 0.5
	}
	f := FromFloat(in, 0)

	out := make([]float32, SamplesPerFrame)
	f.ToFloat(out)
	for _, v := range out {
		require.InDelta(t, 0.5, v, 0.01)
	}
}

func TestFromFloatClips(t *testing.T) {
	in := make([]float32, SamplesPerFrame)
	in[0] = 2.0
	in[1] = -2.0
	f := FromFloat(in, 0)
	require.Equal(t, int16(32767), f.Samples[0])
	require.Equal(t, int16(-32767), f.Samples[1])
}

func TestIngestInt16DownmixesStereo(t *testing.T) {
	stereo := make([]int16, SamplesPerFrame*2)
	for i := 0; i < SamplesPerFrame; i++ {
		stereo[2*i] = 1000
		stereo[2*i+1] = -1000
	}
	f := IngestInt16(stereo, 2, 42)
	require.Equal(t, int64(42), f.PTS)
	for _, s := range f.Samples {
		require.InDelta(t, int16(0), s, 2)
	}
}

func TestIngestInt16ResizesShortBuffer(t *testing.T) {
	short := make([]int16, 480)
	for i := range short {
		short[i] = 5000
	}
	f := IngestInt16(short, 1, 0)
	require.Len(t, f.Samples, SamplesPerFrame)
	require.NotEqual(t, int16(0), f.Samples[0])
	require.NotEqual(t, int16(0), f.Samples[SamplesPerFrame-1])
}

func TestIngestFloat32RescalesOutOfRange(t *testing.T) {
	samples := make([]float32, SamplesPerFrame)
	for i := range samples {
		samples[i] = 3.0
	}
	f := IngestFloat32(samples, 1, 0)
	for _, s := range f.Samples {
		require.LessOrEqual(t, s, int16(32767))
		require.GreaterOrEqual(t, s, int16(-32767))
	}
	require.InDelta(t, int16(32767), f.Samples[0], 2)
}

func TestResizeFloatIdentity(t *testing.T) {
	in := make([]float32, SamplesPerFrame)
	for i := range in {
		in[i] = float32(i)
	}
	out := resizeFloat(in, SamplesPerFrame)
	require.Equal(t, in, out)
}

func TestResizeFloatEmpty(t *testing.T) {
	out := resizeFloat(nil, SamplesPerFrame)
	require.Len(t, out, SamplesPerFrame)
	for _, v := range out {
		require.Equal(t, float32(0), v)
	}
}
