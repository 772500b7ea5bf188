package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n0remac/audiohub/internal/frame"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	dec, err := NewDecoder()
	require.NoError(t, err)

	in := make([]float32, frame.SamplesPerFrame)
	for i := range in {
		in[i] = 0.25
	}
	f := frame.FromFloat(in, 0)

	payload, err := enc.Encode(f)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	out, err := dec.Decode(payload)
	require.NoError(t, err)
	require.Len(t, out.Samples, frame.SamplesPerFrame)
}

func TestDecoderPLCAdvancesPTS(t *testing.T) {
	dec, err := NewDecoder()
	require.NoError(t, err)

	f1, err := dec.DecodePLC()
	require.NoError(t, err)
	require.Equal(t, int64(0), f1.PTS)

	f2, err := dec.DecodePLC()
	require.NoError(t, err)
	require.Equal(t, int64(frame.SamplesPerFrame), f2.PTS)
}
