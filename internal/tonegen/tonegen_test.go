package tonegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n0remac/audiohub/internal/codec"
	"github.com/n0remac/audiohub/internal/mixer"
	"github.com/n0remac/audiohub/internal/source"
)

func TestInjectAddsToneAsLiveSource(t *testing.T) {
	enc, err := codec.NewEncoder()
	require.NoError(t, err)
	m := mixer.New("alice", nil, enc, 1)

	require.NoError(t, Inject(m))
	require.Contains(t, m.LiveSources(), SourceID)
}

func TestGenerateProducesNonSilentFrames(t *testing.T) {
	st := source.NewSynthetic("tone-under-test")
	sub, err := st.Subscribe()
	require.NoError(t, err)

	go generate(st)

	f, ok := sub.Next()
	require.True(t, ok)

	var hasNonZero bool
	for _, s := range f.Samples {
		if s != 0 {
			hasNonZero = true
			break
		}
	}
	require.True(t, hasNonZero)
}
