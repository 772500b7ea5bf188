package signalling

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n0remac/audiohub/internal/registry"
)

func TestNewAPIRegistersOpusCodec(t *testing.T) {
	api, err := newAPI()
	require.NoError(t, err)
	require.NotNil(t, api)
}

func TestNewHubWiresRegistry(t *testing.T) {
	reg := registry.New(nil)
	h, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Same(t, reg, h.reg)
}
