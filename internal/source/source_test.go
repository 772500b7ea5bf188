package source

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n0remac/audiohub/internal/frame"
)

func newTestSourceTrack() *SourceTrack {
	return &SourceTrack{
		ParticipantID: "p1",
		subs:          make(map[uint64]chan frame.Frame),
		done:          make(chan struct{}),
	}
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	st := newTestSourceTrack()
	sub, err := st.Subscribe()
	require.NoError(t, err)

	f := frame.NewSilence(960)
	st.broadcast(f)

	got, ok := sub.Next()
	require.True(t, ok)
	require.Equal(t, int64(960), got.PTS)
}

func TestSlowSubscriberSkipsToLatest(t *testing.T) {
	st := newTestSourceTrack()
	sub, err := st.Subscribe()
	require.NoError(t, err)

	st.broadcast(frame.NewSilence(0))
	st.broadcast(frame.NewSilence(960))
	st.broadcast(frame.NewSilence(1920))

	got, ok := sub.Next()
	require.True(t, ok)
	require.Equal(t, int64(1920), got.PTS)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	st := newTestSourceTrack()
	sub, err := st.Subscribe()
	require.NoError(t, err)

	sub.Close()

	_, ok := sub.Next()
	require.False(t, ok)
}

func TestCloseAllClosesAllSubscriptions(t *testing.T) {
	st := newTestSourceTrack()
	sub1, err := st.Subscribe()
	require.NoError(t, err)
	sub2, err := st.Subscribe()
	require.NoError(t, err)

	st.closeAll()

	_, ok1 := sub1.Next()
	_, ok2 := sub2.Next()
	require.False(t, ok1)
	require.False(t, ok2)

	_, err = st.Subscribe()
	require.ErrorIs(t, err, ErrClosed)
}

func TestMultipleSubscribersEachGetBroadcast(t *testing.T) {
	st := newTestSourceTrack()
	subA, err := st.Subscribe()
	require.NoError(t, err)
	subB, err := st.Subscribe()
	require.NoError(t, err)

	st.broadcast(frame.NewSilence(480))

	gotA, okA := subA.Next()
	gotB, okB := subB.Next()
	require.True(t, okA)
	require.True(t, okB)
	require.Equal(t, int64(480), gotA.PTS)
	require.Equal(t, int64(480), gotB.PTS)
}
