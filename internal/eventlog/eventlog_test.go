package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	store, err := Open(":memory:", "")
	require.NoError(t, err)

	require.NoError(t, store.Append("alice", KindJoin, ""))
	require.NoError(t, store.Append("alice", KindLeave, ""))
	require.NoError(t, store.Append("bob", KindJoin, ""))

	events, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.NotEmpty(t, events[0].ID)
}

func TestRecentRespectsLimit(t *testing.T) {
	store, err := Open(":memory:", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append("alice", KindJoin, ""))
	}

	events, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
}
