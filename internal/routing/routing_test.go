package routing

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestOnJoinFullMesh(t *testing.T) {
	tbl := New()
	tbl.OnJoin("a")
	tbl.OnJoin("b")
	tbl.OnJoin("c")

	require.Equal(t, []string{"a", "b", "c"}, sorted(tbl.Sources("a")))
	require.Equal(t, []string{"a", "b", "c"}, sorted(tbl.Sources("b")))
	require.Equal(t, []string{"a", "b", "c"}, sorted(tbl.Sources("c")))
}

func TestOnLeaveRemovesFromAll(t *testing.T) {
	tbl := New()
	tbl.OnJoin("a")
	tbl.OnJoin("b")
	tbl.OnLeave("a")

	require.Nil(t, tbl.Sources("a"))
	require.Equal(t, []string{"b"}, sorted(tbl.Sources("b")))
}

func TestSetRoutingOverride(t *testing.T) {
	tbl := New()
	tbl.OnJoin("a")
	tbl.OnJoin("b")
	tbl.OnJoin("c")

	tbl.SetRouting("a", []string{"b"})
	require.Equal(t, []string{"b"}, sorted(tbl.Sources("a")))
}

func TestSetRoutingNoOpIfNotRegistered(t *testing.T) {
	tbl := New()
	tbl.SetRouting("ghost", []string{"a"})
	require.Nil(t, tbl.Sources("ghost"))
}

func TestDiffAddAndRemove(t *testing.T) {
	tbl := New()
	tbl.OnJoin("a")
	tbl.OnJoin("b")
	tbl.OnJoin("c")
	tbl.SetRouting("a", []string{"b"})

	live := map[string]struct{}{"a": {}, "c": {}}
	toAdd, toRemove := tbl.Diff("a", live)

	require.Equal(t, []string{"b"}, toAdd)
	require.Equal(t, []string{"a", "c"}, sorted(toRemove))
}

func TestDiffNoChangeWhenInSync(t *testing.T) {
	tbl := New()
	tbl.OnJoin("a")
	tbl.OnJoin("b")

	live := map[string]struct{}{"a": {}, "b": {}}
	toAdd, toRemove := tbl.Diff("a", live)

	require.Empty(t, toAdd)
	require.Empty(t, toRemove)
}

func TestListeners(t *testing.T) {
	tbl := New()
	tbl.OnJoin("a")
	tbl.OnJoin("b")
	require.Equal(t, []string{"a", "b"}, sorted(tbl.Listeners()))
}
