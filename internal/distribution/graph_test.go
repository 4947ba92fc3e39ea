package distribution

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

func orderNames(order []*Module) []string {
	names := make([]string, len(order))
	for i, m := range order {
		names[i] = m.Name
	}
	return names
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestBuildOrderDependenciesFirst(t *testing.T) {
	dist := New(".")
	libtbx := NewModule("libtbx", "libtbx")
	scitbx := NewModule("scitbx", "cctbx_project/scitbx")
	cctbx := NewModule("cctbx", "cctbx_project/cctbx")
	cctbx.Required.Add("scitbx")
	for _, m := range []*Module{cctbx, scitbx, libtbx} {
		require.NoError(t, dist.AddModule(m))
	}

	order, err := BuildOrder(dist, core.NewTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	names := orderNames(order)
	assert.Equal(t, "libtbx", names[0], "the root module runs before everything")
	assert.Less(t, indexOf(names, "scitbx"), indexOf(names, "cctbx"))
}

func TestBuildOrderRepairEdge(t *testing.T) {
	dist := New(".")
	for _, name := range []string{"libtbx", "omptbx", "scitbx"} {
		require.NoError(t, dist.AddModule(NewModule(name, name)))
	}

	order, err := BuildOrder(dist, core.NewTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	names := orderNames(order)
	assert.Less(t, indexOf(names, "omptbx"), indexOf(names, "scitbx"),
		"the scitbx -> omptbx repair edge forces omptbx first")
}

func TestBuildOrderUnknownDependencyDropped(t *testing.T) {
	dist := New(".")
	libtbx := NewModule("libtbx", "libtbx")
	m := NewModule("mymod", "mymod")
	m.Required.Add("no_such_module")
	require.NoError(t, dist.AddModule(libtbx))
	require.NoError(t, dist.AddModule(m))

	var buf bytes.Buffer
	order, err := BuildOrder(dist, core.NewTestLogger(&buf))
	require.NoError(t, err, "an unknown requirement is a warning, not an error")
	assert.Len(t, order, 2)
	assert.Contains(t, buf.String(), "no_such_module")
}

func TestBuildOrderCycleIsFatal(t *testing.T) {
	dist := New(".")
	a := NewModule("aaa", "aaa")
	b := NewModule("bbb", "bbb")
	a.Required.Add("bbb")
	b.Required.Add("aaa")
	require.NoError(t, dist.AddModule(a))
	require.NoError(t, dist.AddModule(b))

	_, err := BuildOrder(dist, core.NewTestLogger(&bytes.Buffer{}))
	require.Error(t, err)

	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Error(), "aaa")
	assert.Contains(t, cerr.Error(), "bbb")
}

func TestBuildOrderDeterministic(t *testing.T) {
	build := func() []string {
		dist := New(".")
		for _, name := range []string{"libtbx", "zmod", "amod", "mmod"} {
			require.NoError(t, dist.AddModule(NewModule(name, name)))
		}
		order, err := BuildOrder(dist, core.NewTestLogger(&bytes.Buffer{}))
		require.NoError(t, err)
		return orderNames(order)
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}
