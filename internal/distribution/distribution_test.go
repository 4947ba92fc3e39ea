package distribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoModuleDist(t *testing.T) (*Distribution, *Target, *Target, *Target) {
	t.Helper()
	dist := New(".")

	a := NewModule("alpha", "alpha")
	b := NewModule("beta", "beta")
	require.NoError(t, dist.AddModule(a))
	require.NoError(t, dist.AddModule(b))

	t1 := NewTarget("one", Shared)
	t2 := NewTarget("two", Static)
	t3 := NewTarget("three", Program)
	a.AddTarget(t1)
	a.AddTarget(t2)
	b.AddTarget(t3)
	return dist, t1, t2, t3
}

func TestTargetCollectionIterationOrder(t *testing.T) {
	dist, t1, t2, t3 := twoModuleDist(t)

	all := dist.Targets().All()
	require.Len(t, all, 3)
	// Module insertion order, then declaration order within a module.
	assert.Equal(t, []*Target{t1, t2, t3}, all)
	assert.Equal(t, 3, dist.Targets().Len())
}

func TestTargetCollectionRemoveDetaches(t *testing.T) {
	dist, t1, _, _ := twoModuleDist(t)
	collection := dist.Targets()

	require.True(t, collection.Contains(t1))
	require.NoError(t, collection.Remove(t1))

	assert.Nil(t, t1.Module, "removal must clear the module reference")
	assert.False(t, collection.Contains(t1))
	assert.Equal(t, 2, collection.Len())
	assert.Error(t, collection.Remove(t1), "second removal must fail")
}

func TestRemoveModuleDropsTargets(t *testing.T) {
	dist, _, _, t3 := twoModuleDist(t)

	require.True(t, dist.RemoveModule("beta"))
	assert.Nil(t, dist.Module("beta"))
	assert.False(t, dist.Targets().Contains(t3))
	assert.Len(t, dist.Modules(), 1)
}

func TestAddModuleRejectsDuplicates(t *testing.T) {
	dist := New(".")
	require.NoError(t, dist.AddModule(NewModule("alpha", "alpha")))
	assert.Error(t, dist.AddModule(NewModule("alpha", "elsewhere/alpha")))
}
