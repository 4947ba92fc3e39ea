package scons

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func callAttr(t *testing.T, recv starlark.HasAttrs, name string, args ...starlark.Value) (starlark.Value, error) {
	t.Helper()
	fn, err := recv.Attr(name)
	require.NoError(t, err)
	require.NotNil(t, fn, "attribute %s", name)
	return starlark.Call(&starlark.Thread{Name: "test"}, fn, starlark.Tuple(args), nil)
}

func TestIncludeRegistryForwardsToCPPPATH(t *testing.T) {
	env := testEnv(t)
	reg := &includeRegistry{}

	_, err := callAttr(t, reg, "append", env, stringList("inc1", "inc2"))
	require.NoError(t, err)
	_, err = callAttr(t, reg, "prepend", env, stringList("first"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "inc1", "inc2"}, envStrings(t, env, "CPPPATH"))
}

func TestIncludeRegistryBoostKnobsAreNoops(t *testing.T) {
	reg := &includeRegistry{}

	result, err := callAttr(t, reg, "scan_boost")
	require.NoError(t, err)
	assert.Equal(t, reg, result)

	result, err = callAttr(t, reg, "set_boost_dir_name")
	require.NoError(t, err)
	assert.Equal(t, reg, result)
}

func TestDarwinShlinkcomContract(t *testing.T) {
	mod := envConfigModule()
	fn := mod.Members["darwin_shlinkcom"]

	known := starlark.Tuple{
		starlark.None, starlark.None,
		starlark.String("lib/libboost_thread.lo"), starlark.String("libboost_thread.dylib"),
	}
	_, err := starlark.Call(&starlark.Thread{}, fn, known, nil)
	assert.NoError(t, err)

	unknown := starlark.Tuple{
		starlark.None, starlark.None,
		starlark.String("lib/libsomething.lo"), starlark.String("libsomething.dylib"),
	}
	_, err = starlark.Call(&starlark.Thread{}, fn, unknown, nil)
	require.Error(t, err)

	var aerr *UnknownAPIError
	assert.True(t, errors.As(err, &aerr))
}

func TestSelectMatching(t *testing.T) {
	mod := utilsModule()
	fn := mod.Members["select_matching"]

	choices := starlark.NewList([]starlark.Value{
		starlark.Tuple{starlark.String("^mac"), starlark.String("darwin")},
		starlark.Tuple{starlark.String("^linux"), starlark.String("penguin")},
	})

	result, err := starlark.Call(&starlark.Thread{}, fn,
		starlark.Tuple{starlark.String("linux-x86_64"), choices}, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.String("penguin"), result)

	result, err = starlark.Call(&starlark.Thread{}, fn,
		starlark.Tuple{starlark.String("windows"), choices}, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.None, result)
}

func TestUniquePathsPreservesFirstOccurrence(t *testing.T) {
	mod := envConfigModule()
	fn := mod.Members["unique_paths"]

	result, err := starlark.Call(&starlark.Thread{}, fn,
		starlark.Tuple{stringList("a", "b", "a", "c", "b")}, nil)
	require.NoError(t, err)
	assert.Equal(t, `["a", "b", "c"]`, result.String())
}

func TestFailStubsAbort(t *testing.T) {
	mod := utilsModule()
	_, err := starlark.Call(&starlark.Thread{}, mod.Members["getenv_bool"], nil, nil)
	require.Error(t, err)

	var aerr *UnknownAPIError
	assert.True(t, errors.As(err, &aerr))
}

func TestTryCompileRecognisedProbes(t *testing.T) {
	conf := &configureContext{}
	thread := &starlark.Thread{Name: "test"}

	for _, code := range []string{
		"#include <iostream>",
		"#include <Python.h>",
		"#include <fftw3.h>",
		"  #include <gltbx/include_opengl.h>\n",
	} {
		result, err := conf.tryCompile(thread, starlark.NewBuiltin("TryCompile", conf.tryCompile), starlark.Tuple{starlark.String(code)}, nil)
		require.NoError(t, err, code)
		assert.Equal(t, "1", result.String(), code)
	}
}

func TestTryRunCompilerProbe(t *testing.T) {
	conf := &configureContext{}
	thread := &starlark.Thread{Name: "test"}

	code := "int main() { printf(\"%d\", __GNUC_PATCHLEVEL__); }"
	result, err := conf.tryRun(thread, starlark.NewBuiltin("TryRun", conf.tryRun), starlark.Tuple{starlark.String(code)}, nil)
	require.NoError(t, err)

	pair, ok := result.(starlark.Tuple)
	require.True(t, ok)
	require.Len(t, pair, 2)
	assert.Contains(t, pair[1].String(), "clang_version")
}

func TestBuildOptionsOverride(t *testing.T) {
	opts := DefaultBuildOptions()
	require.NoError(t, opts.Override(map[string]interface{}{
		"enable_cuda": false,
		"compiler":    "gcc",
	}))
	assert.Equal(t, starlark.Bool(false), opts.values["enable_cuda"])
	assert.Equal(t, starlark.String("gcc"), opts.values["compiler"])

	assert.Error(t, opts.Override(map[string]interface{}{"no_such_flag": true}),
		"unknown flags are rejected")
	assert.Error(t, opts.Override(map[string]interface{}{"enable_cuda": "yes"}),
		"type mismatches are rejected")
}
