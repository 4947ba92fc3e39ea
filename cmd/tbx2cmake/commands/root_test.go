package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

func runCLI(t *testing.T, args ...string) int {
	t.Helper()
	opts := &Options{}
	cmd := NewRootCommand(opts, core.DefaultBuildInfo)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if IsUsageError(err) {
		return 2
	}
	return 1
}

func TestUsageErrors(t *testing.T) {
	assert.Equal(t, 2, runCLI(t), "missing arguments")
	assert.Equal(t, 2, runCLI(t, "one", "two"), "wrong argument count")
	assert.Equal(t, 2, runCLI(t, "read-scons"), "read-scons needs a module dir")
	assert.Equal(t, 2, runCLI(t, "read-scons", filepath.Join(t.TempDir(), "missing")),
		"module path must be a directory")
}

func TestReadSconsEmptyDistribution(t *testing.T) {
	assert.Equal(t, 0, runCLI(t, "read-scons", t.TempDir()))
}

func TestFullPipelineExitCodes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mymod"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mymod", "SConscript"),
		[]byte("env = Environment()\nenv.SharedLibrary(target=\"mylib\", source=[\"a.cpp\"])\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mymod", "a.cpp"), nil, 0o644))
	autogenPath := filepath.Join(root, "autogen.yaml")
	require.NoError(t, os.WriteFile(autogenPath, []byte("{}\n"), 0o644))

	out := filepath.Join(t.TempDir(), "build")
	assert.Equal(t, 0, runCLI(t, root, autogenPath, out))
	assert.FileExists(t, filepath.Join(out, "mymod", "CMakeLists.txt"))

	// An existing file where the output directory should go is fatal.
	asFile := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(asFile, []byte("x"), 0o644))
	assert.Equal(t, 1, runCLI(t, root, autogenPath, asFile))
}

func TestBuildOptionsOverrideFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mymod"), 0o755))
	// The script only declares its target when CUDA is off.
	require.NoError(t, os.WriteFile(filepath.Join(root, "mymod", "SConscript"),
		[]byte("env = Environment()\nif not libtbx.env.build_options.enable_cuda:\n  env.Program(target=\"nocuda\", source=[\"m.cpp\"])\n"), 0o644))

	optionsPath := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(optionsPath, []byte("enable_cuda: false\n"), 0o644))

	assert.Equal(t, 0, runCLI(t, "read-scons", root, "--build-options", optionsPath))

	badOptions := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badOptions, []byte("no_such_flag: true\n"), 0o644))
	assert.Equal(t, 1, runCLI(t, "read-scons", root, "--build-options", badOptions))
}
