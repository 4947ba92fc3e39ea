package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestReadSconsEmptyRoot(t *testing.T) {
	var buf bytes.Buffer
	err := ReadScons(t.TempDir(), nil, core.NewTestLogger(&buf))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scan complete")
}

func TestReadSconsModuleWithoutScript(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"mymod/libtbx_config": `{"modules_required_for_build": []}`,
	})

	var buf bytes.Buffer
	log := core.NewTestLogger(&buf)
	dist, _, err := ReadDistribution(root, nil, log)
	require.NoError(t, err)

	require.NotNil(t, dist.Module("mymod"))
	assert.Zero(t, dist.Targets().Len())
}

func TestConvertFullPipeline(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"amod/SConscript": `
env = Environment()
env.Append(LIBS=["boost_thread"])
env.SharedLibrary(target="util", source=["u.cpp"])
`,
		"amod/u.cpp": "",
		"bmod/SConscript": `
env = Environment()
env.SharedLibrary(target="util", source=["u.cpp"])
env2 = Environment(SHLIBPREFIX="")
env2.Append(LIBS=["boost_python"])
env2.SharedLibrary(target="bmod_ext", source=["ext.cpp", "#generated/gen.cpp"])
`,
		"bmod/u.cpp":   "",
		"bmod/ext.cpp": "",
		"autogen.yaml": `
libtbx_refresh:
  bmod:
    - generated/gen.cpp
dependencies:
  bmod_ext: cctbx
`,
	})

	out := filepath.Join(t.TempDir(), "build")
	err := Convert(root, filepath.Join(root, "autogen.yaml"), out, nil, core.NewTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	// Duplicate target names are disambiguated per owning module.
	amodContent, err := os.ReadFile(filepath.Join(out, "amod", "CMakeLists.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(amodContent), "util_amod")

	bmodContent, err := os.ReadFile(filepath.Join(out, "bmod", "CMakeLists.txt"))
	require.NoError(t, err)
	text := string(bmodContent)
	assert.Contains(t, text, "util_bmod")

	// The boost_python extension is emitted as a python library without the
	// python link dependency, with its generated source under the build root.
	assert.Contains(t, text, "add_python_library(bmod_ext")
	assert.Contains(t, text, "${CMAKE_BINARY_DIR}/generated/gen.cpp")
	assert.Contains(t, text, "target_link_libraries(bmod_ext cctbx)")
	assert.NotContains(t, text, "Boost::python")

	// The optional boost_thread dependency guards amod's block.
	assert.Contains(t, string(amodContent), "if(TARGET Boost::thread)")

	// Root file lists the subdirectories only.
	rootContent, err := os.ReadFile(filepath.Join(out, "autogen_CMakeLists.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(rootContent), "add_subdirectory(amod)")
	assert.Contains(t, string(rootContent), "add_subdirectory(bmod)")
}

func TestConvertPropagatesFatalErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"mymod/SConscript": `
env = Environment()
env.SharedLibrary(target="mylib", source=["does_not_exist.cpp"])
`,
		"autogen.yaml": "",
	})

	err := Convert(root, filepath.Join(root, "autogen.yaml"), filepath.Join(t.TempDir(), "out"), nil, core.NewTestLogger(&bytes.Buffer{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist.cpp")
}
