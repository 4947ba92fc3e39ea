package cmake

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxtools/tbx2cmake/internal/distribution"
)

func sharedTarget(name string, sources ...string) *distribution.Target {
	target := distribution.NewTarget(name, distribution.Shared)
	target.Prefix = "lib"
	target.Sources = sources
	return target
}

func TestLibraryBlockForms(t *testing.T) {
	tests := []struct {
		name  string
		ttype distribution.TargetType
		want  string
	}{
		{"shared", distribution.Shared, "add_library(mylib SHARED a.cpp)"},
		{"static", distribution.Static, "add_library(mylib STATIC a.cpp)"},
		{"program", distribution.Program, "add_executable(mylib a.cpp)"},
		{"module", distribution.ModuleType, "add_python_library(mylib a.cpp)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := distribution.NewTarget("mylib", tc.ttype)
			target.Sources = []string{"a.cpp"}
			assert.Equal(t, tc.want, libraryBlock(target))
		})
	}
}

func TestLibraryBlockGeneratedSources(t *testing.T) {
	target := sharedTarget("mylib", "a.cpp")
	target.GeneratedSources = []string{"mymod/derived.cpp"}

	block := libraryBlock(target)
	assert.Contains(t, block, "${CMAKE_BINARY_DIR}/mymod/derived.cpp")
}

func TestLibraryBlockIncludeSplit(t *testing.T) {
	target := sharedTarget("mylib", "a.cpp")
	target.IncludePaths.Add("public/include", "!secret/include", "#base/cctbx_project", "#build")

	block := libraryBlock(target)
	assert.Contains(t, block, "PUBLIC")
	assert.Contains(t, block, "PRIVATE")
	assert.Contains(t, block, "${CMAKE_SOURCE_DIR}/cctbx_project")
	assert.Contains(t, block, "${CMAKE_BINARY_DIR}")
	assert.Contains(t, block, "secret/include")
	assert.NotContains(t, block, "!secret")
}

func TestLibraryBlockLinkRenames(t *testing.T) {
	target := sharedTarget("mylib", "a.cpp")
	target.ExtraLibs.Add("hdf5_c", "tiff", "cctbx")

	block := libraryBlock(target)
	assert.Contains(t, block, "target_link_libraries(mylib cctbx HDF5::C TIFF::TIFF)")
}

func TestPythonModuleOmitsBoostPythonLink(t *testing.T) {
	target := distribution.NewTarget("mymod_ext", distribution.ModuleType)
	target.Sources = []string{"ext.cpp"}
	target.BoostPython = true
	target.ExtraLibs.Add("boost_python", "cctbx")

	block := libraryBlock(target)
	assert.Contains(t, block, "add_python_library(mymod_ext ext.cpp)")
	assert.Contains(t, block, "target_link_libraries(mymod_ext cctbx)")
	assert.NotContains(t, block, "Boost::python")
}

func TestOptionalDependencyGuard(t *testing.T) {
	target := sharedTarget("mylib", "a.cpp")
	target.ExtraLibs.Add("boost_thread", "GL")

	block := libraryBlock(target)
	lines := strings.Split(block, "\n")
	assert.Equal(t, "if(TARGET OpenGL::GL AND TARGET Boost::thread)", lines[0])
	assert.Equal(t, "endif()", lines[len(lines)-1])
	assert.Contains(t, block, "  add_library(mylib SHARED a.cpp)")
}

func TestOutputNameProperty(t *testing.T) {
	target := sharedTarget("util_amod", "a.cpp")
	target.Filename = "util"

	block := libraryBlock(target)
	assert.Contains(t, block, "set_target_properties(util_amod PROPERTIES OUTPUT_NAME util)")
}

func TestFormatCommandWrapsLongLines(t *testing.T) {
	short := formatCommand("add_library", []string{"x", "a.cpp"})
	assert.Equal(t, "add_library(x a.cpp)", short)

	var many []string
	for i := 0; i < 12; i++ {
		many = append(many, "a_rather_long_source_filename.cpp")
	}
	wrapped := formatCommand("add_library", append([]string{"mylib", "SHARED"}, many...))
	lines := strings.Split(wrapped, "\n")
	assert.Equal(t, "add_library(", lines[0])
	assert.Equal(t, ")", lines[len(lines)-1])
	for _, line := range lines[1 : len(lines)-1] {
		assert.True(t, strings.HasPrefix(line, "    "), line)
		assert.LessOrEqual(t, len(line), maxLineWidth)
	}
}

func TestModuleRootBlockInlinesSelfTarget(t *testing.T) {
	m := distribution.NewModule("scitbx", "scitbx")
	self := sharedTarget("scitbx", "core.cpp")
	other := sharedTarget("scitbx_extras", "extras.cpp")
	m.AddTarget(self)
	m.AddTarget(other)

	node := NewRoot()
	modNode, err := node.GetPath("scitbx")
	require.NoError(t, err)
	modNode.IsModuleRoot = true
	modNode.Module = m
	modNode.Targets = []*distribution.Target{self, other}

	rendered := modNode.Render()
	assert.Contains(t, rendered, "# Module scitbx")

	// The self-named target lives inside the header block; each declaration
	// appears exactly once.
	assert.Equal(t, 1, strings.Count(rendered, "add_library(scitbx SHARED core.cpp)"))
	assert.Equal(t, 1, strings.Count(rendered, "add_library(scitbx_extras SHARED extras.cpp)"))
}

// Round-trip: with distinct names and an empty autogen, the emitted tree
// reflects exactly the recorded name/type/module triples.
func TestRenderRoundTrip(t *testing.T) {
	dist := distribution.New(".")
	amod := distribution.NewModule("amod", "amod")
	bmod := distribution.NewModule("bmod", "repo/bmod")
	require.NoError(t, dist.AddModule(amod))
	require.NoError(t, dist.AddModule(bmod))

	expected := map[string]string{}
	for _, spec := range []struct {
		m     *distribution.Module
		name  string
		ttype distribution.TargetType
	}{
		{amod, "liba", distribution.Shared},
		{amod, "toola", distribution.Program},
		{bmod, "libb", distribution.Static},
	} {
		target := distribution.NewTarget(spec.name, spec.ttype)
		if spec.ttype != distribution.Program {
			target.Prefix = "lib"
		}
		target.OriginPath = spec.m.Path
		target.Sources = []string{"src.cpp"}
		spec.m.AddTarget(target)
		expected[spec.name] = declarationForm(spec.ttype)
	}

	root, err := BuildTree(dist)
	require.NoError(t, err)

	var rendered strings.Builder
	for _, node := range root.All() {
		rendered.WriteString(node.Render())
	}

	found := map[string]string{}
	for name, form := range expected {
		if strings.Contains(rendered.String(), form+"("+name) {
			found[name] = form
		}
	}
	if diff := cmp.Diff(expected, found); diff != "" {
		t.Errorf("emitted declarations mismatch (-want +got):\n%s", diff)
	}
}
