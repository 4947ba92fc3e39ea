package cmake

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tbxtools/tbx2cmake/internal/distribution"
)

// dependencyRenames maps the legacy link-dependency names onto the imported
// targets the emitted build defines for them.
var dependencyRenames = map[string]string{
	"boost_python": "Boost::python",
	"boost_thread": "Boost::thread",
	"tiff":         "TIFF::TIFF",
	"GL":           "OpenGL::GL",
	"GLU":          "OpenGL::GLU",
	"hdf5_c":       "HDF5::C",
	"boost":        "Boost::boost",
	"eigen":        "Eigen::Eigen",
}

// optionalDependencies may be absent from the host system; any block linking
// one is guarded by a target-existence conditional.
var optionalDependencies = distribution.NewStringSet("boost_thread", "GL", "GLU")

const maxLineWidth = 78

// Render composes the node's build file: the module-root header block (if
// any), one block per target not absorbed into the header, then the
// subdirectory listing.
func (n *Node) Render() string {
	var blocks []string

	var selfTarget *distribution.Target
	if n.IsModuleRoot && n.Module != nil {
		for _, t := range n.Targets {
			if t.Name == n.Module.Name {
				selfTarget = t
				break
			}
		}
		blocks = append(blocks, moduleRootBlock(n.Module, selfTarget))
	}

	for _, t := range n.Targets {
		if t == selfTarget {
			continue
		}
		blocks = append(blocks, libraryBlock(t))
	}

	if len(n.Subdirectories) > 0 {
		blocks = append(blocks, n.subdirBlock())
	}

	content := strings.Join(blocks, "\n\n")
	if content != "" {
		content += "\n"
	}
	return content
}

func (n *Node) subdirBlock() string {
	var lines []string
	for _, name := range n.childNames() {
		lines = append(lines, fmt.Sprintf("add_subdirectory(%s)", name))
	}
	return strings.Join(lines, "\n")
}

// moduleRootBlock heads a module's root directory file. The module's own
// target (the one sharing its name) is emitted inside it.
func moduleRootBlock(m *distribution.Module, selfTarget *distribution.Target) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("# Module %s", m.Name))

	if m.IncludePaths.Len() > 0 {
		var entries []string
		for _, entry := range m.IncludePaths.Sorted() {
			entries = append(entries, resolveIncludeEntry(strings.TrimPrefix(entry, "!")))
		}
		parts = append(parts, formatCommand("include_directories", entries))
	}

	if selfTarget != nil {
		parts = append(parts, libraryBlock(selfTarget))
	}
	return strings.Join(parts, "\n\n")
}

// libraryBlock renders one target: the add declaration, include paths split
// public/private, the link set (renamed, with the Python dependency dropped
// from extension modules) and an optional existence guard.
func libraryBlock(t *distribution.Target) string {
	var lines []string
	lines = append(lines, formatCommand(declarationForm(t.Type), declarationArgs(t)))

	if t.Filename != t.Name {
		lines = append(lines, formatCommand("set_target_properties",
			[]string{t.Name, "PROPERTIES", "OUTPUT_NAME", t.Filename}))
	}

	if t.IncludePaths.Len() > 0 {
		lines = append(lines, formatCommand("target_include_directories", includeArgs(t)))
	}

	if deps := linkDependencies(t); len(deps) > 0 {
		lines = append(lines, formatCommand("target_link_libraries", append([]string{t.Name}, deps...)))
	}

	block := strings.Join(lines, "\n")
	if guards := optionalGuards(t); len(guards) > 0 {
		return wrapConditional(guards, block)
	}
	return block
}

func declarationForm(ttype distribution.TargetType) string {
	switch ttype {
	case distribution.Program:
		return "add_executable"
	case distribution.ModuleType:
		return "add_python_library"
	}
	return "add_library"
}

func declarationArgs(t *distribution.Target) []string {
	args := []string{t.Name}
	switch t.Type {
	case distribution.Shared:
		args = append(args, "SHARED")
	case distribution.Static:
		args = append(args, "STATIC")
	}
	args = append(args, t.Sources...)
	for _, gen := range sortedCopy(t.GeneratedSources) {
		args = append(args, "${CMAKE_BINARY_DIR}/"+gen)
	}
	return args
}

func includeArgs(t *distribution.Target) []string {
	var public, private []string
	for _, entry := range t.IncludePaths.Sorted() {
		if strings.HasPrefix(entry, "!") {
			private = append(private, resolveIncludeEntry(entry[1:]))
			continue
		}
		public = append(public, resolveIncludeEntry(entry))
	}
	args := []string{t.Name}
	if len(public) > 0 {
		args = append(args, "PUBLIC")
		args = append(args, public...)
	}
	if len(private) > 0 {
		args = append(args, "PRIVATE")
		args = append(args, private...)
	}
	return args
}

// resolveIncludeEntry rewrites the '#base'/'#build' anchors onto the CMake
// directory variables.
func resolveIncludeEntry(entry string) string {
	switch {
	case entry == "#base":
		return "${CMAKE_SOURCE_DIR}"
	case entry == "#build":
		return "${CMAKE_BINARY_DIR}"
	case strings.HasPrefix(entry, "#base/"):
		return "${CMAKE_SOURCE_DIR}/" + strings.TrimPrefix(entry, "#base/")
	case strings.HasPrefix(entry, "#build/"):
		return "${CMAKE_BINARY_DIR}/" + strings.TrimPrefix(entry, "#build/")
	}
	return entry
}

func linkDependencies(t *distribution.Target) []string {
	var deps []string
	for _, dep := range t.ExtraLibs.Sorted() {
		// Extension modules get their Python linkage from the
		// add_python_library form.
		if t.Type == distribution.ModuleType && dep == "boost_python" {
			continue
		}
		if renamed, ok := dependencyRenames[dep]; ok {
			dep = renamed
		}
		deps = append(deps, dep)
	}
	return deps
}

func optionalGuards(t *distribution.Target) []string {
	var guards []string
	for _, dep := range t.ExtraLibs.Sorted() {
		if !optionalDependencies.Has(dep) {
			continue
		}
		renamed := dep
		if r, ok := dependencyRenames[dep]; ok {
			renamed = r
		}
		guards = append(guards, "TARGET "+renamed)
	}
	return guards
}

func wrapConditional(guards []string, block string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "if(%s)\n", strings.Join(guards, " AND "))
	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("  " + line + "\n")
	}
	sb.WriteString("endif()")
	return sb.String()
}

// formatCommand renders name(arg arg ...), breaking into continuation lines
// indented four spaces, closing bracket on its own line, when the single-line
// form would exceed the width limit.
func formatCommand(name string, args []string) string {
	single := fmt.Sprintf("%s(%s)", name, strings.Join(args, " "))
	if len(single) <= maxLineWidth {
		return single
	}
	var sb strings.Builder
	sb.WriteString(name + "(")
	for _, arg := range args {
		sb.WriteString("\n    " + arg)
	}
	sb.WriteString("\n)")
	return sb.String()
}

func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
