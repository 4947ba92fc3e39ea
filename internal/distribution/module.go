package distribution

import (
	"fmt"
	"os"
	"path/filepath"
)

// Module is a named unit discovered on disk at a path relative to the
// distribution root. It owns the targets its build script declares.
type Module struct {
	Name string
	Path string // relative to the distribution root

	// Required names the modules this one must be built after. Populated from
	// the libtbx_config manifest; aliases are already rewritten.
	Required StringSet

	// RequiredForUse is informational only and never contributes DAG edges.
	RequiredForUse StringSet

	Targets []*Target

	// GeneratedSources lists build-root-relative files produced by this
	// module's refresh step (from the autogen manifest).
	GeneratedSources []string

	IncludePaths StringSet
}

func NewModule(name, path string) *Module {
	return &Module{
		Name:           name,
		Path:           path,
		Required:       NewStringSet(),
		RequiredForUse: NewStringSet(),
		IncludePaths:   NewStringSet(),
	}
}

func (m *Module) String() string {
	return fmt.Sprintf("Module(name=%q, path=%q)", m.Name, m.Path)
}

// AddTarget appends t to the module's target list and takes ownership.
func (m *Module) AddTarget(t *Target) {
	t.Module = m
	m.Targets = append(m.Targets, t)
}

// SConscriptPath returns the absolute path of the module's build script under
// root, whether or not it exists.
func (m *Module) SConscriptPath(root string) string {
	return filepath.Join(root, m.Path, "SConscript")
}

// HasSConscript reports whether the module carries a build-generation script
// and therefore participates in the build.
func (m *Module) HasSConscript(root string) bool {
	return isFile(m.SConscriptPath(root))
}

// HasConfig reports whether the module carries a dependency manifest.
func (m *Module) HasConfig(root string) bool {
	return isFile(filepath.Join(root, m.Path, "libtbx_config"))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
