package distribution

// TargetType classifies a build output.
type TargetType string

const (
	Shared     TargetType = "SHARED"
	Static     TargetType = "STATIC"
	ModuleType TargetType = "MODULE" // loadable Python extension
	Program    TargetType = "PROGRAM"
)

// DefaultOutputPath is where library outputs land unless the declaring script
// asked for somewhere else.
const DefaultOutputPath = "#/lib"

// Target is a single build output declared by an environment-method call
// during script execution.
type Target struct {
	Name     string
	Filename string // defaults to Name
	Prefix   string // "lib" for library variants, "" for loadable extensions
	Type     TargetType

	// Module owns this target. Cleared (nil) when the target is removed from
	// the distribution's collection.
	Module *Module

	// OriginPath is the directory of the declaring script, relative to the
	// distribution root.
	OriginPath string

	// Sources are ordered source paths, relative to OriginPath or prefixed
	// with the '#' repository-lookup sigil.
	Sources []string

	// GeneratedSources are paths relative to the build root, produced by a
	// module refresh step rather than present in the source tree.
	GeneratedSources []string

	// SharedSources are intermediate object groups built once and linked into
	// multiple targets. Post-processing collapses all of them; none survive.
	SharedSources [][]string

	ExtraLibs    StringSet // link dependencies, by name
	IncludePaths StringSet // entries prefixed '!' are private

	// BoostPython marks targets whose sources or link set indicate a Python
	// extension module.
	BoostPython bool

	OutputPath string
}

// NewTarget returns a target with name-derived defaults filled in.
func NewTarget(name string, ttype TargetType) *Target {
	return &Target{
		Name:         name,
		Filename:     name,
		Type:         ttype,
		ExtraLibs:    NewStringSet(),
		IncludePaths: NewStringSet(),
		OutputPath:   DefaultOutputPath,
	}
}
