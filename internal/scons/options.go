package scons

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// BuildOptions is the fixed flag table the build_options stub exposes to the
// scripts. The values are not probed; they are whatever makes the scripts
// take the code paths that declare the most targets.
type BuildOptions struct {
	values map[string]starlark.Value
}

// DefaultBuildOptions returns the canonical table.
func DefaultBuildOptions() *BuildOptions {
	return &BuildOptions{values: map[string]starlark.Value{
		"build_boost_python_extensions": starlark.Bool(true),
		"scan_boost":                    starlark.Bool(false),
		"compiler":                      starlark.String("default"),
		"static_exe":                    starlark.Bool(false),
		"debug_symbols":                 starlark.Bool(true),
		"force_32bit":                   starlark.Bool(false),
		"warning_level":                 starlark.MakeInt(0),
		"optimization":                  starlark.Bool(false),
		"use_environment_flags":         starlark.Bool(false),
		"enable_cxx11":                  starlark.Bool(false),
		"enable_openmp_if_possible":     starlark.Bool(true),
		"enable_cuda":                   starlark.Bool(true),
		"enable_boost_threads":          starlark.Bool(true),
		"boost_python_no_py_signatures": starlark.Bool(false),
		"precompile_headers":            starlark.Bool(false),
		// Undocumented in boost::python and whether anything depends on it is
		// long lost, but it is still tested for as a define.
		"boost_python_bool_int_strict": starlark.Bool(true),
		// Only ever compared against "profile"; "invalid" takes the
		// non-profile path everywhere.
		"mode":             starlark.String("invalid"),
		"static_libraries": starlark.Bool(false),
	}}
}

// Override replaces table entries from a flag-name -> value mapping, as
// loaded from the --build-options file. Unknown keys and type mismatches are
// rejected.
func (o *BuildOptions) Override(overrides map[string]interface{}) error {
	for key, raw := range overrides {
		current, ok := o.values[key]
		if !ok {
			return fmt.Errorf("unknown build option %q", key)
		}
		var value starlark.Value
		switch v := raw.(type) {
		case bool:
			value = starlark.Bool(v)
		case int:
			value = starlark.MakeInt(v)
		case string:
			value = starlark.String(v)
		default:
			return fmt.Errorf("build option %q: unsupported value %v", key, raw)
		}
		if value.Type() != current.Type() {
			return fmt.Errorf("build option %q: got %s, want %s", key, value.Type(), current.Type())
		}
		o.values[key] = value
	}
	return nil
}

// buildOptionsValue exposes the table to the scripts as attribute reads on
// libtbx.env.build_options.
type buildOptionsValue struct {
	opts *BuildOptions
}

var _ starlark.HasAttrs = (*buildOptionsValue)(nil)

func (b *buildOptionsValue) String() string        { return "<build_options>" }
func (b *buildOptionsValue) Type() string          { return "build_options" }
func (b *buildOptionsValue) Freeze()               {}
func (b *buildOptionsValue) Truth() starlark.Bool  { return starlark.True }
func (b *buildOptionsValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: build_options") }

func (b *buildOptionsValue) Attr(name string) (starlark.Value, error) {
	if v, ok := b.opts.values[name]; ok {
		return v, nil
	}
	return nil, nil // triggers "no attribute" error in the interpreter
}

func (b *buildOptionsValue) AttrNames() []string {
	names := make([]string, 0, len(b.opts.values))
	for name := range b.opts.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
