// Package scons emulates enough of the legacy SCons-based build generator to
// run a distribution's build scripts and record every target they declare.
//
// The emulator never tries to reproduce the legacy runtime's real build
// semantics (compiler probing, platform detection); it satisfies the scripts'
// queries with plausible canned values so their control flow reaches the
// target-declaration calls, and it aborts loudly on any query it does not
// recognise.
package scons

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.starlark.net/starlark"

	"github.com/tbxtools/tbx2cmake/internal/core"
	"github.com/tbxtools/tbx2cmake/internal/distribution"
	"github.com/tbxtools/tbx2cmake/internal/sandbox"
)

// Dispatcher drives the sandbox over each module's build script, threads
// Export/Import state between scripts and resolves nested SConscript calls.
//
// The global export table and the currently-executing-script stack are the
// only shared mutable state in the pipeline; both are confined here and only
// ever touched from the single executing script frame.
type Dispatcher struct {
	dist    *distribution.Distribution
	log     *core.Logger
	options struct {
		build        *BuildOptions
		boostVersion int
	}

	exports       map[string]starlark.Value
	scriptStack   []string // absolute paths of scripts currently executing
	currentModule *distribution.Module

	libtbx   starlark.Value
	fftw3tbx starlark.Value
	scns     starlark.Value
}

// NewDispatcher prepares a dispatcher over dist. A nil opts uses the
// canonical build-options table.
func NewDispatcher(dist *distribution.Distribution, opts *BuildOptions, log *core.Logger) *Dispatcher {
	if opts == nil {
		opts = DefaultBuildOptions()
	}
	d := &Dispatcher{
		dist:    dist,
		log:     log.WithComponent("scons"),
		exports: make(map[string]starlark.Value),
	}
	d.options.build = opts
	d.options.boostVersion = 106500
	// One stub tree per run: the legacy runtime's module state is
	// process-wide, so every script must observe the same objects.
	d.libtbx = libtbxModule(d)
	d.fftw3tbx = fftw3tbxModule()
	d.scns = sconsModule()
	return d
}

// Run executes the build script of every module in order. Modules without a
// script are skipped.
func (d *Dispatcher) Run(order []*distribution.Module) error {
	for _, m := range order {
		if err := d.RunModule(m); err != nil {
			return err
		}
	}
	return nil
}

// RunModule executes one module's top-level script, if it has one.
func (d *Dispatcher) RunModule(m *distribution.Module) error {
	script := m.SConscriptPath(d.dist.ModulePath)
	if _, err := os.Stat(script); err != nil {
		d.log.Debug("no SConscript for module", core.ZapString("module", m.Name))
		return nil
	}
	d.log.Debug("parsing module", core.ZapString("module", m.Name))

	d.currentModule = m
	defer func() { d.currentModule = nil }()
	if err := d.runScript(script, nil); err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	return nil
}

// runNested handles a SConscript(name, exports=...) call: the target script
// is resolved against the directory of the script currently executing, and
// the per-call exports mapping shadows the global table for Imports made
// during the nested execution.
func (d *Dispatcher) runNested(_ *starlark.Thread, name string, exports starlark.Value) error {
	current := d.currentScript()
	if current == "" {
		return fmt.Errorf("SConscript(%q) called outside any script", name)
	}
	nested := filepath.Join(filepath.Dir(current), filepath.FromSlash(name))

	custom, err := exportsMapping(exports)
	if err != nil {
		return fmt.Errorf("SConscript(%q): %w", name, err)
	}

	d.log.Debug("loading sub-sconscript", core.ZapString("path", nested))
	if err := d.runScript(nested, custom); err != nil {
		return err
	}
	d.log.Debug("returning to sconscript", core.ZapString("path", current))
	return nil
}

// runScript executes a single script file. The current-script pointer is
// restored on every exit path, including error unwinding; this is the one
// resource-safety-critical discipline in the pipeline.
func (d *Dispatcher) runScript(path string, custom map[string]starlark.Value) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	d.scriptStack = append(d.scriptStack, abs)
	defer func() { d.scriptStack = d.scriptStack[:len(d.scriptStack)-1] }()

	thread := &starlark.Thread{
		Name: abs,
		Print: func(_ *starlark.Thread, msg string) {
			d.log.Debug("script output", core.ZapString("script", filepath.Base(abs)), core.ZapString("msg", msg))
		},
	}
	_, err = sandbox.ExecFile(thread, abs, d.predeclared(abs, custom))
	return err
}

func (d *Dispatcher) currentScript() string {
	if len(d.scriptStack) == 0 {
		return ""
	}
	return d.scriptStack[len(d.scriptStack)-1]
}

// currentScriptDir returns the directory of the executing script relative to
// the distribution root, in slash form.
func (d *Dispatcher) currentScriptDir() string {
	current := d.currentScript()
	if current == "" {
		return ""
	}
	root, err := filepath.Abs(d.dist.ModulePath)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(root, filepath.Dir(current))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// predeclared builds the name table injected into a script before execution.
func (d *Dispatcher) predeclared(scriptPath string, custom map[string]starlark.Value) starlark.StringDict {
	scriptDir := filepath.Dir(scriptPath)

	environment := starlark.NewBuiltin("Environment", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("Environment: unexpected positional arguments")
		}
		return newEnvironment(d, kwargs), nil
	})

	builder := starlark.NewBuiltin("Builder", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		b := &sconsBuilder{}
		for _, kv := range kwargs {
			if string(kv[0].(starlark.String)) == "action" {
				b.action = kv[1]
			}
		}
		return b, nil
	})

	export := starlark.NewBuiltin("Export", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("Export: pass name=value keywords (the host cannot read script globals by name)")
		}
		for _, kv := range kwargs {
			name := string(kv[0].(starlark.String))
			d.exports[name] = kv[1]
			d.log.Debug("exported", core.ZapString("name", name))
		}
		return starlark.None, nil
	})

	importFn := starlark.NewBuiltin("Import", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 || len(args) == 0 {
			return nil, fmt.Errorf("Import: pass one or more names")
		}
		values := make([]starlark.Value, 0, len(args))
		for _, arg := range args {
			name, ok := starlark.AsString(arg)
			if !ok {
				return nil, fmt.Errorf("Import: name is %s, want string", arg.Type())
			}
			value, ok := custom[name]
			if !ok {
				value, ok = d.exports[name]
			}
			if !ok {
				return nil, fmt.Errorf("Import: %q has not been exported", name)
			}
			values = append(values, value)
		}
		if len(values) == 1 {
			return values[0], nil
		}
		return starlark.Tuple(values), nil
	})

	sconscript := starlark.NewBuiltin("SConscript", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var exports starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "exports?", &exports); err != nil {
			return nil, err
		}
		return starlark.None, d.runNested(thread, name, exports)
	})

	glob := starlark.NewBuiltin("Glob", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var pattern string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &pattern); err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(filepath.Join(scriptDir, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, fmt.Errorf("Glob(%q): %w", pattern, err)
		}
		sort.Strings(matches)
		elems := make([]starlark.Value, 0, len(matches))
		for _, match := range matches {
			rel, err := filepath.Rel(scriptDir, match)
			if err != nil {
				return nil, err
			}
			elems = append(elems, starlark.String(filepath.ToSlash(rel)))
		}
		return starlark.NewList(elems), nil
	})

	open := starlark.NewBuiltin("open", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var file, mode string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &file, &mode); err != nil {
			return nil, err
		}
		return &fakeFile{name: file}, nil
	})

	return starlark.StringDict{
		"Environment": environment,
		"Builder":     builder,
		"ARGUMENTS":   starlark.NewDict(0),
		"Export":      export,
		"Import":      importFn,
		"SConscript":  sconscript,
		"Glob":        glob,
		"open":        open,
		"libtbx":      d.libtbx,
		"fftw3tbx":    d.fftw3tbx,
		"SCons":       d.scns,
	}
}

// exportsMapping normalizes a SConscript exports argument (None or a dict of
// name -> value) into a lookup map.
func exportsMapping(exports starlark.Value) (map[string]starlark.Value, error) {
	if exports == nil || exports == starlark.None {
		return nil, nil
	}
	dict, ok := exports.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("exports is %s, want dict", exports.Type())
	}
	custom := make(map[string]starlark.Value, dict.Len())
	for _, item := range dict.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("exports key is %s, want string", item[0].Type())
		}
		custom[name] = item[1]
	}
	return custom, nil
}

// sconsBuilder is the inert record the Builder factory returns; scripts only
// construct these and occasionally register source builders on them.
type sconsBuilder struct {
	action   starlark.Value
	builders []starlark.Value
}

var _ starlark.HasAttrs = (*sconsBuilder)(nil)

func (s *sconsBuilder) String() string        { return "<builder>" }
func (s *sconsBuilder) Type() string          { return "builder" }
func (s *sconsBuilder) Freeze()               {}
func (s *sconsBuilder) Truth() starlark.Bool  { return starlark.True }
func (s *sconsBuilder) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: builder") }

func (s *sconsBuilder) Attr(name string) (starlark.Value, error) {
	if name == "add_src_builder" {
		return methodOf(s, "add_src_builder", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			s.builders = append(s.builders, args...)
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

func (s *sconsBuilder) AttrNames() []string { return []string{"add_src_builder"} }
