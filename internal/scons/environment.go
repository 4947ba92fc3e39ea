package scons

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/tbxtools/tbx2cmake/internal/core"
	"github.com/tbxtools/tbx2cmake/internal/distribution"
)

// Environment is the stand-in for the object the scripts create with
// Environment(): a per-instance key/value store with merge semantics, plus
// the builder methods that declare the targets we are actually after.
type Environment struct {
	disp  *Dispatcher
	store map[string]starlark.Value
}

// defaultEnvEntry returns a fresh copy of the default table entry for key.
// Fresh, because most entries are mutable lists.
func defaultEnvEntry(key string) (starlark.Value, bool) {
	switch key {
	case "OBJSUFFIX":
		return starlark.String(".o"), true
	case "PROGPREFIX", "PROGSUFFIX":
		return starlark.String(""), true
	case "LIBPREFIX", "SHLIBPREFIX":
		return starlark.String("lib"), true
	case "SHLINKCOM":
		return starlark.NewList([]starlark.Value{starlark.String("SHLINKCOMDEFAULT")}), true
	case "LINKCOM":
		return starlark.NewList([]starlark.Value{starlark.String("LINKCOMDEFAULT")}), true
	case "SHLINKFLAGS", "CCFLAGS", "SHCCFLAGS", "CXXFLAGS", "SHCXXFLAGS":
		return starlark.NewList(nil), true
	case "BUILDERS":
		return starlark.NewDict(0), true
	}
	return nil, false
}

func newEnvironment(disp *Dispatcher, kwargs []starlark.Tuple) *Environment {
	env := &Environment{disp: disp, store: make(map[string]starlark.Value)}
	for _, kv := range kwargs {
		env.store[string(kv[0].(starlark.String))] = kv[1]
	}
	return env
}

var (
	_ starlark.HasAttrs  = (*Environment)(nil)
	_ starlark.Mapping   = (*Environment)(nil)
	_ starlark.HasSetKey = (*Environment)(nil)
)

func (e *Environment) String() string        { return "<environment>" }
func (e *Environment) Type() string          { return "environment" }
func (e *Environment) Freeze()               {}
func (e *Environment) Truth() starlark.Bool  { return starlark.True }
func (e *Environment) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: environment") }

// Get implements indexed reads. Explicit entries win; absent keys fall back
// to the default table.
func (e *Environment) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("environment key is %s, want string", k.Type())
	}
	if v, ok := e.store[key]; ok {
		return v, true, nil
	}
	if v, ok := defaultEnvEntry(key); ok {
		return v, true, nil
	}
	return nil, false, nil
}

// SetKey implements indexed writes; they always store directly.
func (e *Environment) SetKey(k, v starlark.Value) error {
	key, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("environment key is %s, want string", k.Type())
	}
	e.store[key] = v
	return nil
}

var environmentMethods = []string{
	"Append", "Clone", "Configure", "Copy", "Prepend", "Program", "Replace",
	"Repository", "SConscript", "SharedLibrary", "SharedObject",
	"StaticLibrary", "cudaSharedLibrary",
}

func (e *Environment) AttrNames() []string {
	names := make([]string, len(environmentMethods))
	copy(names, environmentMethods)
	sort.Strings(names)
	return names
}

func (e *Environment) Attr(name string) (starlark.Value, error) {
	switch name {
	case "Append":
		return methodOf(e, "Append", e.append), nil
	case "Prepend":
		return methodOf(e, "Prepend", e.prepend), nil
	case "Replace":
		return methodOf(e, "Replace", e.replace), nil
	case "Clone", "Copy": // Copy is the pre-rename spelling some scripts still use
		return methodOf(e, name, e.clone), nil
	case "Configure":
		return methodOf(e, "Configure", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return &configureContext{env: e}, nil
		}), nil
	case "Repository":
		return methodOf(e, "Repository", e.repository), nil
	case "SConscript":
		return methodOf(e, "SConscript", e.sconscript), nil
	case "SharedLibrary":
		return methodOf(e, "SharedLibrary", e.builder(distribution.Shared, "SHLIBPREFIX")), nil
	case "StaticLibrary":
		return methodOf(e, "StaticLibrary", e.builder(distribution.Static, "LIBPREFIX")), nil
	case "cudaSharedLibrary":
		return methodOf(e, "cudaSharedLibrary", e.builder(distribution.Shared, "SHLIBPREFIX")), nil
	case "Program":
		return methodOf(e, "Program", e.program), nil
	case "SharedObject":
		return methodOf(e, "SharedObject", e.sharedObject), nil
	}
	return nil, nil
}

// elementsOf flattens v one level: lists and tuples yield their members,
// anything else yields itself.
func elementsOf(v starlark.Value) []starlark.Value {
	switch seq := v.(type) {
	case *starlark.List:
		out := make([]starlark.Value, seq.Len())
		for i := 0; i < seq.Len(); i++ {
			out[i] = seq.Index(i)
		}
		return out
	case starlark.Tuple:
		return append([]starlark.Value(nil), seq...)
	}
	return []starlark.Value{v}
}

func (e *Environment) mutableList(key string) (*starlark.List, error) {
	entry, ok := e.store[key]
	if !ok {
		list := starlark.NewList(nil)
		e.store[key] = list
		return list, nil
	}
	list, ok := entry.(*starlark.List)
	if !ok {
		return nil, &UnknownAPIError{
			API:    "Environment.Append",
			Detail: fmt.Sprintf("key %s holds %s, cannot extend", key, entry.Type()),
		}
	}
	return list, nil
}

func (e *Environment) append(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("Append: unexpected positional arguments")
	}
	for _, kv := range kwargs {
		list, err := e.mutableList(string(kv[0].(starlark.String)))
		if err != nil {
			return nil, err
		}
		for _, elem := range elementsOf(kv[1]) {
			if err := list.Append(elem); err != nil {
				return nil, err
			}
		}
	}
	return starlark.None, nil
}

func (e *Environment) prepend(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("Prepend: unexpected positional arguments")
	}
	for _, kv := range kwargs {
		list, err := e.mutableList(string(kv[0].(starlark.String)))
		if err != nil {
			return nil, err
		}
		merged := append(elementsOf(kv[1]), elementsOf(list)...)
		if err := list.Clear(); err != nil {
			return nil, err
		}
		for _, elem := range merged {
			if err := list.Append(elem); err != nil {
				return nil, err
			}
		}
	}
	return starlark.None, nil
}

func (e *Environment) replace(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("Replace: unexpected positional arguments")
	}
	for _, kv := range kwargs {
		e.store[string(kv[0].(starlark.String))] = kv[1]
	}
	return starlark.None, nil
}

// clone copies the store (lists copied, not shared) and merges the call's
// keyword arguments over it. The clone has no live link to its parent.
func (e *Environment) clone(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("Clone: unexpected positional arguments")
	}
	child := &Environment{disp: e.disp, store: make(map[string]starlark.Value, len(e.store))}
	for key, val := range e.store {
		if list, ok := val.(*starlark.List); ok {
			child.store[key] = starlark.NewList(elementsOf(list))
			continue
		}
		child.store[key] = val
	}
	for _, kv := range kwargs {
		child.store[string(kv[0].(starlark.String))] = kv[1]
	}
	return child, nil
}

// repository accepts only the distribution-root sentinel; the converter has
// no story for any other repository registration.
func (e *Environment) repository(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var repo string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &repo); err != nil {
		return nil, err
	}
	if repo != DistPathSentinel {
		return nil, &UnknownAPIError{API: "Environment.Repository", Detail: fmt.Sprintf("path %q", repo)}
	}
	return starlark.None, nil
}

func (e *Environment) sconscript(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var exports starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "exports?", &exports); err != nil {
		return nil, err
	}
	return starlark.None, e.disp.runNested(thread, name, exports)
}

func (e *Environment) program(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target string
	var source starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "target", &target, "source", &source); err != nil {
		return nil, err
	}
	t, err := e.declareTarget(distribution.Program, "", target, source)
	if err != nil {
		return nil, err
	}
	// At least one script captures the return to locate the built binary.
	return starlark.NewList([]starlark.Value{&programReturn{path: t.Name}}), nil
}

func (e *Environment) sharedObject(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var source starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "source", &source); err != nil {
		return nil, err
	}
	sources, _, err := normalizeSources(source)
	if err != nil {
		return nil, err
	}
	return &sharedObject{sources: sources}, nil
}

func (e *Environment) builder(ttype distribution.TargetType, prefixKey string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var target string
		var source starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "target", &target, "source", &source); err != nil {
			return nil, err
		}
		prefix := "lib"
		if v, ok, _ := e.Get(starlark.String(prefixKey)); ok {
			if s, ok := starlark.AsString(v); ok {
				prefix = s
			}
		}
		if _, err := e.declareTarget(ttype, prefix, target, source); err != nil {
			return nil, err
		}
		return &opaque{name: b.Name()}, nil
	}
}

// declareTarget synthesizes a Target from a builder call and attaches it to
// the module whose script is executing.
func (e *Environment) declareTarget(ttype distribution.TargetType, prefix, rawName string, source starlark.Value) (*distribution.Target, error) {
	module := e.disp.currentModule
	if module == nil {
		return nil, fmt.Errorf("target %q declared outside any module script", rawName)
	}

	name, outputPath := splitTargetName(rawName)
	t := distribution.NewTarget(name, ttype)
	t.Prefix = prefix
	t.OutputPath = outputPath
	t.OriginPath = e.disp.currentScriptDir()

	sources, shared, err := normalizeSources(source)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", name, err)
	}
	t.Sources = sources
	t.SharedSources = shared

	if libs, ok := e.store["LIBS"]; ok {
		for _, lib := range elementsOf(libs) {
			if s, ok := starlark.AsString(lib); ok {
				t.ExtraLibs.Add(s)
			}
		}
	}
	t.BoostPython = isBoostPython(t)

	module.AddTarget(t)
	e.disp.log.Debug("declared target",
		core.ZapString("name", t.Name),
		core.ZapString("type", string(t.Type)),
		core.ZapString("origin", t.OriginPath),
		core.ZapStrings("sources", t.Sources))
	return t, nil
}

// splitTargetName separates a build-root-relative target name like
// "#lib/scitbx_boost_python" into its output directory and bare name.
func splitTargetName(raw string) (name, outputPath string) {
	trimmed := strings.TrimLeft(raw, "#/")
	dir, base := path.Split(trimmed)
	if dir == "" {
		return trimmed, distribution.DefaultOutputPath
	}
	return base, "#/" + strings.TrimSuffix(dir, "/")
}

// normalizeSources flattens the three source shapes the scripts use (a
// string, a list of strings, a list containing SharedObject sentinels) into
// plain source paths plus shared-object groups.
func normalizeSources(source starlark.Value) (sources []string, shared [][]string, err error) {
	var walk func(v starlark.Value) error
	walk = func(v starlark.Value) error {
		switch val := v.(type) {
		case starlark.String:
			sources = append(sources, string(val))
		case *sharedObject:
			shared = append(shared, append([]string(nil), val.sources...))
		case *fakePath:
			sources = append(sources, val.abs())
		case *starlark.List:
			for i := 0; i < val.Len(); i++ {
				if err := walk(val.Index(i)); err != nil {
					return err
				}
			}
		case starlark.Tuple:
			for _, elem := range val {
				if err := walk(elem); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unsupported source value %s (%s)", v.String(), v.Type())
		}
		return nil
	}
	if err := walk(source); err != nil {
		return nil, nil, err
	}
	return sources, shared, nil
}

func isBoostPython(t *distribution.Target) bool {
	if t.ExtraLibs.Has("boost_python") {
		return true
	}
	for _, src := range t.Sources {
		if strings.Contains(src, "boost_python") {
			return true
		}
	}
	return false
}
