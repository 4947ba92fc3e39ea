package scons

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

// Placeholder roots substituted for the legacy runtime's real directories.
// The emitter and post-processor treat them as opaque markers.
const (
	UnderBuildRoot   = "UNDERBUILD"
	BaseDirRoot      = "BASEDIR"
	DistPathSentinel = "DISTPATH"
	RepositoriesRoot = "REPOSITORIES"
)

// failStub returns a builtin that aborts when called: the scripts were never
// observed to exercise these entry points, so reaching one means the
// emulation surface needs extending.
func failStub(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return nil, &UnknownAPIError{API: name, Detail: fmt.Sprintf("called with %v %v", args, kwargs)}
	})
}

// noopStub returns a builtin that accepts anything and returns None.
func noopStub(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.None, nil
	})
}

// tbxEnv is the env-root object (libtbx.env): path construction against the
// placeholder roots plus a handful of queries the scripts make.
type tbxEnv struct {
	disp *Dispatcher
}

var _ starlark.HasAttrs = (*tbxEnv)(nil)

func (t *tbxEnv) String() string        { return "<libtbx.env>" }
func (t *tbxEnv) Type() string          { return "libtbx_env" }
func (t *tbxEnv) Freeze()               {}
func (t *tbxEnv) Truth() starlark.Bool  { return starlark.True }
func (t *tbxEnv) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: libtbx_env") }

func (t *tbxEnv) AttrNames() []string {
	return []string{
		"boost_version", "build_options", "build_path", "dist_path",
		"find_in_repositories", "has_module", "lib_path", "under_base",
		"under_build", "under_dist", "write_dispatcher_in_bin",
	}
}

func (t *tbxEnv) Attr(name string) (starlark.Value, error) {
	pathFn := func(fn func(p string) string) *starlark.Builtin {
		return methodOf(t, name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var p string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 1, &p); err != nil {
				return nil, err
			}
			return starlark.String(fn(p)), nil
		})
	}

	switch name {
	case "boost_version":
		return starlark.MakeInt(t.disp.options.boostVersion), nil
	case "build_options":
		return &buildOptionsValue{opts: t.disp.options.build}, nil
	case "build_path":
		return starlark.String(UnderBuildRoot), nil
	case "lib_path":
		return &fakePath{kind: "UnderBuild", root: UnderBuildRoot, path: "lib"}, nil
	case "under_build":
		return pathFn(func(p string) string { return path.Join(UnderBuildRoot, p) }), nil
	case "under_base":
		return pathFn(func(p string) string { return path.Join(BaseDirRoot, p) }), nil
	case "dist_path":
		return pathFn(func(p string) string { return path.Join(DistPathSentinel, p) }), nil
	case "find_in_repositories":
		return methodOf(t, name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var rel string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 1, &rel); err != nil {
				return nil, err
			}
			return starlark.String(path.Join(RepositoriesRoot, rel)), nil
		}), nil
	case "under_dist":
		return methodOf(t, name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var module, p string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 2, &module, &p); err != nil {
				return nil, err
			}
			return starlark.String(path.Join(fmt.Sprintf("%s[%s]", DistPathSentinel, module), p)), nil
		}), nil
	case "has_module":
		return methodOf(t, name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.True, nil
		}), nil
	case "write_dispatcher_in_bin":
		return methodOf(t, name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var source, target string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 2, &source, &target); err != nil {
				return nil, err
			}
			t.disp.log.Debug("script asked for a bin dispatcher",
				core.ZapString("source", source), core.ZapString("target", target))
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

// includeRegistry mimics libtbx.env_config.include_registry: a list-flavoured
// object whose append/prepend forward into an environment's CPPPATH. The
// boost-scanning knobs are idempotent no-ops because boost is built
// externally by the emitted build.
type includeRegistry struct{}

var _ starlark.HasAttrs = (*includeRegistry)(nil)

func (r *includeRegistry) String() string       { return "<include_registry>" }
func (r *includeRegistry) Type() string         { return "include_registry" }
func (r *includeRegistry) Freeze()              {}
func (r *includeRegistry) Truth() starlark.Bool { return starlark.True }
func (r *includeRegistry) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: include_registry")
}

func (r *includeRegistry) AttrNames() []string {
	return []string{"append", "prepend", "scan_boost", "set_boost_dir_name"}
}

func (r *includeRegistry) Attr(name string) (starlark.Value, error) {
	self := func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return r, nil
	}
	forward := func(prepend bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var envVal starlark.Value
			var paths starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &envVal, &paths); err != nil {
				return nil, err
			}
			env, ok := envVal.(*Environment)
			if !ok {
				return nil, fmt.Errorf("%s: first argument is %s, want environment", b.Name(), envVal.Type())
			}
			kw := []starlark.Tuple{{starlark.String("CPPPATH"), paths}}
			if prepend {
				return env.prepend(thread, b, nil, kw)
			}
			return env.append(thread, b, nil, kw)
		}
	}
	switch name {
	case "append":
		return methodOf(r, "append", forward(false)), nil
	case "prepend":
		return methodOf(r, "prepend", forward(true)), nil
	case "scan_boost", "set_boost_dir_name":
		return methodOf(r, name, self), nil
	}
	return nil, nil
}

// easyRunWhitelist holds the only commands the easy_run stub answers; the
// canned outputs are what the probes expect to parse.
var easyRunWhitelist = map[string][]string{
	"/usr/bin/uname -p":                {"i386"},
	"/usr/bin/sw_vers -productVersion": {"10.12.0"},
	"nvcc --version":                   {"Cuda compilation tools, release 8.0, V8.0.61"},
}

func easyRunModule() *starlarkstruct.Module {
	fullyBuffered := starlark.NewBuiltin("fully_buffered", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("fully_buffered: missing command")
		}
		command, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("fully_buffered: command is %s, want string", args[0].Type())
		}
		output, ok := easyRunWhitelist[command]
		if !ok {
			return nil, &UnknownCommandError{Command: command}
		}
		return &easyRunResult{stdout: output}, nil
	})
	return &starlarkstruct.Module{
		Name:    "easy_run",
		Members: starlark.StringDict{"fully_buffered": fullyBuffered},
	}
}

func envConfigModule() *starlarkstruct.Module {
	includeRegistryCtor := starlark.NewBuiltin("include_registry", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return &includeRegistry{}, nil
	})

	uniquePaths := starlark.NewBuiltin("unique_paths", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var paths starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &paths); err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		var out []starlark.Value
		for _, elem := range elementsOf(paths) {
			key := elem.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, elem)
		}
		return starlark.NewList(out), nil
	})

	// The precise contract of darwin_shlinkcom is unknown; it short-circuits
	// on the three boost convenience libraries and aborts on anything else.
	darwinShlinkcom := starlark.NewBuiltin("darwin_shlinkcom", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 4 {
			return nil, &UnknownAPIError{API: "darwin_shlinkcom", Detail: fmt.Sprintf("%d arguments", len(args))}
		}
		lo := args[2].String()
		for _, known := range []string{"libboost_thread.lo", "libboost_python.lo", "libboost_system.lo"} {
			if strings.Contains(lo, known) {
				return starlark.None, nil
			}
		}
		return nil, &UnknownAPIError{API: "darwin_shlinkcom", Detail: lo}
	})

	isSixtyFourBit := starlark.NewBuiltin("is_64bit_architecture", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.True, nil
	})

	pythonIncludePath := starlark.NewBuiltin("python_include_path", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.String("PYTHON/INCLUDE/PATH"), nil
	})

	return &starlarkstruct.Module{
		Name: "env_config",
		Members: starlark.StringDict{
			"include_registry":      includeRegistryCtor,
			"is_64bit_architecture": isSixtyFourBit,
			"python_include_path":   pythonIncludePath,
			"unique_paths":          uniquePaths,
			"darwin_shlinkcom":      darwinShlinkcom,
		},
	}
}

func utilsModule() *starlarkstruct.Module {
	// Too fiddly to shortcut the callers' matching logic; replicate it.
	selectMatching := starlark.NewBuiltin("select_matching", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key string
		var choices starlark.Value
		deflt := starlark.Value(starlark.None)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "choices", &choices, "default?", &deflt); err != nil {
			return nil, err
		}
		for _, pair := range elementsOf(choices) {
			elems := elementsOf(pair)
			if len(elems) != 2 {
				return nil, fmt.Errorf("select_matching: choice %s is not a pair", pair.String())
			}
			pattern, ok := starlark.AsString(elems[0])
			if !ok {
				return nil, fmt.Errorf("select_matching: pattern is %s, want string", elems[0].Type())
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("select_matching: pattern %q: %w", pattern, err)
			}
			if re.MatchString(key) {
				return elems[1], nil
			}
		}
		return deflt, nil
	})

	return &starlarkstruct.Module{
		Name: "utils",
		Members: starlark.StringDict{
			"getenv_bool":                      failStub("libtbx.utils.getenv_bool"),
			"select_matching":                  selectMatching,
			"warn_if_unexpected_md5_hexdigest": noopStub("warn_if_unexpected_md5_hexdigest"),
			"write_this_is_auto_generated":     noopStub("write_this_is_auto_generated"),
		},
	}
}

func pathModule() *starlarkstruct.Module {
	normJoin := starlark.NewBuiltin("norm_join", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var a, p string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &a, &p); err != nil {
			return nil, err
		}
		return starlark.String(path.Clean(path.Join(a, p))), nil
	})
	return &starlarkstruct.Module{
		Name: "path",
		Members: starlark.StringDict{
			"norm_join":         normJoin,
			"full_command_path": failStub("libtbx.path.full_command_path"),
		},
	}
}

// libtbxModule assembles the whole libtbx stand-in tree. One instance is
// shared by every script of a run, matching the legacy runtime's
// process-wide module state.
func libtbxModule(disp *Dispatcher) *starlarkstruct.Module {
	groupArgs := starlark.NewBuiltin("group_args", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return starlarkstruct.FromKeywords(starlarkstruct.Default, kwargs), nil
	})

	strUtils := &starlarkstruct.Module{
		Name:    "str_utils",
		Members: starlark.StringDict{"show_string": failStub("libtbx.str_utils.show_string")},
	}

	loadEnv := &starlarkstruct.Module{Name: "load_env", Members: starlark.StringDict{}}

	return &starlarkstruct.Module{
		Name: "libtbx",
		Members: starlark.StringDict{
			"env":               &tbxEnv{disp: disp},
			"easy_run":          easyRunModule(),
			"env_config":        envConfigModule(),
			"utils":             utilsModule(),
			"str_utils":         strUtils,
			"path":              pathModule(),
			"load_env":          loadEnv,
			"group_args":        groupArgs,
			"manual_date_stamp": starlark.MakeInt(20090819),
		},
	}
}

// fftw3tbxModule is the data module one SConscript imports for a header name.
func fftw3tbxModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name:    "fftw3tbx",
		Members: starlark.StringDict{"fftw3_h": starlark.String("fftw3.h")},
	}
}

// sconsModule covers the rare scripts that reach for real SCons API objects;
// those uses are reference-only, so opaque sentinels suffice.
func sconsModule() *starlarkstruct.Module {
	action := &starlarkstruct.Module{
		Name:    "Action",
		Members: starlark.StringDict{"FunctionAction": &opaque{name: "SCons.Action.FunctionAction"}},
	}
	scannerC := &starlarkstruct.Module{
		Name:    "C",
		Members: starlark.StringDict{"CScanner": &opaque{name: "SCons.Scanner.C.CScanner"}},
	}
	scanner := &starlarkstruct.Module{
		Name:    "Scanner",
		Members: starlark.StringDict{"C": scannerC},
	}
	return &starlarkstruct.Module{
		Name:    "SCons",
		Members: starlark.StringDict{"Action": action, "Scanner": scanner},
	}
}
