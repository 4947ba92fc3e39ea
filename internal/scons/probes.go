package scons

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// configureContext is returned by env.Configure(). The legacy runtime uses it
// to compile and run little probe programs against the configured
// environment; we never attempt to answer the probes correctly, we recognise
// each one by the least specific signature that still uniquely identifies it
// and return a canned success. Unrecognised probes abort the run with the
// probe code in the diagnostic.
//
// Recognition prefers the calling-frame name; where several probes share a
// caller, a substring that only appears in that probe's test code is used.
type configureContext struct {
	env *Environment
}

var _ starlark.HasAttrs = (*configureContext)(nil)

func (c *configureContext) String() string       { return "<configure_context>" }
func (c *configureContext) Type() string         { return "configure_context" }
func (c *configureContext) Freeze()              {}
func (c *configureContext) Truth() starlark.Bool { return starlark.True }
func (c *configureContext) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: configure_context")
}

func (c *configureContext) Attr(name string) (starlark.Value, error) {
	switch name {
	case "TryRun":
		return methodOf(c, "TryRun", c.tryRun), nil
	case "TryCompile":
		return methodOf(c, "TryCompile", c.tryCompile), nil
	case "Finish":
		return methodOf(c, "Finish", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

func (c *configureContext) AttrNames() []string { return []string{"Finish", "TryCompile", "TryRun"} }

// compilerInfo is the canned answer to the compiler-identification probe, in
// the exact shape the probing script expects to eval.
const compilerInfo = `{'llvm': 1, 'clang': 1, 'clang_major': 8, 'clang_minor': 1, ` +
	`'clang_patchlevel': 0, 'GNUC': 4, 'GNUC_MINOR': 2, 'GNUC_PATCHLEVEL': 1, ` +
	`'clang_version': '8.1.0 (clang-802.0.42)', ` +
	`'VERSION': '4.2.1 Compatible Apple LLVM 8.1.0 (clang-802.0.42)'}`

func (c *configureContext) tryRun(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	code, err := probeCode(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	caller := callingFrame(thread)

	ok := func(output string) starlark.Value {
		return starlark.Tuple{starlark.MakeInt(1), starlark.String(output)}
	}

	switch {
	// Compiler identification: constant answer, adjust if it misleads.
	case strings.Contains(code, "__GNUC_PATCHLEVEL__"):
		return ok(compilerInfo), nil
	// OpenMP works as far as the legacy configuration is concerned.
	case caller == "enable_openmp_if_possible":
		return ok("e=2.71828, pi=3.14159"), nil
	// Writes out size-type equivalence information.
	case caller == "write_type_id_eq_h":
		return ok("0010"), nil
	// Can the OpenGL headers be included?
	case strings.Contains(code, "gltbx/include_opengl.h"):
		return ok("6912"), nil
	}
	return nil, &UnknownProbeError{Kind: "TryRun", Caller: caller, Code: code}
}

func (c *configureContext) tryCompile(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	code, err := probeCode(b, args, kwargs)
	if err != nil {
		return nil, err
	}

	switch {
	// Old boost/clang thread-construction workaround; long obsolete.
	case strings.Contains(code, "boost::thread t(f);"):
		return starlark.MakeInt(1), nil
	// Does the compiler work at all?
	case code == "#include <iostream>":
		return starlark.MakeInt(1), nil
	// Is Python available?
	case code == "#include <Python.h>":
		return starlark.MakeInt(1), nil
	// Second OpenGL inclusion check.
	case strings.TrimSpace(code) == "#include <gltbx/include_opengl.h>":
		return starlark.MakeInt(1), nil
	// Is fftw3 importable?
	case code == "#include <fftw3.h>":
		return starlark.MakeInt(1), nil
	}
	return nil, &UnknownProbeError{Kind: "TryCompile", Caller: callingFrame(thread), Code: code}
}

// probeCode extracts the probe source. Keyword arguments (extension, flags)
// vary between probes and are deliberately ignored.
func probeCode(b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%s: missing probe code argument", b.Name())
	}
	code, ok := starlark.AsString(args[0])
	if !ok {
		return "", fmt.Errorf("%s: probe code is %s, want string", b.Name(), args[0].Type())
	}
	return code, nil
}

// callingFrame names the script function that invoked the probe: the top of
// the call stack is the builtin itself, the frame below it is the caller.
func callingFrame(thread *starlark.Thread) string {
	stack := thread.CallStack()
	if len(stack) < 2 {
		return ""
	}
	return stack[len(stack)-2].Name
}
