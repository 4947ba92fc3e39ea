// Package sandbox loads and executes build-generation scripts.
//
// The scripts are Starlark. Each execution gets a fresh namespace seeded with
// a caller-supplied table of injected names; two scripts run in sequence share
// nothing except what the caller explicitly threads between them.
//
// The sandbox isolates only the Starlark namespace. The scripts being
// executed are the developer's own, running on the developer's machine; no
// attempt is made to restrict filesystem or process access reachable through
// the injected API surface.
package sandbox

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions is the language subset the legacy scripts rely on.
func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// ExecFile compiles and executes the script at path against the injected name
// table and returns the script's final globals. Compile and execution errors
// propagate unchanged: the scripts are assumed well-formed, so any failure is
// a gap in the emulation surface and must abort the run.
func ExecFile(thread *starlark.Thread, path string, predeclared starlark.StringDict) (starlark.StringDict, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return starlark.ExecFileOptions(fileOptions(), thread, path, src, predeclared)
}

// EvalExprFile evaluates the file at path as a single expression and returns
// its value. Used for manifest files that hold one dictionary literal.
func EvalExprFile(path string) (starlark.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	thread := &starlark.Thread{Name: "eval:" + path}
	return starlark.EvalOptions(fileOptions(), thread, path, src, nil)
}
