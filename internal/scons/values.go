package scons

import (
	"fmt"
	"path"
	"strings"

	"go.starlark.net/starlark"
)

// The small value types the scripts handle: fake paths, the open() stub,
// builder return sentinels and the easy_run result shim.

// fakePath wraps a string path rooted at one of the placeholder roots. It
// carries just enough string behaviour (find, split, repr) to survive the
// manipulations the scripts perform.
type fakePath struct {
	kind string // e.g. "UnderBuild"
	root string // e.g. "UNDERBUILD"
	path string
}

var _ starlark.HasAttrs = (*fakePath)(nil)

func (p *fakePath) String() string        { return fmt.Sprintf("%s(%q)", p.kind, p.path) }
func (p *fakePath) Type() string          { return "fake_path" }
func (p *fakePath) Freeze()               {}
func (p *fakePath) Truth() starlark.Bool  { return starlark.True }
func (p *fakePath) Hash() (uint32, error) { return starlark.String(p.abs()).Hash() }

func (p *fakePath) abs() string { return path.Join(p.root, p.path) }

func (p *fakePath) Attr(name string) (starlark.Value, error) {
	switch name {
	case "path":
		return starlark.String(p.path), nil
	case "abs":
		return methodOf(p, "abs", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(p.abs()), nil
		}), nil
	case "find":
		return methodOf(p, "find", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var sub string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &sub); err != nil {
				return nil, err
			}
			return starlark.MakeInt(strings.Index(p.path, sub)), nil
		}), nil
	case "split":
		return methodOf(p, "split", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			sep := "/"
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &sep); err != nil {
				return nil, err
			}
			parts := strings.Split(p.path, sep)
			elems := make([]starlark.Value, len(parts))
			for i, part := range parts {
				elems[i] = starlark.String(part)
			}
			return starlark.NewList(elems), nil
		}), nil
	}
	return nil, nil
}

func (p *fakePath) AttrNames() []string { return []string{"abs", "find", "path", "split"} }

// methodOf returns a builtin bound to a receiver value.
func methodOf(recv starlark.Value, name string, fn func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, fn).BindReceiver(recv)
}

// fakeFile is the object the sandboxed open() returns: it absorbs writes and
// returns empty reads, for scripts that generate headers under the build
// root as a side effect.
type fakeFile struct {
	name string
	data strings.Builder
}

var _ starlark.HasAttrs = (*fakeFile)(nil)

func (f *fakeFile) String() string        { return fmt.Sprintf("<file %q>", f.name) }
func (f *fakeFile) Type() string          { return "fake_file" }
func (f *fakeFile) Freeze()               {}
func (f *fakeFile) Truth() starlark.Bool  { return starlark.True }
func (f *fakeFile) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: fake_file") }

func (f *fakeFile) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(f.name), nil
	case "write":
		return methodOf(f, "write", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var data string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
				return nil, err
			}
			f.data.WriteString(data)
			return starlark.None, nil
		}), nil
	case "read":
		return methodOf(f, "read", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(""), nil
		}), nil
	case "close":
		return methodOf(f, "close", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

func (f *fakeFile) AttrNames() []string { return []string{"close", "name", "read", "write"} }

// programReturn is what the Program builder hands back. The scripts only ever
// ask a built program for its location.
type programReturn struct {
	path string
}

var _ starlark.HasAttrs = (*programReturn)(nil)

func (p *programReturn) String() string        { return fmt.Sprintf("<program %s>", p.path) }
func (p *programReturn) Type() string          { return "program" }
func (p *programReturn) Freeze()               {}
func (p *programReturn) Truth() starlark.Bool  { return starlark.True }
func (p *programReturn) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: program") }

func (p *programReturn) Attr(name string) (starlark.Value, error) {
	if name == "get_abspath" {
		return methodOf(p, "get_abspath", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(p.path), nil
		}), nil
	}
	return nil, nil
}

func (p *programReturn) AttrNames() []string { return []string{"get_abspath"} }

// sharedObject is the sentinel SharedObject returns: an intermediate object
// group that later builder calls may splice into their source lists.
type sharedObject struct {
	sources []string
}

func (s *sharedObject) String() string        { return fmt.Sprintf("<shared_object %v>", s.sources) }
func (s *sharedObject) Type() string          { return "shared_object" }
func (s *sharedObject) Freeze()               {}
func (s *sharedObject) Truth() starlark.Bool  { return starlark.True }
func (s *sharedObject) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: shared_object") }

// easyRunResult pretends to be the output of an easy_run invocation.
type easyRunResult struct {
	stdout []string
}

var _ starlark.HasAttrs = (*easyRunResult)(nil)

func (r *easyRunResult) String() string        { return fmt.Sprintf("<easy_run %v>", r.stdout) }
func (r *easyRunResult) Type() string          { return "easy_run_result" }
func (r *easyRunResult) Freeze()               {}
func (r *easyRunResult) Truth() starlark.Bool  { return starlark.True }
func (r *easyRunResult) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: easy_run_result") }

func (r *easyRunResult) Attr(name string) (starlark.Value, error) {
	switch name {
	case "stdout_lines":
		lines := make([]starlark.Value, len(r.stdout))
		for i, line := range r.stdout {
			lines[i] = starlark.String(line)
		}
		return starlark.NewList(lines), nil
	case "raise_if_errors":
		return methodOf(r, "raise_if_errors", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return r, nil
		}), nil
	}
	return nil, nil
}

func (r *easyRunResult) AttrNames() []string { return []string{"raise_if_errors", "stdout_lines"} }

// opaque is the reference-only sentinel standing in for SCons API objects
// (SCons.Action.FunctionAction, SCons.Scanner.C.CScanner). Calling it returns
// the sentinel itself and reading an attribute returns a new sentinel named
// after the attribute path, because the scripts only construct and pass these
// around.
type opaque struct {
	name string
}

var (
	_ starlark.Callable = (*opaque)(nil)
	_ starlark.HasAttrs = (*opaque)(nil)
)

func (o *opaque) String() string        { return fmt.Sprintf("<sentinel %s>", o.name) }
func (o *opaque) Type() string          { return "sentinel" }
func (o *opaque) Freeze()               {}
func (o *opaque) Truth() starlark.Bool  { return starlark.True }
func (o *opaque) Hash() (uint32, error) { return starlark.String(o.name).Hash() }
func (o *opaque) Name() string          { return o.name }

func (o *opaque) CallInternal(_ *starlark.Thread, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	return o, nil
}

func (o *opaque) Attr(name string) (starlark.Value, error) {
	return &opaque{name: o.name + "." + name}, nil
}

func (o *opaque) AttrNames() []string { return nil }
