package scons

import "fmt"

// The emulation surface is fail-closed: any legacy API use it does not
// recognise aborts the run with enough context to extend the stubs. Silent
// success when the legacy scripts evolve would produce wrong output; a loud
// failure names exactly the missing shim.

// UnknownProbeError reports a TryRun/TryCompile probe the configure context
// could not recognise. The probe code is carried verbatim so a maintainer can
// add it to the recognition table.
type UnknownProbeError struct {
	Kind   string // "TryRun" or "TryCompile"
	Caller string // calling-frame name, when one was available
	Code   string
}

func (e *UnknownProbeError) Error() string {
	return fmt.Sprintf("unrecognised %s probe (caller %q):\n%s", e.Kind, e.Caller, e.Code)
}

// UnknownCommandError reports an easy_run command outside the whitelist.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unrecognised easy_run command: %q", e.Command)
}

// UnknownAPIError reports any other stub invocation outside its known
// contract (bad Repository path, unexpected darwin_shlinkcom input, a helper
// the scripts were never seen to call).
type UnknownAPIError struct {
	API    string
	Detail string
}

func (e *UnknownAPIError) Error() string {
	return fmt.Sprintf("unrecognised use of legacy API %s: %s", e.API, e.Detail)
}
