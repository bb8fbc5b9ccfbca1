// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRuntime runs commands through the embedded mvdan.cc/sh interpreter.
// Arguments are quoted, so the interpreter only contributes its builtins and
// portable PATH lookup; no shell expansion reaches the arguments.
type VirtualRuntime struct{}

// NewVirtualRuntime creates a new virtual runtime.
func NewVirtualRuntime() *VirtualRuntime {
	return &VirtualRuntime{}
}

// Name returns the runtime name.
func (r *VirtualRuntime) Name() string {
	return string(RuntimeTypeVirtual)
}

// Available always returns true since the interpreter is built in.
func (r *VirtualRuntime) Available() bool {
	return true
}

// Run executes argv as a single quoted command line.
func (r *VirtualRuntime) Run(parent context.Context, req *Request) *Result {
	if len(req.Argv) == 0 {
		return NewErrorResult(1, errEmptyCommand)
	}

	line, err := quoteArgv(req.Argv)
	if err != nil {
		return NewErrorResult(1, err)
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(line), req.Argv[0])
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to parse command: %w", err))
	}

	dir := req.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return NewErrorResult(1, err)
		}
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(EnvToSlice(req.Env)...)),
		interp.StdIO(req.Stdin, req.Stdout, req.Stderr),
	)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	ctx, cancel := withTimeout(parent, req.Timeout)
	defer cancel()

	err = runner.Run(ctx, prog)
	if stopped := stoppedResult(parent, ctx, req.Timeout); stopped != nil {
		return stopped
	}
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return NewExitCodeResult(ExitCode(exitStatus))
		}
		return NewErrorResult(1, fmt.Errorf("command execution failed: %w", err))
	}

	return NewSuccessResult()
}

func quoteArgv(argv []string) (string, error) {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", arg, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}
