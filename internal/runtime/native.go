// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"os"
	"os/exec"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

// defaultWaitDelay bounds how long an interrupted subprocess may take to exit
// before it is killed.
const defaultWaitDelay = 5 * time.Second

type (
	// NativeRuntime spawns commands directly on the host, without a shell.
	NativeRuntime struct {
		waitDelay time.Duration
	}

	// NativeRuntimeOption configures a NativeRuntime.
	NativeRuntimeOption func(*NativeRuntime)
)

// WithWaitDelay sets the grace period between the interrupt sent on
// cancellation and the kill.
func WithWaitDelay(d time.Duration) NativeRuntimeOption {
	return func(r *NativeRuntime) {
		r.waitDelay = d
	}
}

// NewNativeRuntime creates a new native runtime.
func NewNativeRuntime(opts ...NativeRuntimeOption) *NativeRuntime {
	r := &NativeRuntime{waitDelay: defaultWaitDelay}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the runtime name.
func (r *NativeRuntime) Name() string {
	return string(RuntimeTypeNative)
}

// Available always returns true; process spawning needs no external tool.
func (r *NativeRuntime) Available() bool {
	return true
}

// Run resolves argv[0] against the request PATH and runs it.
func (r *NativeRuntime) Run(parent context.Context, req *Request) *Result {
	if len(req.Argv) == 0 {
		return NewErrorResult(1, errEmptyCommand)
	}

	dir := req.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return NewErrorResult(1, err)
		}
		dir = wd
	}

	environ := EnvToSlice(req.Env)
	path, err := interp.LookPathDir(dir, expand.ListEnviron(environ...), req.Argv[0])
	if err != nil {
		return NewErrorResult(ExitCommandNotFound, &CommandNotFoundError{Name: req.Argv[0], Err: err})
	}

	ctx, cancel := withTimeout(parent, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, req.Argv[1:]...)
	cmd.Args[0] = req.Argv[0]
	cmd.Dir = dir
	cmd.Env = environ
	cmd.Stdin = req.Stdin
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr
	// Give the process a chance to clean up (flush coverage data, remove
	// lock files) before it is killed.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = r.waitDelay

	return processResult(parent, ctx, req.Timeout, cmd.Run())
}
