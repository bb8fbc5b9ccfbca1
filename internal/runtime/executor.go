// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/envmatrix/envmatrix/internal/resolve"
)

type (
	// Executor runs an environment's commands in a provisioned context.
	Executor struct {
		// Runtime runs commands for host targets.
		Runtime Runtime
		// Container runs commands for container targets. May be nil when no
		// container provisioner is in use.
		Container Runtime
		Env       EnvBuilder
		Stdin     io.Reader
		Stdout    io.Writer
		Stderr    io.Writer
		// Timeout bounds every subprocess; zero means none.
		Timeout time.Duration
		Logger  *slog.Logger
	}

	// EnvOutcome is the result of running one environment's commands.
	EnvOutcome struct {
		Env string
		// Ran counts the commands that were started.
		Ran int
		// FailedIndex is the index of the failing command, or -1.
		FailedIndex int
		ExitCode    ExitCode
		Argv        []string
		// Err is nil on success; otherwise a *CommandFailedError or the
		// environment-building error.
		Err      error
		Duration time.Duration
	}
)

// Passed reports whether every command exited zero.
func (o *EnvOutcome) Passed() bool { return o.Err == nil }

// Interrupted reports whether the operator stopped this environment.
func (o *EnvOutcome) Interrupted() bool { return errors.Is(o.Err, ErrInterrupted) }

// Execute runs env's commands in order and stops at the first failure.
// Effects of commands that already ran are kept.
func (x *Executor) Execute(ctx context.Context, env *resolve.Environment, scope *Scope) *EnvOutcome {
	start := time.Now()
	out := &EnvOutcome{Env: env.Name, FailedIndex: -1}
	defer func() { out.Duration = time.Since(start) }()

	environ, err := x.Environ(env, scope)
	if err != nil {
		out.ExitCode = 1
		out.Err = fmt.Errorf("%s: failed to build environment: %w", env.Name, err)
		return out
	}

	dir := scope.CommandDir(env.ChangeDir)
	logger := x.logger().With("env", env.Name)

	for i, cmd := range env.Commands {
		argv := scope.SubstituteArgs(cmd, env.VerbatimAt(i))

		if ctx.Err() != nil {
			x.fail(out, i, argv, NewErrorResult(ExitInterrupted, ErrInterrupted))
			return out
		}

		fmt.Fprintf(x.stderr(), "%s: commands[%d]> %s\n", env.Name, i, strings.Join(argv, " "))
		logger.Debug("running command", "index", i, "dir", dir, "argv", argv)

		out.Ran++
		res := x.RunStep(ctx, scope, argv, dir, environ)
		if !res.Success() {
			x.fail(out, i, argv, res)
			logger.Debug("command failed", "index", i, "exit_code", res.ExitCode)
			return out
		}
	}

	return out
}

// Environ builds the subprocess environment for env in scope.
func (x *Executor) Environ(env *resolve.Environment, scope *Scope) (map[string]string, error) {
	builder := x.Env
	if builder == nil {
		builder = NewDefaultEnvBuilder()
	}
	return builder.Build(env, scope)
}

// RunStep runs a single argv in scope. Provisioners use it for their
// create and install steps so those see the same runtime and environment
// as the commands.
func (x *Executor) RunStep(ctx context.Context, scope *Scope, argv []string, dir string, environ map[string]string) *Result {
	rt := x.Runtime
	if scope.Target.IsContainer() {
		rt = x.Container
	}
	if rt == nil {
		return NewErrorResult(1, ErrRuntimeNotAvailable)
	}
	return rt.Run(ctx, &Request{
		Argv:    argv,
		Dir:     dir,
		Env:     environ,
		Stdin:   x.Stdin,
		Stdout:  x.Stdout,
		Stderr:  x.Stderr,
		Timeout: x.Timeout,
		Target:  scope.Target,
	})
}

func (x *Executor) fail(out *EnvOutcome, index int, argv []string, res *Result) {
	code := res.ExitCode
	if code == 0 {
		code = 1
	}
	out.FailedIndex = index
	out.ExitCode = code
	out.Argv = argv
	out.Err = &CommandFailedError{
		Env:      out.Env,
		Index:    index,
		ExitCode: code,
		Argv:     argv,
		Err:      res.Error,
	}
}

func (x *Executor) logger() *slog.Logger {
	if x.Logger != nil {
		return x.Logger
	}
	return slog.Default()
}

func (x *Executor) stderr() io.Writer {
	if x.Stderr != nil {
		return x.Stderr
	}
	return io.Discard
}
