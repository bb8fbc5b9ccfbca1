// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Result contains the result of a single subprocess.
type Result struct {
	// ExitCode is the exit code of the command.
	ExitCode ExitCode
	// Error is set when the command could not be run or was stopped,
	// never for a plain non-zero exit.
	Error error
}

// Success returns true if the command executed successfully.
func (r *Result) Success() bool {
	return r.ExitCode.IsSuccess() && r.Error == nil
}

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewSuccessResult creates a Result with exit code 0 and no error.
func NewSuccessResult() *Result {
	return &Result{}
}

// NewExitCodeResult creates a Result with the given exit code and no error.
// Use this for non-zero exits that represent normal process termination
// rather than infrastructure failures.
func NewExitCodeResult(code ExitCode) *Result {
	return &Result{ExitCode: code}
}

// withTimeout derives the context a single subprocess runs under.
func withTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// stoppedResult reports why a subprocess context ended early, or nil when it
// did not. Parent cancellation is an operator interrupt; a deadline on the
// derived context is the per-subprocess timeout.
func stoppedResult(parent, ctx context.Context, timeout time.Duration) *Result {
	if parent.Err() != nil {
		return NewErrorResult(ExitInterrupted, ErrInterrupted)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewErrorResult(ExitTimeout, &TimeoutError{Timeout: timeout})
	}
	return nil
}

// processResult maps the error returned by exec.Cmd.Run.
func processResult(parent, ctx context.Context, timeout time.Duration, err error) *Result {
	if stopped := stoppedResult(parent, ctx, timeout); stopped != nil {
		return stopped
	}
	if err == nil {
		return NewSuccessResult()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return NewExitCodeResult(ExitCode(exitErr.ExitCode()))
	}
	if errors.Is(err, exec.ErrNotFound) {
		return NewErrorResult(ExitCommandNotFound, err)
	}
	return NewErrorResult(1, fmt.Errorf("failed to execute command: %w", err))
}
