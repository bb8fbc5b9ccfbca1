// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInterrupted reports an operator-requested stop.
	ErrInterrupted = errors.New("interrupted")

	// ErrCommandFailed is the sentinel wrapped by CommandFailedError.
	ErrCommandFailed = errors.New("command failed")

	// ErrCommandNotFound is the sentinel wrapped by CommandNotFoundError.
	ErrCommandNotFound = errors.New("command not found")

	// ErrTimeout is the sentinel wrapped by TimeoutError.
	ErrTimeout = errors.New("command timed out")

	// ErrRuntimeNotAvailable is returned when the selected runtime cannot run
	// on this system.
	ErrRuntimeNotAvailable = errors.New("runtime not available")

	errEmptyCommand = errors.New("empty command")
)

type (
	// CommandFailedError records the command that stopped an environment.
	CommandFailedError struct {
		Env      string
		Index    int
		ExitCode ExitCode
		Argv     []string
		// Err is the underlying cause when the command did not simply exit
		// non-zero (not found, timeout, interrupt).
		Err error
	}

	// CommandNotFoundError reports an argv[0] that is not on the PATH.
	CommandNotFoundError struct {
		Name string
		Err  error
	}

	// TimeoutError reports a subprocess that outlived its timeout.
	TimeoutError struct {
		Timeout time.Duration
	}
)

// Error implements the error interface.
func (e *CommandFailedError) Error() string {
	msg := fmt.Sprintf("%s: commands[%d] (%s) failed with exit code %d",
		e.Env, e.Index, strings.Join(e.Argv, " "), e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrCommandFailed and the underlying cause, if any.
func (e *CommandFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCommandFailed}
	}
	return []error{ErrCommandFailed, e.Err}
}

// Error implements the error interface.
func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command %q not found: %v", e.Name, e.Err)
}

// Unwrap returns ErrCommandNotFound for errors.Is() compatibility.
func (e *CommandNotFoundError) Unwrap() error { return ErrCommandNotFound }

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.Timeout)
}

// Unwrap returns ErrTimeout for errors.Is() compatibility.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }
