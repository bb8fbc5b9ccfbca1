// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEnvironment is the sentinel for references or requests naming
	// an environment the matrix does not define.
	ErrUnknownEnvironment = errors.New("unknown environment")

	// ErrCyclicReference is the sentinel for reference cycles.
	ErrCyclicReference = errors.New("cyclic reference")
)

type (
	// UnknownEnvironmentError names an undefined environment.
	UnknownEnvironmentError struct {
		Name string
		// Referrer is the "ENV.FIELD" holding the dangling reference; empty
		// when the name came from the run list.
		Referrer string
		Known    []string
	}

	// CyclicReferenceError reports a reference cycle as a closed path in
	// reference direction: a.commands -> b.commands -> a.commands means
	// a.commands references b.commands, which references a.commands.
	CyclicReferenceError struct {
		Cycle []string
	}
)

// Error implements the error interface.
func (e *UnknownEnvironmentError) Error() string {
	var b strings.Builder
	if e.Referrer != "" {
		fmt.Fprintf(&b, "%s references unknown environment %q", e.Referrer, e.Name)
	} else {
		fmt.Fprintf(&b, "unknown environment %q", e.Name)
	}
	if len(e.Known) > 0 {
		fmt.Fprintf(&b, " (defined: %s)", strings.Join(e.Known, ", "))
	}
	return b.String()
}

// Unwrap returns ErrUnknownEnvironment for errors.Is() compatibility.
func (e *UnknownEnvironmentError) Unwrap() error { return ErrUnknownEnvironment }

// Error implements the error interface.
func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic reference: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCyclicReference for errors.Is() compatibility.
func (e *CyclicReferenceError) Unwrap() error { return ErrCyclicReference }
