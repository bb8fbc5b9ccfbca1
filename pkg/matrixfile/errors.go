// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedConfig is the sentinel for structural matrix errors.
var ErrMalformedConfig = errors.New("malformed matrix configuration")

// MalformedConfigError reports a structural problem in a matrix file.
// Section and Field are empty when the problem is not tied to either.
type MalformedConfigError struct {
	Path    string
	Section string
	Field   string
	Reason  string
}

// Error implements the error interface.
func (e *MalformedConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Section != "" {
		fmt.Fprintf(&b, ": [%s]", e.Section)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// Unwrap returns ErrMalformedConfig for errors.Is() compatibility.
func (e *MalformedConfigError) Unwrap() error { return ErrMalformedConfig }

func malformed(path, section, field, format string, args ...any) *MalformedConfigError {
	return &MalformedConfigError{Path: path, Section: section, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// lineError is returned by the lexer and gains its location in the caller.
type lineError struct {
	line   string
	reason string
}

func (e *lineError) Error() string {
	return fmt.Sprintf("%s in %q", e.reason, e.line)
}

// at attaches a location to a lexer error.
func at(err error, path, section, field string) error {
	var le *lineError
	if errors.As(err, &le) {
		return malformed(path, section, field, "%s", le.Error())
	}
	return malformed(path, section, field, "%v", err)
}
