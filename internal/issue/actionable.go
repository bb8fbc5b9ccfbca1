// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError wraps a failure with what envmatrix was doing, the file
	// or environment involved, and hints for the user.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("load configuration").
	//		WithResource(path).
	//		WithSuggestion("Run 'envmatrix config init --force'").
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		Operation   string
		Resource    string
		Suggestions []string
		Cause       error
	}

	// ErrorContext accumulates the fields of an ActionableError. Each
	// BuildError call snapshots the current state, so one context can be
	// reused for several causes.
	ErrorContext struct {
		ae ActionableError
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Wrap returns an ActionableError for err, or nil when err is nil.
func Wrap(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Resource: resource, Cause: err}
}

func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the error with its suggestions as a bullet list. Verbose
// output also numbers every link of the cause chain.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteByte('\n')
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		for depth, err := 1, e.Cause; err != nil; depth, err = depth+1, errors.Unwrap(err) {
			fmt.Fprintf(&b, "\n  %d. %s", depth, err)
		}
	}
	return b.String()
}

func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.ae.Operation = op
	return c
}

func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.ae.Resource = res
	return c
}

// WithSuggestion appends one hint; call it repeatedly for several.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.ae.Suggestions = append(c.ae.Suggestions, s)
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.ae.Cause = err
	return c
}

// BuildError returns the accumulated error, or nil when no operation was set.
func (c *ErrorContext) BuildError() error {
	if c.ae.Operation == "" {
		return nil
	}
	ae := c.ae
	ae.Suggestions = append([]string(nil), c.ae.Suggestions...)
	return &ae
}
