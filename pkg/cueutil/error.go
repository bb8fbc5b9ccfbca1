// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

// ValidationError is a CUE failure located in a user file. Path holds the
// segments of the first reported error (e.g. envs, lint, deps, 0); Details
// lists every further error as "path: message".
type ValidationError struct {
	FilePath string
	Path     []string
	Message  string
	Details  []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.FilePath)
	if p := JSONPath(e.Path); p != "" {
		b.WriteString(": ")
		b.WriteString(p)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	for _, d := range e.Details {
		b.WriteString("\n  ")
		b.WriteString(d)
	}
	return b.String()
}

// FormatError converts a CUE error into a *ValidationError for filePath.
// It returns nil for a nil err.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	list := errors.Errors(err)
	if len(list) == 0 {
		return &ValidationError{FilePath: filePath, Message: err.Error()}
	}

	out := &ValidationError{FilePath: filePath}
	for i, e := range list {
		path := errors.Path(e)
		msg := trimPathPrefix(e.Error(), JSONPath(path))
		if i == 0 {
			out.Path, out.Message = path, msg
			continue
		}
		if p := JSONPath(path); p != "" {
			msg = p + ": " + msg
		}
		out.Details = append(out.Details, msg)
	}
	return out
}

// trimPathPrefix drops a leading "path:" that CUE sometimes repeats in the
// message text.
func trimPathPrefix(msg, path string) string {
	if path == "" || !strings.HasPrefix(msg, path) {
		return msg
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
}

// JSONPath renders CUE path segments the way users write them:
// ["envs", "lint", "deps", "0"] becomes envs.lint.deps[0].
func JSONPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		switch {
		case i > 0 && isIndex(part):
			b.WriteString("[" + part + "]")
		case i > 0:
			b.WriteString("." + part)
		default:
			b.WriteString(part)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize rejects data larger than maxSize before it reaches the CUE
// compiler.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if n := int64(len(data)); n > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, n, maxSize)
	}
	return nil
}
