// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/envmatrix/envmatrix/internal/config"
	"github.com/envmatrix/envmatrix/internal/container"
	"github.com/envmatrix/envmatrix/internal/issue"
	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"matrix not found", fmt.Errorf("%w in /tmp", matrixfile.ErrNotFound), issue.MatrixNotFoundId},
		{"malformed matrix", &matrixfile.MalformedConfigError{}, issue.MalformedConfigId},
		{"unknown env", &resolve.UnknownEnvironmentError{Name: "py99"}, issue.UnknownEnvironmentId},
		{"cycle", &resolve.CyclicReferenceError{Cycle: []string{"a.deps", "b.deps", "a.deps"}}, issue.CyclicReferenceId},
		{"no engine", &container.EngineNotAvailableError{Engine: "podman"}, issue.ContainerEngineNotFoundId},
		{"bad runtime", &config.InvalidConfigRuntimeModeError{Value: "container"}, issue.InvalidRuntimeModeId},
		{"bad config", config.ErrInvalidConfig, issue.ConfigLoadFailedId},
		{"anything else", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, msg := classifyError(tt.err, false)
			if got != tt.want {
				t.Errorf("classifyError() id = %d, want %d", got, tt.want)
			}
			if !strings.Contains(msg, "Error:") || !strings.HasSuffix(msg, "\n") {
				t.Errorf("styled message = %q", msg)
			}
		})
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain failure")
	if got := formatErrorForDisplay(plain, true); got != "plain failure" {
		t.Errorf("plain error = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("load matrix file").
		WithResource("./tox.ini").
		WithSuggestion("Create a tox.ini").
		Wrap(fs.ErrNotExist).
		BuildError()

	terse := formatErrorForDisplay(ae, false)
	verbose := formatErrorForDisplay(ae, true)
	if !strings.Contains(terse, "load matrix file") {
		t.Errorf("terse output missing operation: %q", terse)
	}
	if len(verbose) < len(terse) {
		t.Errorf("verbose output should not be shorter than terse output")
	}
}
