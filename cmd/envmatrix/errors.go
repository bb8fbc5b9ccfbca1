// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/envmatrix/envmatrix/internal/config"
	"github.com/envmatrix/envmatrix/internal/container"
	"github.com/envmatrix/envmatrix/internal/issue"
	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"
)

// classifyError maps a failure that stopped the run before any environment
// started to an issue catalog ID and a styled one-line message.
func classifyError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	switch {
	case errors.Is(err, matrixfile.ErrNotFound):
		issueID = issue.MatrixNotFoundId
	case errors.Is(err, matrixfile.ErrMalformedConfig):
		issueID = issue.MalformedConfigId
	case errors.Is(err, resolve.ErrUnknownEnvironment):
		issueID = issue.UnknownEnvironmentId
	case errors.Is(err, resolve.ErrCyclicReference):
		issueID = issue.CyclicReferenceId
	case errors.Is(err, container.ErrNoEngineAvailable):
		issueID = issue.ContainerEngineNotFoundId
	case errors.Is(err, config.ErrInvalidConfigRuntimeMode), errors.Is(err, config.ErrInvalidProvisionerMode):
		issueID = issue.InvalidRuntimeModeId
	case errors.Is(err, config.ErrInvalidConfig):
		issueID = issue.ConfigLoadFailedId
	}

	return issueID, fmt.Sprintf("%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
