// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/envmatrix/envmatrix/internal/runtime"
)

// Provisioning steps, in the order they run.
const (
	StepWorkDir = "workdir"
	StepCreate  = "create"
	StepDeps    = "deps"
	StepPackage = "package"
	StepBuild   = "build"
)

// ErrProvisioningFailed is the sentinel wrapped by ProvisioningFailedError.
var ErrProvisioningFailed = errors.New("provisioning failed")

// ProvisioningFailedError reports the step that kept an environment from running.
type ProvisioningFailedError struct {
	Env      string
	Step     string
	ExitCode runtime.ExitCode
	Argv     []string
	Err      error
}

// Error implements the error interface.
func (e *ProvisioningFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: provisioning step %q failed", e.Env, e.Step)
	if len(e.Argv) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Argv, " "))
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns ErrProvisioningFailed and the underlying cause, if any.
func (e *ProvisioningFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvisioningFailed}
	}
	return []error{ErrProvisioningFailed, e.Err}
}
