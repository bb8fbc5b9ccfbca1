// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

var transientMarkers = []string{
	// Rootless Podman races and OCI runtime errors.
	"ping_group_range",
	"OCI runtime error",
	// Network errors during image pulls or pip installs inside builds.
	"Temporary failure resolving",
	"Could not resolve host",
	"connection timed out",
	"connection refused",
	"TLS handshake timeout",
	// Storage driver races.
	"error creating overlay mount",
	"error mounting layer",
}

// IsTransientError reports whether err is a container engine failure that may
// succeed on retry. Cancellation and deadline errors are never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Exit code 125 is the generic engine failure code for docker and podman.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
