// SPDX-License-Identifier: MPL-2.0

// Package provision creates the isolated context an environment runs in and
// installs its dependencies and, unless skipped, the package under test.
//
// Every call to Provision creates a fresh context; contexts are never shared
// or reused between environments, even when their dependency sets match.
// LocalProvisioner builds a virtual environment on the host, while
// ContainerProvisioner bakes the same steps into a container image.
package provision
