// SPDX-License-Identifier: MPL-2.0

// Package container drives Docker or Podman through their CLIs.
//
// The container provisioner builds one image per environment with Build and
// removes it with RemoveImage; the container runtime executes each command in
// a fresh container with Run, bind-mounting the working tree.
package container
