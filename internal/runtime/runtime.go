// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"
)

// Runtime type constants for different execution environments.
const (
	RuntimeTypeNative    RuntimeType = "native"
	RuntimeTypeVirtual   RuntimeType = "virtual"
	RuntimeTypeContainer RuntimeType = "container"
)

type (
	// Request describes one subprocess invocation.
	Request struct {
		// Argv is the argument vector; Argv[0] is resolved against Env["PATH"].
		Argv []string
		// Dir is the host working directory.
		Dir string
		// Env is the complete subprocess environment. Nothing else is inherited.
		Env    map[string]string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Timeout bounds this subprocess; zero means no timeout.
		Timeout time.Duration
		// Target says where the command runs. The zero value is the host.
		Target Target
	}

	// Target locates a provisioned context that lives outside the host
	// filesystem, such as a container image.
	Target struct {
		Image string
		// HostRoot is mounted at ContainerRoot inside the container.
		HostRoot      string
		ContainerRoot string
	}

	// Runtime defines the interface for command execution.
	Runtime interface {
		// Name returns the runtime name
		Name() string
		// Available returns whether this runtime is available on the current system
		Available() bool
		// Run runs one command and waits for it to exit.
		Run(ctx context.Context, req *Request) *Result
	}

	// RuntimeType identifies the type of runtime.
	//
	//nolint:revive // RuntimeType is more descriptive than Type for external callers
	RuntimeType string

	// Registry holds all available runtimes
	Registry struct {
		runtimes map[RuntimeType]Runtime
	}
)

// IsContainer reports whether commands for this target run in a container.
func (t Target) IsContainer() bool { return t.Image != "" }

// NewRegistry creates a new runtime registry
func NewRegistry() *Registry {
	return &Registry{
		runtimes: make(map[RuntimeType]Runtime),
	}
}

// Register adds a runtime to the registry
func (r *Registry) Register(typ RuntimeType, rt Runtime) {
	r.runtimes[typ] = rt
}

// Get returns a runtime by type
func (r *Registry) Get(typ RuntimeType) (Runtime, error) {
	rt, ok := r.runtimes[typ]
	if !ok {
		return nil, fmt.Errorf("runtime '%s' not registered", typ)
	}
	return rt, nil
}

// Available returns the registered runtimes that can run on this system, sorted.
func (r *Registry) Available() []RuntimeType {
	var types []RuntimeType
	for _, typ := range slices.Sorted(maps.Keys(r.runtimes)) {
		if r.runtimes[typ].Available() {
			types = append(types, typ)
		}
	}
	return types
}

// EnvToSlice converts a map of environment variables to a slice, sorted by key.
func EnvToSlice(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		result = append(result, k+"="+env[k])
	}
	return result
}
