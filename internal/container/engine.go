// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	// EngineTypePodman selects Podman.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects Docker.
	EngineTypeDocker EngineType = "docker"
)

// ErrNoEngineAvailable is the sentinel wrapped by EngineNotAvailableError.
var ErrNoEngineAvailable = errors.New("no container engine available")

type (
	// Engine is the subset of container engine operations envmatrix needs.
	Engine interface {
		// Name returns the engine name ("docker" or "podman").
		Name() string
		// Available reports whether the engine binary exists and responds.
		Available() bool
		// Version returns the engine version string.
		Version(ctx context.Context) (string, error)
		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Run runs a command in a new container and waits for it to exit.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// ImageExists reports whether an image is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// RemoveImage removes an image.
		RemoveImage(ctx context.Context, image string, force bool) error
	}

	// EngineType identifies a container engine implementation.
	EngineType string

	// BuildOptions configures an image build.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the Dockerfile path, relative to ContextDir unless absolute.
		Dockerfile string
		Tag        string
		BuildArgs  map[string]string
		NoCache    bool
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// RunOptions configures a container run.
	RunOptions struct {
		Image   string
		Command []string
		WorkDir string
		Env     map[string]string
		// Volumes are "host:container[:options]" mount specs.
		Volumes []string
		Remove  bool
		Name    string
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// RunResult holds the outcome of a container run.
	RunResult struct {
		ExitCode int
		// Error is set when the engine itself failed rather than the command.
		Error error
	}

	// EngineNotAvailableError reports that no usable engine was found.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}

	// BuildError wraps a failed image build.
	BuildError struct {
		Engine string
		Tag    string
		Err    error
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("%s build of image %s failed: %v", e.Engine, e.Tag, e.Err)
}

// Unwrap returns the underlying build error.
func (e *BuildError) Unwrap() error { return e.Err }

// NewEngine returns the preferred engine, falling back to the other one when
// the preferred engine is not available.
func NewEngine(preferredType EngineType) (Engine, error) {
	var first, second Engine
	switch preferredType {
	case EngineTypePodman:
		first, second = NewPodmanEngine(), NewDockerEngine()
	case EngineTypeDocker:
		first, second = NewDockerEngine(), NewPodmanEngine()
	case "":
		return AutoDetectEngine()
	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
	if first.Available() {
		return first, nil
	}
	if second.Available() {
		return second, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: string(preferredType),
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available",
			first.Name(), second.Name()),
	}
}

// AutoDetectEngine returns the first available engine, preferring Podman.
func AutoDetectEngine() (Engine, error) {
	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}

	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (podman or docker) is available on this system",
	}
}
