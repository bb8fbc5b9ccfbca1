// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/envmatrix/envmatrix/internal/container"
)

// ContainerRuntime runs commands in a fresh container of the provisioned image,
// with the working tree bind-mounted so side effects land on the host.
type ContainerRuntime struct {
	engine container.Engine
}

// NewContainerRuntime creates a container runtime on the given engine.
func NewContainerRuntime(engine container.Engine) *ContainerRuntime {
	return &ContainerRuntime{engine: engine}
}

// Name returns the runtime name.
func (r *ContainerRuntime) Name() string {
	return string(RuntimeTypeContainer)
}

// Available reports whether the container engine responds.
func (r *ContainerRuntime) Available() bool {
	return r.engine != nil && r.engine.Available()
}

// Run runs argv inside req.Target.Image.
func (r *ContainerRuntime) Run(parent context.Context, req *Request) *Result {
	if len(req.Argv) == 0 {
		return NewErrorResult(1, errEmptyCommand)
	}
	if !req.Target.IsContainer() {
		return NewErrorResult(1, fmt.Errorf("%w: container runtime needs a container target", ErrRuntimeNotAvailable))
	}
	if r.engine == nil {
		return NewErrorResult(1, fmt.Errorf("%w: no container engine", ErrRuntimeNotAvailable))
	}

	workDir, err := containerPath(req.Target, req.Dir)
	if err != nil {
		return NewErrorResult(1, err)
	}

	ctx, cancel := withTimeout(parent, req.Timeout)
	defer cancel()

	res, err := r.engine.Run(ctx, container.RunOptions{
		Image:   req.Target.Image,
		Command: req.Argv,
		WorkDir: workDir,
		Env:     req.Env,
		Volumes: []string{req.Target.HostRoot + ":" + req.Target.ContainerRoot},
		Remove:  true,
		Stdin:   req.Stdin,
		Stdout:  req.Stdout,
		Stderr:  req.Stderr,
	})
	if stopped := stoppedResult(parent, ctx, req.Timeout); stopped != nil {
		return stopped
	}
	if err != nil {
		return NewErrorResult(1, err)
	}
	if res.Error != nil {
		return NewErrorResult(ExitCode(res.ExitCode), res.Error)
	}
	return NewExitCodeResult(ExitCode(res.ExitCode))
}

// containerPath maps a host directory under HostRoot to its mount point.
func containerPath(t Target, hostDir string) (string, error) {
	if hostDir == "" {
		return t.ContainerRoot, nil
	}
	rel, err := filepath.Rel(t.HostRoot, hostDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory %s is outside the mounted tree %s", hostDir, t.HostRoot)
	}
	return path.Join(t.ContainerRoot, filepath.ToSlash(rel)), nil
}
