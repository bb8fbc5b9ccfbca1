// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
)

type (
	// CLIEngine drives a Docker-compatible command line. Docker and Podman
	// differ only in the flavor details below.
	CLIEngine struct {
		*BaseCLIEngine
		flavor flavor
	}

	flavor struct {
		typ EngineType
		// versionFormat is the Go template passed to "version --format".
		versionFormat string
		// imageExists is the subcommand that exits 0 when an image is local.
		imageExists []string
	}
)

var (
	dockerFlavor = flavor{
		typ:           EngineTypeDocker,
		versionFormat: "{{.Server.Version}}",
		imageExists:   []string{"image", "inspect"},
	}
	podmanFlavor = flavor{
		typ:           EngineTypePodman,
		versionFormat: "{{.Version}}",
		imageExists:   []string{"image", "exists"},
	}
)

// NewDockerEngine returns an engine backed by the docker binary on PATH.
func NewDockerEngine(opts ...BaseCLIEngineOption) *CLIEngine {
	return newCLIEngine(dockerFlavor, lookPath("docker"), opts...)
}

// NewPodmanEngine returns an engine backed by the podman binary on PATH. On
// Linux, volume mounts get a shared SELinux label when SELinux is enforcing.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *CLIEngine {
	if goruntime.GOOS == "linux" {
		opts = append([]BaseCLIEngineOption{WithVolumeFormatter(addSELinuxLabel)}, opts...)
	}
	return newCLIEngine(podmanFlavor, lookPath("podman"), opts...)
}

func newCLIEngine(f flavor, binary string, opts ...BaseCLIEngineOption) *CLIEngine {
	opts = append([]BaseCLIEngineOption{WithName(string(f.typ))}, opts...)
	return &CLIEngine{BaseCLIEngine: NewBaseCLIEngine(binary, opts...), flavor: f}
}

func lookPath(name string) string {
	path, _ := exec.LookPath(name)
	return path
}

func (e *CLIEngine) Name() string { return string(e.flavor.typ) }

func (e *CLIEngine) Available() bool {
	return e.available("version", "--format", e.flavor.versionFormat)
}

func (e *CLIEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", e.flavor.versionFormat)
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", e.Name(), err)
	}
	return strings.TrimSpace(out), nil
}

func (e *CLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	return e.build(ctx, opts)
}

func (e *CLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	return e.run(ctx, opts)
}

// ImageExists never returns an error: any failure of the probe counts as
// a missing image, which makes the provisioner build it.
func (e *CLIEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	args := append(append([]string{}, e.flavor.imageExists...), image)
	return e.RunCommandStatus(ctx, args...) == nil, nil
}

func (e *CLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveImageArgs(image, force)...)
}

func addSELinuxLabel(volume string) string {
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil || strings.TrimSpace(string(data)) != "1" {
		return volume
	}
	return labelVolume(volume)
}

// labelVolume appends the shared z label to a host:container[:options]
// spec unless it already carries z or Z.
func labelVolume(volume string) string {
	parts := strings.Split(volume, ":")
	switch {
	case len(parts) < 2:
		return volume
	case len(parts) == 2:
		return volume + ":z"
	}
	for opt := range strings.SplitSeq(parts[len(parts)-1], ",") {
		if opt == "z" || opt == "Z" {
			return volume
		}
	}
	return volume + ",z"
}
