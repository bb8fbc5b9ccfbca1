// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/envmatrix/envmatrix/internal/container"
	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/internal/runtime"
)

// Paths inside provisioned images.
const (
	containerEnvDir  = "/envmatrix/env"
	containerPkgDir  = "/envmatrix/pkg"
	containerTmpDir  = "/tmp"
	containerSrcRoot = "/src"
)

// Compile-time interface check
var _ Provisioner = (*ContainerProvisioner)(nil)

// ContainerProvisioner builds one image per environment: a virtual
// environment in the base image with the dependencies and the package
// installed. Commands later run in containers of that image with the
// working tree mounted at /src.
type ContainerProvisioner struct {
	installer
	engine  container.Engine
	rootDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewContainerProvisioner creates a ContainerProvisioner for a resolved plan.
func NewContainerProvisioner(engine container.Engine, plan *resolve.Plan, cfg *Config, logger *slog.Logger) *ContainerProvisioner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContainerProvisioner{
		installer: installer{settings: plan.Settings, config: cfg},
		engine:    engine,
		rootDir:   plan.RootDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Provision builds a uniquely tagged image for env.
func (p *ContainerProvisioner) Provision(ctx context.Context, env *resolve.Environment) (*Context, error) {
	scope := runtime.Scope{
		EnvName: env.Name,
		RootDir: p.rootDir,
		Dir:     containerEnvDir,
		BinDir:  path.Join(containerEnvDir, "bin"),
		TmpDir:  containerTmpDir,
	}

	dockerfile, err := p.generateDockerfile(env, &scope)
	if err != nil {
		return nil, &ProvisioningFailedError{Env: env.Name, Step: StepBuild, Err: err}
	}
	tag := p.imageTag(env.Name, dockerfile)
	scope.Target = runtime.Target{Image: tag, HostRoot: p.rootDir, ContainerRoot: containerSrcRoot}

	buildDir, err := os.MkdirTemp("", "envmatrix-build-")
	if err != nil {
		return nil, &ProvisioningFailedError{Env: env.Name, Step: StepWorkDir, Err: err}
	}
	defer os.RemoveAll(buildDir)

	dockerfilePath := filepath.Join(buildDir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return nil, &ProvisioningFailedError{Env: env.Name, Step: StepWorkDir, Err: err}
	}

	p.logger.Debug("building image", "env", env.Name, "engine", p.engine.Name(), "tag", tag)
	if err := p.build(ctx, dockerfilePath, tag); err != nil {
		return nil, p.buildFailure(ctx, env.Name, err)
	}

	pctx := &Context{Scope: scope, Cleanup: noCleanup}
	if !p.config.KeepContext {
		pctx.Cleanup = func() error {
			return p.engine.RemoveImage(context.Background(), tag, true)
		}
	}
	return pctx, nil
}

func (p *ContainerProvisioner) build(ctx context.Context, dockerfilePath, tag string) error {
	attempts := max(p.config.BuildAttempts, 1)
	return container.RetryWithBackoff(ctx, attempts, p.config.BuildBackoff, func(attempt int) (bool, error) {
		err := p.engine.Build(ctx, container.BuildOptions{
			ContextDir: p.rootDir,
			Dockerfile: dockerfilePath,
			Tag:        tag,
			Stdout:     p.config.Output,
			Stderr:     p.config.Output,
		})
		if err == nil {
			return false, nil
		}
		transient := container.IsTransientError(err)
		if transient {
			p.logger.Warn("transient image build failure", "tag", tag, "attempt", attempt+1, "error", err)
		}
		return transient, err
	})
}

func (p *ContainerProvisioner) buildFailure(ctx context.Context, envName string, err error) error {
	failed := &ProvisioningFailedError{Env: envName, Step: StepBuild, ExitCode: 1, Err: err}
	if ctx.Err() != nil {
		failed.ExitCode = runtime.ExitInterrupted
		failed.Err = fmt.Errorf("%w: %w", runtime.ErrInterrupted, err)
		return failed
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		failed.ExitCode = runtime.ExitCode(exitErr.ExitCode())
	}
	return failed
}

// generateDockerfile writes the create and install steps as RUN
// instructions in exec form, so no shell touches the arguments.
func (p *ContainerProvisioner) generateDockerfile(env *resolve.Environment, scope *runtime.Scope) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FROM %s\n\n", p.config.BaseImage)
	fmt.Fprintf(&sb, "# envmatrix environment: %s\n", env.Name)

	if err := writeRun(&sb, scope.SubstituteArgv(p.createCommand())); err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "ENV VIRTUAL_ENV=%s PATH=%s:$PATH\n", scope.Dir, scope.BinDir)

	install := p.installCommand(env)
	if len(env.Deps) > 0 {
		if err := writeRun(&sb, scope.SubstituteArgv(installArgv(install, depArgs(env.Deps)))); err != nil {
			return "", err
		}
	}

	if target := p.packageTarget(env, containerPkgDir); target != nil {
		fmt.Fprintf(&sb, "COPY . %s\n", containerPkgDir)
		if err := writeRun(&sb, scope.SubstituteArgv(installArgv(install, target))); err != nil {
			return "", err
		}
	}

	return sb.String(), nil
}

func writeRun(sb *strings.Builder, argv []string) error {
	data, err := json.Marshal(argv)
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "RUN %s\n", data)
	return nil
}

// imageTag derives a tag unique to this provisioning: the environment name,
// a hash of the Dockerfile and the build time.
func (p *ContainerProvisioner) imageTag(envName, dockerfile string) string {
	h := sha256.New()
	h.Write([]byte(dockerfile))
	h.Write([]byte(strconv.FormatInt(p.now().UnixNano(), 10)))
	tag := fmt.Sprintf("envmatrix-%s:%s", imageName(envName), hex.EncodeToString(h.Sum(nil))[:12])
	if p.config.TagSuffix != "" {
		tag += "-" + p.config.TagSuffix
	}
	return tag
}

// imageName lowercases name and replaces characters image references reject.
func imageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
