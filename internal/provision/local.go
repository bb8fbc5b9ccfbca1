// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/internal/runtime"
)

// Compile-time interface check
var _ Provisioner = (*LocalProvisioner)(nil)

// LocalProvisioner creates a virtual environment per environment under the
// work dir and installs into it with the executor's runtime.
type LocalProvisioner struct {
	installer
	exec    *runtime.Executor
	rootDir string
	workDir string
	logger  *slog.Logger
}

// NewLocalProvisioner creates a LocalProvisioner for a resolved plan.
func NewLocalProvisioner(exec *runtime.Executor, plan *resolve.Plan, cfg *Config, logger *slog.Logger) *LocalProvisioner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	workDir := plan.Settings.WorkDir
	if cfg.WorkDir != "" {
		workDir = cfg.WorkDir
		if !filepath.IsAbs(workDir) {
			workDir = filepath.Join(plan.RootDir, workDir)
		}
	}
	return &LocalProvisioner{
		installer: installer{settings: plan.Settings, config: cfg},
		exec:      exec,
		rootDir:   plan.RootDir,
		workDir:   workDir,
		logger:    logger,
	}
}

// Provision creates a fresh directory, runs the create command, installs
// the dependencies and then the package under test unless installation is skipped.
func (p *LocalProvisioner) Provision(ctx context.Context, env *resolve.Environment) (*Context, error) {
	fail := func(step string, err error) error {
		return &ProvisioningFailedError{Env: env.Name, Step: step, Err: err}
	}

	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return nil, fail(StepWorkDir, err)
	}
	dir, err := os.MkdirTemp(p.workDir, env.Name+"-")
	if err != nil {
		return nil, fail(StepWorkDir, err)
	}
	pctx := &Context{
		Scope: runtime.Scope{
			EnvName: env.Name,
			RootDir: p.rootDir,
			Dir:     dir,
			BinDir:  filepath.Join(dir, binDirName()),
			TmpDir:  filepath.Join(dir, "tmp"),
		},
		Cleanup: noCleanup,
	}
	if !p.config.KeepContext {
		pctx.Cleanup = func() error { return os.RemoveAll(dir) }
	}

	if err := p.provision(ctx, env, pctx); err != nil {
		if cerr := pctx.Cleanup(); cerr != nil {
			p.logger.Warn("failed to remove context", "env", env.Name, "dir", dir, "error", cerr)
		}
		return nil, err
	}
	return pctx, nil
}

func (p *LocalProvisioner) provision(ctx context.Context, env *resolve.Environment, pctx *Context) error {
	if err := os.MkdirAll(pctx.TmpDir, 0o755); err != nil {
		return &ProvisioningFailedError{Env: env.Name, Step: StepWorkDir, Err: err}
	}

	environ, err := p.exec.Environ(env, &pctx.Scope)
	if err != nil {
		return &ProvisioningFailedError{Env: env.Name, Step: StepCreate, Err: err}
	}

	logger := p.logger.With("env", env.Name)
	logger.Debug("creating context", "dir", pctx.Dir)
	if err := p.step(ctx, env, pctx, environ, StepCreate, p.createCommand()); err != nil {
		return err
	}

	install := p.installCommand(env)
	if len(env.Deps) > 0 {
		logger.Debug("installing dependencies", "deps", env.Deps)
		if err := p.step(ctx, env, pctx, environ, StepDeps, installArgv(install, depArgs(env.Deps))); err != nil {
			return err
		}
	}

	if target := p.packageTarget(env, p.packageName()); target != nil {
		logger.Debug("installing package", "target", target)
		if err := p.step(ctx, env, pctx, environ, StepPackage, installArgv(install, target)); err != nil {
			return err
		}
	}
	return nil
}

func (p *LocalProvisioner) step(ctx context.Context, env *resolve.Environment, pctx *Context, environ map[string]string, step string, argv []string) error {
	argv = pctx.SubstituteArgv(argv)
	res := p.exec.RunStep(ctx, &pctx.Scope, argv, p.rootDir, environ)
	if res.Success() {
		return nil
	}
	return &ProvisioningFailedError{
		Env:      env.Name,
		Step:     step,
		ExitCode: res.ExitCode,
		Argv:     argv,
		Err:      res.Error,
	}
}

// binDirName is where a virtual environment keeps its executables.
func binDirName() string {
	if goruntime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}
