// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/envmatrix/envmatrix/internal/config"
	"github.com/envmatrix/envmatrix/internal/container"
	"github.com/envmatrix/envmatrix/internal/issue"
	"github.com/envmatrix/envmatrix/internal/matrix"
	"github.com/envmatrix/envmatrix/internal/provision"
	"github.com/envmatrix/envmatrix/internal/report"
	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/internal/runtime"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"

	"github.com/spf13/cobra"
)

// runOptions are the flags shared by the root command and `envmatrix run`.
type runOptions struct {
	envs        []string
	runtime     string
	provisioner string
	timeout     time.Duration
	resultJSON  string
	workDir     string
	keepEnvs    bool
}

// runSettings are runOptions merged over the user configuration.
type runSettings struct {
	runtime     config.RuntimeMode
	provisioner config.ProvisionerMode
	timeout     time.Duration
}

func newRunCommand(app *App, flags *rootFlags) *cobra.Command {
	opts := &runOptions{}
	runCmd := &cobra.Command{
		Use:   "run [ENV...] [-- POSARGS...]",
		Short: "Provision environments and run their commands",
		Long: `Provision each selected environment in a fresh isolated context and run its
commands in order. Without names the default environment list is run.

Arguments after "--" replace {posargs} in every command.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runMatrix(cmd, flags, opts, args)
		},
		ValidArgsFunction: completeEnvNames(app, flags),
	}
	addRunFlags(runCmd, opts)
	return runCmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringSliceVarP(&opts.envs, "env", "e", nil, "environments to run (comma-separated, repeatable)")
	f.StringVar(&opts.runtime, "runtime", "", "command runtime: native or virtual (default from config)")
	f.StringVar(&opts.provisioner, "provisioner", "", "where environments are created: local or container (default from config)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-subprocess timeout, e.g. 10m (0 disables)")
	f.StringVar(&opts.resultJSON, "result-json", "", "write a machine-readable report to this file")
	f.StringVar(&opts.workDir, "work-dir", "", "directory for environment contexts (overrides the matrix and config)")
	f.BoolVar(&opts.keepEnvs, "keep-envs", false, "keep environment contexts after the run")
	_ = cmd.RegisterFlagCompletionFunc("runtime", cobra.FixedCompletions(
		[]string{string(config.RuntimeNative), string(config.RuntimeVirtual)}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("provisioner", cobra.FixedCompletions(
		[]string{string(config.ProvisionerLocal), string(config.ProvisionerContainer)}, cobra.ShellCompDirectiveNoFileComp))
}

// splitArgs separates environment names from the positional arguments after "--".
func splitArgs(cmd *cobra.Command, args []string) (names, posargs []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

func (a *App) runMatrix(cmd *cobra.Command, flags *rootFlags, opts *runOptions, args []string) error {
	names, posargs := splitArgs(cmd, args)
	return a.execute(cmd, flags, opts, append(slices.Clone(opts.envs), names...), posargs)
}

// execute loads the matrix, runs names and renders the summary. A run with
// failures returns an *ExitError carrying the report's exit code.
func (a *App) execute(cmd *cobra.Command, flags *rootFlags, opts *runOptions, names, posargs []string) error {
	ctx := cmd.Context()
	settings, err := a.runSettings(cmd, opts)
	if err != nil {
		return a.fail(err, exitConfig)
	}

	plan, err := a.loadPlan(flags, posargs)
	if err != nil {
		return a.fail(err, exitConfig)
	}
	runList, err := plan.Select(names)
	if err != nil {
		return a.fail(err, exitConfig)
	}

	cfg := a.settings()
	registry := runtime.NewRegistry()
	registry.Register(runtime.RuntimeTypeNative, runtime.NewNativeRuntime())
	registry.Register(runtime.RuntimeTypeVirtual, runtime.NewVirtualRuntime())
	rt, err := registry.Get(runtime.RuntimeType(settings.runtime))
	if err != nil {
		return a.fail(err, exitConfig)
	}

	exec := &runtime.Executor{
		Runtime: rt,
		Env:     &runtime.DefaultEnvBuilder{Environ: a.Environ},
		Stdin:   a.stdin,
		Stdout:  a.stdout,
		Stderr:  a.stderr,
		Timeout: settings.timeout,
		Logger:  a.logger,
	}

	pcfg := provision.DefaultConfig()
	pcfg.Apply(cfg.ProvisionOptions()...)
	pcfg.Apply(provision.WithKeepContext(opts.keepEnvs), provision.WithOutput(a.stderr))
	if opts.workDir != "" {
		pcfg.Apply(provision.WithWorkDir(opts.workDir))
	}

	var prov provision.Provisioner
	switch settings.provisioner {
	case config.ProvisionerContainer:
		engine, engineErr := a.Engines(container.EngineType(cfg.ContainerEngine))
		if engineErr != nil {
			return a.fail(engineErr, report.ExitProvisioningFailed)
		}
		a.logger.Debug("using container engine", "engine", engine.Name())
		exec.Container = runtime.NewContainerRuntime(engine)
		prov = provision.NewContainerProvisioner(engine, plan, pcfg, a.logger)
	default:
		prov = provision.NewLocalProvisioner(exec, plan, pcfg, a.logger)
	}

	runner := &matrix.Runner{
		Provisioner: prov,
		Executor:    exec,
		Logger:      a.logger,
	}
	rep := runner.Run(ctx, plan, runList)

	if err := report.Render(a.stdout, rep); err != nil {
		a.logger.Warn("failed to render summary", "error", err)
	}
	if opts.resultJSON != "" {
		if err := report.WriteJSON(opts.resultJSON, rep); err != nil {
			fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+err.Error())
		}
	}

	if code := rep.ExitCode(); code != report.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// runSettings merges the run flags over the loaded configuration.
func (a *App) runSettings(cmd *cobra.Command, opts *runOptions) (runSettings, error) {
	cfg := a.settings()
	s := runSettings{
		runtime:     cfg.DefaultRuntime,
		provisioner: cfg.Provisioner,
		timeout:     cfg.Timeout,
	}
	if opts.runtime != "" {
		s.runtime = config.RuntimeMode(opts.runtime)
	}
	if opts.provisioner != "" {
		s.provisioner = config.ProvisionerMode(opts.provisioner)
	}
	if cmd.Flags().Changed("timeout") {
		s.timeout = opts.timeout
	}

	if _, errs := s.runtime.IsValid(); len(errs) > 0 {
		return s, errs[0]
	}
	if _, errs := s.provisioner.IsValid(); len(errs) > 0 {
		return s, errs[0]
	}
	if s.timeout < 0 {
		return s, fmt.Errorf("--timeout must not be negative, got %s", s.timeout)
	}
	return s, nil
}

// loadPlan locates, parses and resolves the matrix file.
func (a *App) loadPlan(flags *rootFlags, posargs []string) (*resolve.Plan, error) {
	path := flags.matrixPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		if path, err = matrixfile.Find(cwd); err != nil {
			return nil, err
		}
	}
	a.logger.Debug("loading matrix", "path", path)
	plan, err := matrix.Load(path, resolve.Invocation{PosArgs: posargs, Env: a.hostEnv()})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, issue.Wrap(err, "load matrix file", path)
	}
	return plan, err
}

// completeEnvNames completes environment names from the matrix in scope.
func completeEnvNames(app *App, flags *rootFlags) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if app.logger == nil {
			app.logger = newLogger(app.stderr, false)
		}
		plan, err := app.loadPlan(flags, nil)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, name := range plan.Order {
			if !slices.Contains(args, name) {
				names = append(names, name)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
