// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/envmatrix/envmatrix/internal/config"
	"github.com/envmatrix/envmatrix/internal/container"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra handler receives an App and reaches configuration,
	// container engines and the process environment only through it.
	App struct {
		Config  ConfigProvider
		Engines EngineFactory
		Environ func() []string

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		// Populated by load before any subcommand runs.
		cfg     *config.Config
		verbose bool
		logger  *slog.Logger
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config  ConfigProvider
		Engines EngineFactory
		Environ func() []string
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// EngineFactory returns a usable container engine, preferring the given type.
	EngineFactory func(preferred container.EngineType) (container.Engine, error)

	// rootFlags are the persistent flags shared by every subcommand.
	rootFlags struct {
		verbose    bool
		configPath string
		matrixPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Engines == nil {
		deps.Engines = container.NewEngine
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:  deps.Config,
		Engines: deps.Engines,
		Environ: deps.Environ,
		stdin:   deps.Stdin,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// load reads the user configuration and installs the logger. An explicit
// --config file must load; a broken default file only produces a warning.
func (a *App) load(ctx context.Context, flags *rootFlags) error {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		if flags.configPath != "" {
			a.verbose = flags.verbose
			return a.fail(err, exitConfig)
		}
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, flags.verbose))
		cfg = config.DefaultConfig()
	}

	a.cfg = cfg
	a.verbose = flags.verbose || cfg.UI.Verbose

	switch cfg.UI.ColorScheme {
	case config.ColorSchemeDark:
		lipgloss.SetHasDarkBackground(true)
	case config.ColorSchemeLight:
		lipgloss.SetHasDarkBackground(false)
	}

	a.logger = newLogger(a.stderr, a.verbose)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger returns an slog logger backed by charmbracelet/log. Only warnings
// surface by default; --verbose shows provisioning and command progress.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "envmatrix",
		Level:  level,
	})
	return slog.New(handler)
}

// fail renders err with its catalog entry and returns the ExitError that
// carries code back to Execute.
func (a *App) fail(err error, code int) error {
	issueID, msg := classifyError(err, a.verbose)
	renderServiceError(a.stderr, newServiceError(err, issueID, msg), a.issueStyle())
	return &ExitError{Code: code, Err: err}
}

func (a *App) issueStyle() string {
	if a.cfg != nil && a.cfg.UI.ColorScheme == config.ColorSchemeLight {
		return "light"
	}
	return "dark"
}

// hostEnv snapshots the process environment as a map.
func (a *App) hostEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range a.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

func (a *App) settings() *config.Config {
	if a.cfg == nil {
		return config.DefaultConfig()
	}
	return a.cfg
}
