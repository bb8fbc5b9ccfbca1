// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"slices"
	"strings"

	"github.com/anmitsu/go-shlex"

	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/internal/runtime"
)

const packagesPlaceholder = "{packages}"

type (
	// Provisioner prepares an isolated context for one environment.
	Provisioner interface {
		// Provision creates a fresh context for env and installs into it.
		// On error no context is left behind.
		Provision(ctx context.Context, env *resolve.Environment) (*Context, error)
	}

	// Context is a provisioned execution context.
	Context struct {
		runtime.Scope
		// Cleanup tears the context down. It is never nil.
		Cleanup func() error
	}

	// installer derives the install steps shared by both provisioners.
	installer struct {
		settings resolve.Settings
		config   *Config
	}
)

func (in installer) createCommand() []string {
	if len(in.settings.CreateCommand) > 0 {
		return in.settings.CreateCommand
	}
	return in.config.CreateCommand
}

func (in installer) installCommand(env *resolve.Environment) []string {
	switch {
	case len(env.InstallCommand) > 0:
		return env.InstallCommand
	case len(in.settings.InstallCommand) > 0:
		return in.settings.InstallCommand
	default:
		return in.config.InstallCommand
	}
}

// packageTarget returns the install arguments for the package under test,
// or nil when it must not be installed.
func (in installer) packageTarget(env *resolve.Environment, pkg string) []string {
	if env.SkipInstall || in.settings.SkipPackage {
		return nil
	}
	if env.UseDevelop {
		return []string{"-e", pkg}
	}
	return []string{pkg}
}

func (in installer) packageName() string {
	if in.settings.Package != "" {
		return in.settings.Package
	}
	if in.config.Package != "" {
		return in.config.Package
	}
	return "."
}

// installArgv splices packages into the install command in place of
// {packages}, or appends them when the placeholder is absent.
func installArgv(template, packages []string) []string {
	out := make([]string, 0, len(template)+len(packages))
	spliced := false
	for _, arg := range template {
		switch arg {
		case packagesPlaceholder:
			out = append(out, packages...)
			spliced = true
		case "{opts}":
		default:
			out = append(out, arg)
		}
	}
	if !spliced {
		out = append(out, packages...)
	}
	return out
}

// depArgs turns dependency items into installer arguments. Option items
// such as "-r requirements.txt" are split like a shell would; requirement
// specifiers stay whole.
func depArgs(deps []string) []string {
	var out []string
	for _, dep := range deps {
		if strings.HasPrefix(dep, "-") {
			if parts, err := shlex.Split(dep, true); err == nil {
				out = append(out, parts...)
				continue
			}
		}
		out = append(out, dep)
	}
	return slices.Clip(out)
}

func noCleanup() error { return nil }
