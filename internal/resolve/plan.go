// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"slices"

	"github.com/envmatrix/envmatrix/pkg/matrixfile"
)

type (
	// Environment is a fully materialized environment.
	Environment struct {
		Name        string
		Description string
		Deps        []string
		Commands    [][]string
		// Verbatim parallels Commands and marks the arguments supplied on
		// the command line. Context substitution must leave them alone.
		Verbatim    [][]bool
		SkipInstall bool
		UseDevelop  bool
		PassEnv     []string
		SetEnv      map[string]string
		ChangeDir   string
		// InstallCommand is nil when the global install command applies.
		InstallCommand []string
		Derived        bool
	}

	// Settings are the materialized global provisioning settings.
	Settings struct {
		// WorkDir is absolute.
		WorkDir        string
		CreateCommand  []string
		InstallCommand []string
		Package        string
		SkipPackage    bool
	}

	// Plan is the immutable result of resolution, handed to the runner.
	Plan struct {
		Matrix *matrixfile.Matrix
		// EnvList is the declared default run list.
		EnvList []string
		// Envs holds every named environment plus the base environment
		// under matrixfile.BaseEnvName.
		Envs map[string]*Environment
		// Order lists the named environments in declaration order.
		Order    []string
		Settings Settings
		RootDir  string
	}
)

// VerbatimAt returns the verbatim marks of Commands[i], or nil when none of
// its arguments came from the command line.
func (e *Environment) VerbatimAt(i int) []bool {
	if i < len(e.Verbatim) {
		return e.Verbatim[i]
	}
	return nil
}

// Select returns the run list for the requested names. With no names it is the
// declared default run list, or every named environment in declaration order
// when none is declared, or the base environment when there are no named ones.
func (p *Plan) Select(requested []string) ([]string, error) {
	if len(requested) == 0 {
		switch {
		case len(p.EnvList) > 0:
			return slices.Clone(p.EnvList), nil
		case len(p.Order) > 0:
			return slices.Clone(p.Order), nil
		default:
			return []string{matrixfile.BaseEnvName}, nil
		}
	}
	for _, name := range requested {
		if _, ok := p.Envs[name]; !ok {
			return nil, &UnknownEnvironmentError{Name: name, Known: slices.Clone(p.Order)}
		}
	}
	return slices.Clone(requested), nil
}

// Env returns the environment with the given name.
func (p *Plan) Env(name string) (*Environment, bool) {
	env, ok := p.Envs[name]
	return env, ok
}
