// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"
)

// Provisioning variables exported to every subprocess.
const (
	EnvVarVirtualEnv = "VIRTUAL_ENV"
	EnvVarEnvName    = "ENVMATRIX_ENV_NAME"
	EnvVarEnvDir     = "ENVMATRIX_ENV_DIR"
)

type (
	// Scope is a provisioned execution context as the executor sees it.
	Scope struct {
		EnvName string
		// RootDir is the project root; commands run here unless change_dir says otherwise.
		RootDir string
		// Dir is the environment's private directory. BinDir holds its executables.
		Dir    string
		BinDir string
		TmpDir string
		Target Target
		// Env holds extra variables the provisioner wants exported.
		Env map[string]string
	}

	// EnvBuilder builds the subprocess environment for an environment. The
	// default precedence, lowest first:
	//
	//  1. Host variables matching pass_env names or globs
	//  2. PATH: the context bin dir prepended to the host PATH (host targets)
	//  3. Provisioning variables (VIRTUAL_ENV, ENVMATRIX_ENV_NAME, ENVMATRIX_ENV_DIR)
	//     and Scope.Env
	//  4. set_env - HIGHEST priority
	//
	// Host variables not named by pass_env are never forwarded.
	EnvBuilder interface {
		Build(env *resolve.Environment, scope *Scope) (map[string]string, error)
	}

	// DefaultEnvBuilder implements the standard precedence.
	DefaultEnvBuilder struct {
		// Environ returns the host environment as "KEY=VALUE" strings.
		// When nil, os.Environ() is used.
		Environ func() []string
	}

	// MockEnvBuilder is a test helper that returns a fixed environment map.
	MockEnvBuilder struct {
		// Env is the environment map to return from Build
		Env map[string]string
		// Err is the error to return from Build (if non-nil)
		Err error
	}
)

// NewDefaultEnvBuilder creates a new DefaultEnvBuilder.
func NewDefaultEnvBuilder() *DefaultEnvBuilder {
	return &DefaultEnvBuilder{}
}

// Build constructs the subprocess environment.
func (b *DefaultEnvBuilder) Build(env *resolve.Environment, scope *Scope) (map[string]string, error) {
	host := b.hostEnv()
	out := make(map[string]string)

	// 1. pass_env
	for _, k := range slices.Sorted(maps.Keys(host)) {
		if passes(env.PassEnv, k) {
			out[k] = host[k]
		}
	}

	// 2. PATH
	if !scope.Target.IsContainer() {
		switch {
		case scope.BinDir != "" && host["PATH"] != "":
			out["PATH"] = scope.BinDir + string(os.PathListSeparator) + host["PATH"]
		case scope.BinDir != "":
			out["PATH"] = scope.BinDir
		default:
			out["PATH"] = host["PATH"]
		}
	}

	// 3. provisioning
	out[EnvVarEnvName] = env.Name
	if scope.Dir != "" {
		out[EnvVarVirtualEnv] = scope.Dir
		out[EnvVarEnvDir] = scope.Dir
	}
	maps.Copy(out, scope.Env)

	// 4. set_env
	for k, v := range env.SetEnv {
		out[k] = scope.Substitute(v)
	}

	return out, nil
}

func (b *DefaultEnvBuilder) hostEnv() map[string]string {
	environ := b.Environ
	if environ == nil {
		environ = os.Environ
	}
	host := make(map[string]string)
	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		host[k] = v
	}
	return host
}

func passes(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Build returns the mock environment or error.
func (m *MockEnvBuilder) Build(_ *resolve.Environment, _ *Scope) (map[string]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Env == nil {
		return make(map[string]string), nil
	}
	// Return a copy to prevent mutations
	result := make(map[string]string, len(m.Env))
	maps.Copy(result, m.Env)
	return result, nil
}

// Substitute replaces the context placeholders ({envname}, {envdir},
// {envbindir}, {envtmpdir}, {envpython} and their underscored spellings) in s.
// Other groups are left as written.
func (s *Scope) Substitute(v string) string {
	return matrixfile.Expand(v, s.lookup)
}

// SubstituteArgv applies Substitute to every argument.
func (s *Scope) SubstituteArgv(argv []string) []string {
	return s.SubstituteArgs(argv, nil)
}

// SubstituteArgs applies Substitute to every argument not marked verbatim.
func (s *Scope) SubstituteArgs(argv []string, verbatim []bool) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		if i < len(verbatim) && verbatim[i] {
			out[i] = arg
			continue
		}
		out[i] = s.Substitute(arg)
	}
	return out
}

func (s *Scope) lookup(key string) (string, bool) {
	switch key {
	case "envname", "env_name":
		return s.EnvName, true
	case "envdir", "env_dir":
		return s.Dir, s.Dir != ""
	case "envbindir", "env_bin_dir":
		return s.BinDir, s.BinDir != ""
	case "envtmpdir", "env_tmp_dir":
		return s.TmpDir, s.TmpDir != ""
	case "envpython", "env_python":
		if s.BinDir == "" {
			return "", false
		}
		return joinTarget(s.Target, s.BinDir, "python"), true
	}
	return "", false
}

// CommandDir returns the directory commands run in: change_dir resolved
// against the project root, or the root itself.
func (s *Scope) CommandDir(changeDir string) string {
	switch {
	case changeDir == "":
		return s.RootDir
	case filepath.IsAbs(changeDir):
		return changeDir
	default:
		return filepath.Join(s.RootDir, changeDir)
	}
}

// joinTarget joins paths with the separator of the filesystem they live on.
func joinTarget(t Target, elem ...string) string {
	if t.IsContainer() {
		return path.Join(elem...)
	}
	return filepath.Join(elem...)
}
