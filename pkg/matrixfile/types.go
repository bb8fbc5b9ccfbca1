// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"fmt"
	"strings"
)

const (
	// BaseEnvName is the name of the implicit base environment every named
	// environment inherits unset fields from.
	BaseEnvName = "testenv"

	// FormatINI is the section-based INI format.
	FormatINI Format = "ini"
	// FormatCUE is the CUE format.
	FormatCUE Format = "cue"
	// FormatTOML is the pyproject.toml format.
	FormatTOML Format = "toml"

	// FieldDeps names the dependency list of an environment.
	FieldDeps Field = "deps"
	// FieldCommands names the command list of an environment.
	FieldCommands Field = "commands"
)

const (
	// TokenLiteral is a literal argument, possibly embedding substitutions.
	TokenLiteral TokenKind = iota
	// TokenPosArgs is a positional-argument placeholder.
	TokenPosArgs
)

type (
	// Format identifies the on-disk syntax a Matrix was parsed from.
	Format string

	// TokenKind distinguishes literal tokens from positional placeholders.
	TokenKind int

	// Field names a referenceable environment field.
	Field string

	// FieldRef is a whole-field reference such as {[testenv:lint]commands}.
	FieldRef struct {
		// Section is the section text as written, used in error messages.
		Section string
		// Env is the referenced environment name (BaseEnvName for the base).
		Env   string
		Field Field
	}

	// Token is one element of a command line.
	Token struct {
		Kind TokenKind
		// Text is the literal argument. It may embed {env:...} and similar
		// substitutions, which are expanded later.
		Text string
		// Default is the placeholder's default token sequence.
		Default    []string
		HasDefault bool
	}

	// Command is either an ordered token list or a whole-line reference
	// to another environment's command list.
	Command struct {
		Tokens []Token
		Ref    *FieldRef
	}

	// Item is one dependency entry: a requirement string or a reference
	// to another environment's dependency list.
	Item struct {
		Requirement string
		Ref         *FieldRef
	}

	// Environment is a named unit of dependency installation and ordered
	// command execution. Fields left unset on a named environment have
	// already been filled in from the base environment.
	Environment struct {
		Name        string
		Description string
		Deps        []Item
		Commands    []Command
		SkipInstall bool
		UseDevelop  bool
		// PassEnv holds variable names or glob patterns (LC_*) forwarded
		// from the invoking process.
		PassEnv   []string
		SetEnv    map[string]string
		ChangeDir string
		// InstallCommand overrides the global install command when non-nil.
		InstallCommand *Command
		// Derived is set for environments listed in env_list that have no
		// section of their own.
		Derived bool
	}

	// Settings holds global provisioning settings.
	Settings struct {
		WorkDir        string
		CreateCommand  *Command
		InstallCommand *Command
		// Package is the install spec of the package under test ("." by default).
		Package string
		// SkipPackage disables package installation for every environment.
		SkipPackage     bool
		ForeignSections []string
	}

	// Matrix is the parsed, immutable matrix definition.
	Matrix struct {
		Path    string
		RootDir string
		Format  Format
		// EnvList is the declared default run list (may be empty).
		EnvList []string
		Base    *Environment
		Envs    map[string]*Environment
		// Order lists Envs keys in declaration order.
		Order    []string
		Settings Settings
	}
)

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// String returns the reference in its source form.
func (r FieldRef) String() string {
	return fmt.Sprintf("{[%s]%s}", r.Section, r.Field)
}

// Key returns the graph node key "ENV.FIELD" for the referenced field.
func (r FieldRef) Key() string {
	return NodeKey(r.Env, r.Field)
}

// NodeKey builds the "ENV.FIELD" key used to identify a field.
func NodeKey(env string, field Field) string {
	return env + "." + string(field)
}

// IsPlaceholder reports whether the token is a positional placeholder.
func (t Token) IsPlaceholder() bool { return t.Kind == TokenPosArgs }

// String renders the token back in source form.
func (t Token) String() string {
	if t.Kind != TokenPosArgs {
		return t.Text
	}
	if !t.HasDefault {
		return "{posargs}"
	}
	return "{posargs:" + strings.Join(t.Default, " ") + "}"
}

// String renders the command back in source form.
func (c Command) String() string {
	if c.Ref != nil {
		return c.Ref.String()
	}
	parts := make([]string, len(c.Tokens))
	for i, t := range c.Tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Env returns the environment with the given name. BaseEnvName returns the
// base environment.
func (m *Matrix) Env(name string) (*Environment, bool) {
	if name == BaseEnvName {
		return m.Base, m.Base != nil
	}
	env, ok := m.Envs[name]
	return env, ok
}

// Names returns every named environment in declaration order.
func (m *Matrix) Names() []string {
	return append([]string(nil), m.Order...)
}

// InDefaultList reports whether name is part of the declared default run list.
func (m *Matrix) InDefaultList(name string) bool {
	for _, n := range m.EnvList {
		if n == name {
			return true
		}
	}
	return false
}
