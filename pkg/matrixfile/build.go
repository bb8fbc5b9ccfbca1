// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"maps"
	"path/filepath"
	"strings"
)

type (
	// rawCommand is a command as written: a line to lex, or an argument
	// vector from a structured format.
	rawCommand struct {
		line string
		argv []string
	}

	// rawEnv is an environment before lexing. Nil fields were not set.
	rawEnv struct {
		name           string
		section        string
		description    *string
		deps           *[]string
		commands       *[]rawCommand
		skipInstall    *bool
		useDevelop     *bool
		passEnv        *[]string
		setEnv         map[string]string
		changeDir      *string
		installCommand *string
	}

	// rawMatrix is the format-independent intermediate every parser fills in.
	rawMatrix struct {
		path     string
		format   Format
		envList  []string
		base     *rawEnv
		envs     []*rawEnv
		settings rawSettings
	}

	rawSettings struct {
		workDir         string
		createCommand   string
		installCommand  string
		pkg             string
		skipPackage     bool
		foreignSections []string
	}
)

func commandLines(ss []string) *[]rawCommand {
	out := make([]rawCommand, len(ss))
	for i, s := range ss {
		out[i] = rawCommand{line: s}
	}
	return &out
}

// build lexes every field and applies base inheritance. It is the single
// place a Matrix is constructed, so every format shares the same rules.
func (rm *rawMatrix) build() (*Matrix, error) {
	abs, err := filepath.Abs(rm.path)
	if err != nil {
		abs = rm.path
	}
	m := &Matrix{
		Path:    rm.path,
		RootDir: filepath.Dir(abs),
		Format:  rm.format,
		Envs:    make(map[string]*Environment),
	}

	base := rm.base
	if base == nil {
		base = &rawEnv{name: BaseEnvName, section: BaseEnvName}
	}
	m.Base, err = rm.buildEnv(base, &rawEnv{})
	if err != nil {
		return nil, err
	}

	for _, raw := range rm.envs {
		if !ValidEnvName(raw.name) {
			return nil, malformed(rm.path, raw.section, "", "invalid environment name %q", raw.name)
		}
		if raw.name == BaseEnvName {
			return nil, malformed(rm.path, raw.section, "", "environment name %q is reserved for the base environment", raw.name)
		}
		if _, dup := m.Envs[raw.name]; dup {
			return nil, malformed(rm.path, raw.section, "", "duplicate environment %q", raw.name)
		}
		env, err := rm.buildEnv(raw, base)
		if err != nil {
			return nil, err
		}
		m.Envs[raw.name] = env
		m.Order = append(m.Order, raw.name)
	}

	seen := make(map[string]bool)
	for _, name := range rm.envList {
		if !ValidEnvName(name) {
			return nil, malformed(rm.path, "envmatrix", "env_list", "invalid environment name %q", name)
		}
		if seen[name] {
			return nil, malformed(rm.path, "envmatrix", "env_list", "environment %q listed twice", name)
		}
		seen[name] = true
		m.EnvList = append(m.EnvList, name)
		// Listing the base name runs the base environment itself.
		if _, ok := m.Envs[name]; ok || name == BaseEnvName {
			continue
		}
		derived, err := rm.buildEnv(&rawEnv{name: name, section: base.section}, base)
		if err != nil {
			return nil, err
		}
		derived.Derived = true
		m.Envs[name] = derived
		m.Order = append(m.Order, name)
	}

	if err := rm.buildSettings(&m.Settings); err != nil {
		return nil, err
	}
	return m, nil
}

func (rm *rawMatrix) buildSettings(s *Settings) error {
	const section = "envmatrix"
	s.WorkDir = rm.settings.workDir
	s.Package = rm.settings.pkg
	s.SkipPackage = rm.settings.skipPackage
	s.ForeignSections = rm.settings.foreignSections
	if rm.settings.createCommand != "" {
		cmd, err := ParseCommand(rm.settings.createCommand)
		if err != nil {
			return at(err, rm.path, section, "create_command")
		}
		s.CreateCommand = &cmd
	}
	if rm.settings.installCommand != "" {
		cmd, err := ParseCommand(rm.settings.installCommand)
		if err != nil {
			return at(err, rm.path, section, "install_command")
		}
		s.InstallCommand = &cmd
	}
	if s.CreateCommand != nil && s.CreateCommand.Ref != nil {
		return malformed(rm.path, section, "create_command", "references are not allowed here")
	}
	if s.InstallCommand != nil && s.InstallCommand.Ref != nil {
		return malformed(rm.path, section, "install_command", "references are not allowed here")
	}
	return nil
}

// buildEnv lexes raw, falling back to base for every unset field.
func (rm *rawMatrix) buildEnv(raw, base *rawEnv) (*Environment, error) {
	env := &Environment{Name: raw.name}
	if env.Name == "" {
		env.Name = BaseEnvName
	}

	if v := pick(raw.description, base.description); v != nil {
		env.Description = *v
	}
	if v := pick(raw.skipInstall, base.skipInstall); v != nil {
		env.SkipInstall = *v
	}
	if v := pick(raw.useDevelop, base.useDevelop); v != nil {
		env.UseDevelop = *v
	}
	if v := pick(raw.passEnv, base.passEnv); v != nil {
		env.PassEnv = append([]string(nil), (*v)...)
	}
	if v := pick(raw.changeDir, base.changeDir); v != nil {
		env.ChangeDir = *v
	}
	switch {
	case raw.setEnv != nil:
		env.SetEnv = maps.Clone(raw.setEnv)
	case base.setEnv != nil:
		env.SetEnv = maps.Clone(base.setEnv)
	}

	section := raw.section
	if raw.deps == nil && base.deps != nil {
		section = base.section
	}
	if v := pick(raw.deps, base.deps); v != nil {
		for _, line := range *v {
			item, err := ParseItem(line)
			if err != nil {
				return nil, at(err, rm.path, section, "deps")
			}
			env.Deps = append(env.Deps, item)
		}
	}

	section = raw.section
	if raw.commands == nil && base.commands != nil {
		section = base.section
	}
	if v := pick(raw.commands, base.commands); v != nil {
		for _, rc := range *v {
			cmd, err := rc.parse()
			if err != nil {
				return nil, at(err, rm.path, section, "commands")
			}
			env.Commands = append(env.Commands, cmd)
		}
	}

	section = raw.section
	if raw.installCommand == nil && base.installCommand != nil {
		section = base.section
	}
	if v := pick(raw.installCommand, base.installCommand); v != nil && *v != "" {
		cmd, err := ParseCommand(*v)
		if err != nil {
			return nil, at(err, rm.path, section, "install_command")
		}
		if cmd.Ref != nil {
			return nil, malformed(rm.path, section, "install_command", "references are not allowed here")
		}
		env.InstallCommand = &cmd
	}
	return env, nil
}

func (rc rawCommand) parse() (Command, error) {
	if rc.argv == nil {
		return ParseCommand(rc.line)
	}
	tokens := make([]Token, 0, len(rc.argv))
	for _, arg := range rc.argv {
		if arg == "{posargs}" || (strings.HasPrefix(arg, "{posargs:") && strings.HasSuffix(arg, "}")) {
			toks, err := tokenize(arg)
			if err != nil {
				return Command{}, err
			}
			tokens = append(tokens, toks...)
			continue
		}
		tokens = append(tokens, Token{Kind: TokenLiteral, Text: arg})
	}
	return Command{Tokens: tokens}, nil
}

func pick[T any](own, inherited *T) *T {
	if own != nil {
		return own
	}
	return inherited
}
