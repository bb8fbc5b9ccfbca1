// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"path"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	globalSection = "envmatrix"
	baseSection   = "testenv"
)

// DefaultForeignSections lists sections owned by other tools that commonly
// share a tox.ini file. They are skipped without error.
var DefaultForeignSections = []string{
	"flake8", "pytest", "coverage:*", "isort", "mypy", "mypy-*",
	"pycodestyle", "pydocstyle", "darglint", "gh-actions", "gh",
}

var (
	envKeyAliases = map[string]string{
		"description":     "description",
		"deps":            "deps",
		"commands":        "commands",
		"skip_install":    "skip_install",
		"use_develop":     "use_develop",
		"usedevelop":      "use_develop",
		"pass_env":        "pass_env",
		"passenv":         "pass_env",
		"set_env":         "set_env",
		"setenv":          "set_env",
		"change_dir":      "change_dir",
		"changedir":       "change_dir",
		"install_command": "install_command",
	}

	// ignoredEnvKeys are tox keys accepted for compatibility with no effect here.
	ignoredEnvKeys = map[string]bool{
		"basepython": true, "allowlist_externals": true, "whitelist_externals": true,
		"extras": true, "labels": true, "recreate": true, "depends": true,
		"parallel_show_output": true, "ignore_errors": true, "ignore_outcome": true,
		"platform": true, "package": true, "wheel_build_env": true,
	}

	globalKeyAliases = map[string]string{
		"env_list":         "env_list",
		"envlist":          "env_list",
		"work_dir":         "work_dir",
		"toxworkdir":       "work_dir",
		"create_command":   "create_command",
		"install_command":  "install_command",
		"package":          "package",
		"skipsdist":        "skip_package",
		"no_package":       "skip_package",
		"foreign_sections": "foreign_sections",
	}

	ignoredGlobalKeys = map[string]bool{
		"isolated_build": true, "minversion": true, "min_version": true, "requires": true,
		"skip_missing_interpreters": true, "ignore_basepython_conflict": true,
	}
)

// ParseINI parses section-based INI matrix text.
func ParseINI(filePath string, data []byte) (*Matrix, error) {
	rm, err := parseINIRaw(filePath, data)
	if err != nil {
		return nil, err
	}
	return rm.build()
}

func parseINIRaw(filePath string, data []byte) (*rawMatrix, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		AllowNonUniqueSections:     true,
		IgnoreInlineComment:        true,
		IgnoreContinuation:         true,
		PreserveSurroundedQuote:    true,
		KeyValueDelimiters:         "=",
	}, data)
	if err != nil {
		return nil, malformed(filePath, "", "", "%v", err)
	}

	rm := &rawMatrix{path: filePath, format: FormatINI}
	sections := f.Sections()

	// The global section is read first: it decides which foreign sections
	// may appear anywhere in the file.
	foreign := append([]string(nil), DefaultForeignSections...)
	globalSeen := false
	for _, sec := range sections {
		name := sec.Name()
		if name != globalSection && name != "tox" {
			continue
		}
		if globalSeen {
			return nil, malformed(filePath, name, "", "duplicate section")
		}
		globalSeen = true
		if err := readGlobal(filePath, sec, rm); err != nil {
			return nil, err
		}
		foreign = append(foreign, rm.settings.foreignSections...)
	}

	seen := make(map[string]string)
	for _, sec := range sections {
		name := sec.Name()
		switch {
		case name == ini.DefaultSection:
			if len(sec.Keys()) > 0 {
				return nil, malformed(filePath, "", sec.Keys()[0].Name(), "key outside of any section")
			}
		case name == globalSection || name == "tox":
		case name == baseSection || name == "env_run_base":
			if rm.base != nil {
				return nil, malformed(filePath, name, "", "duplicate base environment section")
			}
			raw, err := readEnv(filePath, sec, BaseEnvName)
			if err != nil {
				return nil, err
			}
			rm.base = raw
		case strings.HasPrefix(name, baseSection+":") || strings.HasPrefix(name, "env:"):
			_, envName, _ := strings.Cut(name, ":")
			envName = strings.TrimSpace(envName)
			if prev, dup := seen[envName]; dup {
				return nil, malformed(filePath, name, "", "duplicate environment %q (first defined in [%s])", envName, prev)
			}
			seen[envName] = name
			raw, err := readEnv(filePath, sec, envName)
			if err != nil {
				return nil, err
			}
			rm.envs = append(rm.envs, raw)
		case matchesAny(foreign, name):
		default:
			return nil, malformed(filePath, name, "", "unknown section")
		}
	}
	return rm, nil
}

func readGlobal(filePath string, sec *ini.Section, rm *rawMatrix) error {
	name := sec.Name()
	for _, key := range sec.Keys() {
		canonical, ok := globalKeyAliases[key.Name()]
		if !ok {
			if ignoredGlobalKeys[key.Name()] {
				continue
			}
			return malformed(filePath, name, key.Name(), "unknown field")
		}
		value := key.Value()
		switch canonical {
		case "env_list":
			rm.envList = splitList(value)
		case "work_dir":
			rm.settings.workDir = strings.TrimSpace(value)
		case "create_command":
			rm.settings.createCommand = joinLogical(value)
		case "install_command":
			rm.settings.installCommand = joinLogical(value)
		case "package":
			rm.settings.pkg = strings.TrimSpace(value)
		case "skip_package":
			b, err := parseBool(value)
			if err != nil {
				return malformed(filePath, name, key.Name(), "%v", err)
			}
			rm.settings.skipPackage = b
		case "foreign_sections":
			rm.settings.foreignSections = splitList(value)
		}
	}
	return nil
}

func readEnv(filePath string, sec *ini.Section, envName string) (*rawEnv, error) {
	section := sec.Name()
	raw := &rawEnv{name: envName, section: section}
	seen := make(map[string]string)
	for _, key := range sec.Keys() {
		canonical, ok := envKeyAliases[key.Name()]
		if !ok {
			if ignoredEnvKeys[key.Name()] {
				continue
			}
			return nil, malformed(filePath, section, key.Name(), "unknown field")
		}
		if prev, dup := seen[canonical]; dup {
			return nil, malformed(filePath, section, key.Name(), "field already set as %q", prev)
		}
		seen[canonical] = key.Name()

		value := key.Value()
		switch canonical {
		case "description":
			s := strings.Join(logicalLines(value), " ")
			raw.description = &s
		case "deps":
			l := logicalLines(value)
			raw.deps = &l
		case "commands":
			raw.commands = commandLines(logicalLines(value))
		case "skip_install", "use_develop":
			b, err := parseBool(value)
			if err != nil {
				return nil, malformed(filePath, section, key.Name(), "%v", err)
			}
			if canonical == "skip_install" {
				raw.skipInstall = &b
			} else {
				raw.useDevelop = &b
			}
		case "pass_env":
			l := splitList(value)
			raw.passEnv = &l
		case "set_env":
			env, err := parseSetEnv(value)
			if err != nil {
				return nil, malformed(filePath, section, key.Name(), "%v", err)
			}
			raw.setEnv = env
		case "change_dir":
			s := strings.TrimSpace(value)
			raw.changeDir = &s
		case "install_command":
			s := joinLogical(value)
			raw.installCommand = &s
		}
	}
	return raw, nil
}

// splitList splits a comma and/or whitespace separated list.
func splitList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := fields[:0]
	for _, f := range fields {
		if !strings.HasPrefix(f, "#") {
			out = append(out, f)
		}
	}
	return out
}

func joinLogical(value string) string {
	return strings.Join(logicalLines(value), " ")
}

func parseSetEnv(value string) (map[string]string, error) {
	env := make(map[string]string)
	for _, line := range logicalLines(value) {
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, &lineError{line: line, reason: "expected KEY=VALUE"}
		}
		env[k] = strings.TrimSpace(v)
	}
	return env, nil
}

func parseBool(value string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &lineError{line: value, reason: "expected a boolean"}
	}
	return b, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
