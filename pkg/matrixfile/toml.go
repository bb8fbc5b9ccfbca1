// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// ErrNoMatrixTable is returned when a pyproject.toml has no [tool.envmatrix]
// (or [tool.tox]) table.
var ErrNoMatrixTable = errors.New("no [tool.envmatrix] table")

// ParseTOML parses the [tool.envmatrix] table of a pyproject.toml file. A
// legacy_ini string is parsed as INI text instead.
//
// TOML tables carry no declaration order; environments without an env_list
// position are ordered by name.
func ParseTOML(filePath string, data []byte) (*Matrix, error) {
	table, section, err := toolTable(data)
	if err != nil {
		if errors.Is(err, ErrNoMatrixTable) {
			return nil, err
		}
		return nil, malformed(filePath, "", "", "%v", err)
	}

	for _, key := range []string{"legacy_ini", "legacy_tox_ini"} {
		if v, ok := table[key]; ok {
			text, ok := v.(string)
			if !ok {
				return nil, malformed(filePath, section, key, "expected a string")
			}
			if len(table) > 1 {
				return nil, malformed(filePath, section, key, "cannot be combined with other fields")
			}
			m, err := ParseINI(filePath, []byte(text))
			if err != nil {
				return nil, err
			}
			m.Format = FormatTOML
			return m, nil
		}
	}

	rm := &rawMatrix{path: filePath, format: FormatTOML}
	d := tomlDecoder{path: filePath}

	var envTable map[string]any
	for _, key := range slices.Sorted(maps.Keys(table)) {
		v := table[key]
		switch key {
		case "env_list", "envlist":
			rm.envList = d.stringList(section, key, v)
		case "work_dir":
			rm.settings.workDir = d.str(section, key, v)
		case "create_command":
			rm.settings.createCommand = d.str(section, key, v)
		case "install_command":
			rm.settings.installCommand = d.str(section, key, v)
		case "package":
			rm.settings.pkg = d.str(section, key, v)
		case "skip_package":
			rm.settings.skipPackage = d.boolean(section, key, v)
		case "base", "env_run_base":
			t := d.table(section, key, v)
			if t != nil {
				rm.base = d.env(BaseEnvName, section+"."+key, t)
			}
		case "env":
			envTable = d.table(section, key, v)
		default:
			d.fail(section, key, "unknown field")
		}
		if d.err != nil {
			return nil, d.err
		}
	}

	names := slices.Sorted(maps.Keys(envTable))
	order := make([]string, 0, len(names))
	for _, n := range rm.envList {
		if _, ok := envTable[n]; ok {
			order = append(order, n)
		}
	}
	for _, n := range names {
		if !slices.Contains(order, n) {
			order = append(order, n)
		}
	}
	for _, name := range order {
		envSection := section + ".env." + name
		t := d.table(envSection, "", envTable[name])
		if d.err != nil {
			return nil, d.err
		}
		raw := d.env(name, envSection, t)
		if d.err != nil {
			return nil, d.err
		}
		rm.envs = append(rm.envs, raw)
	}
	if d.err != nil {
		return nil, d.err
	}
	return rm.build()
}

// HasMatrixTable reports whether a pyproject.toml document carries a matrix table.
func HasMatrixTable(data []byte) bool {
	_, _, err := toolTable(data)
	return err == nil
}

func toolTable(data []byte) (map[string]any, string, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, "", err
	}
	tool, ok := doc["tool"].(map[string]any)
	if !ok {
		return nil, "", ErrNoMatrixTable
	}
	for _, name := range []string{"envmatrix", "tox"} {
		if t, ok := tool[name].(map[string]any); ok {
			return t, "tool." + name, nil
		}
	}
	return nil, "", ErrNoMatrixTable
}

// tomlDecoder checks value shapes and keeps the first error.
type tomlDecoder struct {
	path string
	err  error
}

func (d *tomlDecoder) fail(section, field, format string, args ...any) {
	if d.err == nil {
		d.err = malformed(d.path, section, field, format, args...)
	}
}

func (d *tomlDecoder) str(section, field string, v any) string {
	s, ok := v.(string)
	if !ok {
		d.fail(section, field, "expected a string, got %s", tomlKind(v))
	}
	return s
}

func (d *tomlDecoder) boolean(section, field string, v any) bool {
	b, ok := v.(bool)
	if !ok {
		d.fail(section, field, "expected a boolean, got %s", tomlKind(v))
	}
	return b
}

func (d *tomlDecoder) table(section, field string, v any) map[string]any {
	t, ok := v.(map[string]any)
	if !ok {
		d.fail(section, field, "expected a table, got %s", tomlKind(v))
	}
	return t
}

func (d *tomlDecoder) stringList(section, field string, v any) []string {
	list, ok := v.([]any)
	if !ok {
		d.fail(section, field, "expected a list, got %s", tomlKind(v))
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			d.fail(section, field, "expected a list of strings, found %s", tomlKind(item))
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (d *tomlDecoder) env(name, section string, t map[string]any) *rawEnv {
	raw := &rawEnv{name: name, section: section}
	for _, key := range slices.Sorted(maps.Keys(t)) {
		v := t[key]
		switch key {
		case "description":
			s := d.str(section, key, v)
			raw.description = &s
		case "deps":
			l := d.stringList(section, key, v)
			raw.deps = &l
		case "commands":
			list, ok := v.([]any)
			if !ok {
				d.fail(section, key, "expected a list, got %s", tomlKind(v))
				break
			}
			cmds, err := structuredCommands(list)
			if err != nil {
				d.fail(section, key, "%v", err)
				break
			}
			raw.commands = &cmds
		case "skip_install":
			b := d.boolean(section, key, v)
			raw.skipInstall = &b
		case "use_develop":
			b := d.boolean(section, key, v)
			raw.useDevelop = &b
		case "pass_env":
			l := d.stringList(section, key, v)
			raw.passEnv = &l
		case "set_env":
			vars := d.table(section, key, v)
			raw.setEnv = make(map[string]string, len(vars))
			for k, val := range vars {
				raw.setEnv[k] = d.str(section, key, val)
			}
		case "change_dir":
			s := d.str(section, key, v)
			raw.changeDir = &s
		case "install_command":
			s := d.str(section, key, v)
			raw.installCommand = &s
		default:
			if !ignoredEnvKeys[key] {
				d.fail(section, key, "unknown field")
			}
		}
	}
	return raw
}

func tomlKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}
