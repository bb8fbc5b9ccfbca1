// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	_ "embed"
	"errors"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/envmatrix/envmatrix/pkg/cueutil"
)

//go:embed matrix_schema.cue
var matrixSchema []byte

type (
	cueMatrix struct {
		EnvList  []string          `json:"env_list,omitempty"`
		Settings cueSettings       `json:"settings,omitempty"`
		Base     *cueEnv           `json:"base,omitempty"`
		Envs     map[string]cueEnv `json:"envs,omitempty"`
	}

	cueSettings struct {
		WorkDir        string `json:"work_dir,omitempty"`
		CreateCommand  string `json:"create_command,omitempty"`
		InstallCommand string `json:"install_command,omitempty"`
		Package        string `json:"package,omitempty"`
		SkipPackage    bool   `json:"skip_package,omitempty"`
	}

	cueEnv struct {
		Description    *string           `json:"description,omitempty"`
		Deps           *[]string         `json:"deps,omitempty"`
		Commands       *[]any            `json:"commands,omitempty"`
		SkipInstall    *bool             `json:"skip_install,omitempty"`
		UseDevelop     *bool             `json:"use_develop,omitempty"`
		PassEnv        *[]string         `json:"pass_env,omitempty"`
		SetEnv         map[string]string `json:"set_env,omitempty"`
		ChangeDir      *string           `json:"change_dir,omitempty"`
		InstallCommand *string           `json:"install_command,omitempty"`
	}
)

// ParseCUE parses a CUE matrix file.
func ParseCUE(filePath string, data []byte) (*Matrix, error) {
	doc, unified, err := cueutil.Decode[cueMatrix](matrixSchema, data, "#Matrix", cueutil.WithFilename(filePath))
	if err != nil {
		return nil, cueMalformed(filePath, err)
	}

	rm := &rawMatrix{
		path:    filePath,
		format:  FormatCUE,
		envList: doc.EnvList,
		settings: rawSettings{
			workDir:        doc.Settings.WorkDir,
			createCommand:  doc.Settings.CreateCommand,
			installCommand: doc.Settings.InstallCommand,
			pkg:            doc.Settings.Package,
			skipPackage:    doc.Settings.SkipPackage,
		},
	}
	if doc.Base != nil {
		rm.base, err = doc.Base.raw(filePath, BaseEnvName, "base")
		if err != nil {
			return nil, err
		}
	}

	// Decoding into a map loses declaration order; the unified value keeps it.
	order, err := fieldOrder(unified, "envs")
	if err != nil {
		return nil, malformed(filePath, "envs", "", "%v", err)
	}
	for _, name := range order {
		e := doc.Envs[name]
		raw, err := e.raw(filePath, name, name)
		if err != nil {
			return nil, err
		}
		rm.envs = append(rm.envs, raw)
	}
	return rm.build()
}

func (e cueEnv) raw(filePath, name, section string) (*rawEnv, error) {
	raw := &rawEnv{
		name:           name,
		section:        section,
		description:    e.Description,
		deps:           e.Deps,
		skipInstall:    e.SkipInstall,
		useDevelop:     e.UseDevelop,
		passEnv:        e.PassEnv,
		setEnv:         e.SetEnv,
		changeDir:      e.ChangeDir,
		installCommand: e.InstallCommand,
	}
	if e.Commands != nil {
		cmds, err := structuredCommands(*e.Commands)
		if err != nil {
			return nil, malformed(filePath, section, "commands", "%v", err)
		}
		raw.commands = &cmds
	}
	return raw, nil
}

// structuredCommands converts list elements that are either command lines or
// argument vectors.
func structuredCommands(values []any) ([]rawCommand, error) {
	out := make([]rawCommand, 0, len(values))
	for i, v := range values {
		switch c := v.(type) {
		case string:
			out = append(out, rawCommand{line: c})
		case []any:
			argv := make([]string, 0, len(c))
			for _, a := range c {
				s, ok := a.(string)
				if !ok {
					return nil, fmt.Errorf("command %d: expected a list of strings", i)
				}
				argv = append(argv, s)
			}
			out = append(out, rawCommand{argv: argv})
		default:
			return nil, fmt.Errorf("command %d: expected a string or a list of strings, got %T", i, v)
		}
	}
	return out, nil
}

func fieldOrder(v cue.Value, field string) ([]string, error) {
	sub := v.LookupPath(cue.ParsePath(field))
	if !sub.Exists() {
		return nil, nil
	}
	iter, err := sub.Fields()
	if err != nil {
		return nil, err
	}
	var names []string
	for iter.Next() {
		names = append(names, iter.Selector().Unquoted())
	}
	return names, nil
}

// cueMalformed maps a CUE validation error path onto a section and field.
func cueMalformed(filePath string, err error) error {
	var vErr *cueutil.ValidationError
	if !errors.As(err, &vErr) {
		return malformed(filePath, "", "", "%v", err)
	}
	section, field := "", ""
	p := vErr.Path
	switch {
	case len(p) >= 2 && p[0] == "envs":
		section = p[1]
		if len(p) >= 3 {
			field = p[2]
		}
	case len(p) >= 1 && p[0] == "base":
		section = BaseEnvName
		if len(p) >= 2 {
			field = p[1]
		}
	case len(p) >= 1 && p[0] == "settings":
		section = globalSection
		if len(p) >= 2 {
			field = p[1]
		}
	case len(p) >= 1:
		section, field = globalSection, p[0]
	}
	return malformed(filePath, section, field, "%s", vErr.Message)
}
