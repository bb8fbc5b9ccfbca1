// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleCUE = `
env_list: ["lint", "py"]

settings: {
	work_dir: ".envmatrix"
}

base: {
	description: "Run the unit tests"
	deps: ["pytest"]
	commands: ["pytest {posargs:tests}"]
	pass_env: ["HOME"]
}

envs: {
	zeta: {
		commands: [["echo", "last declared first"]]
	}
	lint: {
		skip_install: true
		deps: ["flake8"]
		commands: ["flake8 src"]
	}
	"docs-cov": {
		deps: ["{[testenv]deps}", "interrogate"]
	}
}
`

func TestParseCUE(t *testing.T) {
	t.Parallel()

	m, err := ParseCUE("envmatrix.cue", []byte(sampleCUE))
	if err != nil {
		t.Fatalf("ParseCUE() error: %v", err)
	}
	if m.Format != FormatCUE {
		t.Errorf("Format = %q", m.Format)
	}
	wantOrder := []string{"zeta", "lint", "docs-cov", "py"}
	if diff := cmp.Diff(wantOrder, m.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	if m.Settings.WorkDir != ".envmatrix" {
		t.Errorf("WorkDir = %q", m.Settings.WorkDir)
	}

	zeta := m.Envs["zeta"]
	want := []Command{{Tokens: []Token{lit("echo"), lit("last declared first")}}}
	if diff := cmp.Diff(want, zeta.Commands); diff != "" {
		t.Errorf("zeta commands mismatch (-want +got):\n%s", diff)
	}
	if zeta.Description != "Run the unit tests" {
		t.Errorf("zeta should inherit the base description, got %q", zeta.Description)
	}

	docs := m.Envs["docs-cov"]
	if len(docs.Deps) != 2 || docs.Deps[0].Ref == nil || docs.Deps[0].Ref.Env != BaseEnvName {
		t.Errorf("docs-cov deps = %+v", docs.Deps)
	}
	if !m.Envs["lint"].SkipInstall {
		t.Error("lint should skip install")
	}
	if !m.Envs["py"].Derived {
		t.Error("py should be derived")
	}
}

func TestParseCUE_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		src         string
		wantSection string
		wantField   string
	}{
		{
			name:        "scalar where a list is required",
			src:         `envs: lint: deps: "flake8"`,
			wantSection: "lint",
			wantField:   "deps",
		},
		{
			name:        "non-boolean skip_install",
			src:         `envs: lint: skip_install: "yes"`,
			wantSection: "lint",
			wantField:   "skip_install",
		},
		{
			name:        "unknown field",
			src:         `base: colour: "red"`,
			wantSection: BaseEnvName,
			wantField:   "colour",
		},
		{
			name:        "unknown top-level section",
			src:         `flake8: {max_line_length: 88}`,
			wantSection: "envmatrix",
			wantField:   "flake8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCUE("envmatrix.cue", []byte(tt.src))
			var mErr *MalformedConfigError
			if !errors.As(err, &mErr) {
				t.Fatalf("error = %v, want *MalformedConfigError", err)
			}
			if mErr.Section != tt.wantSection || mErr.Field != tt.wantField {
				t.Errorf("location = [%s] %s, want [%s] %s (%v)",
					mErr.Section, mErr.Field, tt.wantSection, tt.wantField, err)
			}
		})
	}
}
