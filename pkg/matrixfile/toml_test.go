// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTOML(t *testing.T) {
	t.Parallel()

	src := `
[project]
name = "ptwt"

[tool.envmatrix]
env_list = ["lint", "py"]

[tool.envmatrix.base]
deps = ["pytest"]
commands = [["pytest", "{posargs:tests}"]]
pass_env = ["HOME"]

[tool.envmatrix.env.lint]
skip_install = true
deps = ["flake8"]
commands = ["flake8 src tests"]

[tool.envmatrix.env.alpha]
commands = ["echo alpha"]

[tool.envmatrix.env.py]
set_env = { PYTHONHASHSEED = "0" }
`
	m, err := ParseTOML("pyproject.toml", []byte(src))
	if err != nil {
		t.Fatalf("ParseTOML() error: %v", err)
	}
	// env_list order first, then the rest by name.
	if diff := cmp.Diff([]string{"lint", "py", "alpha"}, m.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	want := []Command{{Tokens: []Token{
		lit("pytest"),
		{Kind: TokenPosArgs, Default: []string{"tests"}, HasDefault: true},
	}}}
	if diff := cmp.Diff(want, m.Envs["py"].Commands); diff != "" {
		t.Errorf("py commands mismatch (-want +got):\n%s", diff)
	}
	if m.Envs["py"].SetEnv["PYTHONHASHSEED"] != "0" {
		t.Errorf("py set_env = %v", m.Envs["py"].SetEnv)
	}
	if !m.Envs["lint"].SkipInstall {
		t.Error("lint should skip install")
	}
}

func TestParseTOML_LegacyINI(t *testing.T) {
	t.Parallel()

	src := `
[tool.tox]
legacy_tox_ini = """
[tox]
envlist = py

[testenv]
commands = pytest
"""
`
	m, err := ParseTOML("pyproject.toml", []byte(src))
	if err != nil {
		t.Fatalf("ParseTOML() error: %v", err)
	}
	if m.Format != FormatTOML {
		t.Errorf("Format = %q", m.Format)
	}
	if diff := cmp.Diff([]string{"py"}, m.EnvList); diff != "" {
		t.Errorf("EnvList mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTOML_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		src         string
		wantSection string
		wantField   string
	}{
		{
			name:        "scalar deps",
			src:         "[tool.envmatrix.env.lint]\ndeps = \"flake8\"\n",
			wantSection: "tool.envmatrix.env.lint",
			wantField:   "deps",
		},
		{
			name:        "string skip_install",
			src:         "[tool.envmatrix.env.lint]\nskip_install = \"yes\"\n",
			wantSection: "tool.envmatrix.env.lint",
			wantField:   "skip_install",
		},
		{
			name:        "unknown key",
			src:         "[tool.envmatrix]\nflavour = 1\n",
			wantSection: "tool.envmatrix",
			wantField:   "flavour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := ParseTOML("pyproject.toml", []byte(tt.src))
			if m != nil {
				t.Errorf("expected no partial model")
			}
			var mErr *MalformedConfigError
			if !errors.As(err, &mErr) {
				t.Fatalf("error = %v, want *MalformedConfigError", err)
			}
			if mErr.Section != tt.wantSection || mErr.Field != tt.wantField {
				t.Errorf("location = [%s] %s, want [%s] %s", mErr.Section, mErr.Field, tt.wantSection, tt.wantField)
			}
		})
	}
}

func TestParseTOML_NoTable(t *testing.T) {
	t.Parallel()

	_, err := ParseTOML("pyproject.toml", []byte("[project]\nname = \"x\"\n"))
	if !errors.Is(err, ErrNoMatrixTable) {
		t.Errorf("error = %v, want ErrNoMatrixTable", err)
	}
}
