// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func loadSample(t *testing.T) *Matrix {
	t.Helper()
	m, err := Load(filepath.Join("testdata", "tox.ini"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return m
}

func TestParseINI_Sample(t *testing.T) {
	t.Parallel()

	m := loadSample(t)

	if m.Format != FormatINI {
		t.Errorf("Format = %q, want ini", m.Format)
	}
	wantList := []string{"clean", "lint", "typing", "py", "docs-cov", "report"}
	if diff := cmp.Diff(wantList, m.EnvList); diff != "" {
		t.Errorf("EnvList mismatch (-want +got):\n%s", diff)
	}
	// py has no section: it is derived from the base and appended after the
	// declared environments.
	wantOrder := []string{"clean", "lint", "typing", "docs-cov", "report", "release", "finish", "py"}
	if diff := cmp.Diff(wantOrder, m.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}

	py := m.Envs["py"]
	if !py.Derived {
		t.Error("py should be derived from the base environment")
	}
	if py.Description != "Run the unit tests" {
		t.Errorf("py description = %q", py.Description)
	}

	lint := m.Envs["lint"]
	if !lint.SkipInstall {
		t.Error("lint should skip install")
	}
	wantLint := []Command{
		{Tokens: []Token{lit("flake8"), lit("src/"), lit("tests/")}},
		{Tokens: []Token{lit("black"), lit("--check"), lit("src"), lit("tests")}},
	}
	if diff := cmp.Diff(wantLint, lint.Commands); diff != "" {
		t.Errorf("lint commands mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"HOME"}, lint.PassEnv); diff != "" {
		t.Errorf("lint should inherit pass_env from the base (-want +got):\n%s", diff)
	}

	typing := m.Envs["typing"]
	if typing.SkipInstall {
		t.Error("typing should install the package")
	}

	finish := m.Envs["finish"]
	if len(finish.Deps) != 2 || finish.Deps[0].Ref == nil || finish.Deps[0].Ref.Env != "release" {
		t.Errorf("finish deps = %+v", finish.Deps)
	}
	if len(finish.Commands) != 3 || finish.Commands[1].Ref == nil {
		t.Errorf("finish commands = %+v", finish.Commands)
	}

	if len(m.Base.Deps) != 3 {
		t.Errorf("base deps = %+v, want 3 items (comment dropped)", m.Base.Deps)
	}
	if m.RootDir == "" || !filepath.IsAbs(m.RootDir) {
		t.Errorf("RootDir = %q, want an absolute path", m.RootDir)
	}
}

func TestParseINI_GlobalSettings(t *testing.T) {
	t.Parallel()

	src := `
[envmatrix]
env_list = a
work_dir = .work
create_command = virtualenv {envdir}
install_command = uv pip install {packages}
package = .[test]
skipsdist = true
foreign_sections = tool:*

[testenv:a]
commands = true

[tool:custom]
anything = goes
`
	m, err := ParseINI("envmatrix.ini", []byte(src))
	if err != nil {
		t.Fatalf("ParseINI() error: %v", err)
	}
	s := m.Settings
	if s.WorkDir != ".work" || s.Package != ".[test]" || !s.SkipPackage {
		t.Errorf("Settings = %+v", s)
	}
	if s.CreateCommand == nil || s.CreateCommand.String() != "virtualenv {envdir}" {
		t.Errorf("CreateCommand = %v", s.CreateCommand)
	}
	if s.InstallCommand == nil || s.InstallCommand.String() != "uv pip install {packages}" {
		t.Errorf("InstallCommand = %v", s.InstallCommand)
	}
}

func TestParseINI_SetEnvAndAliases(t *testing.T) {
	t.Parallel()

	src := `
[env_run_base]
set_env =
    PYTHONHASHSEED = 0
    MPLBACKEND=agg
pass_env = LC_*, CI
usedevelop = yes

[env:docs]
changedir = docs
commands = sphinx-build . _build
`
	m, err := ParseINI("tox.ini", []byte(src))
	if err != nil {
		t.Fatalf("ParseINI() error: %v", err)
	}
	docs := m.Envs["docs"]
	wantEnv := map[string]string{"PYTHONHASHSEED": "0", "MPLBACKEND": "agg"}
	if diff := cmp.Diff(wantEnv, docs.SetEnv); diff != "" {
		t.Errorf("SetEnv mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"LC_*", "CI"}, docs.PassEnv); diff != "" {
		t.Errorf("PassEnv mismatch (-want +got):\n%s", diff)
	}
	if !docs.UseDevelop || docs.ChangeDir != "docs" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestParseINI_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		src         string
		wantSection string
		wantField   string
	}{
		{
			name:        "duplicate environment",
			src:         "[testenv:lint]\ncommands = a\n[testenv:lint]\ncommands = b\n",
			wantSection: "testenv:lint",
		},
		{
			name:        "duplicate across aliases",
			src:         "[testenv:lint]\ncommands = a\n[env:lint]\ncommands = b\n",
			wantSection: "env:lint",
		},
		{
			name:        "named environment using the base name",
			src:         "[testenv]\ncommands = echo base\n[testenv:testenv]\ncommands = echo named\n",
			wantSection: "testenv:testenv",
		},
		{
			name:        "unknown section",
			src:         "[testenv]\ncommands = a\n[bogus]\nx = 1\n",
			wantSection: "bogus",
		},
		{
			name:        "non-boolean skip_install",
			src:         "[testenv:lint]\nskip_install = sometimes\n",
			wantSection: "testenv:lint",
			wantField:   "skip_install",
		},
		{
			name:        "unknown field",
			src:         "[testenv:lint]\ncommandz = a\n",
			wantSection: "testenv:lint",
			wantField:   "commandz",
		},
		{
			name:        "unbalanced placeholder",
			src:         "[testenv:py]\ncommands = pytest {posargs:tests\n",
			wantSection: "testenv:py",
			wantField:   "commands",
		},
		{
			name:        "invalid reference",
			src:         "[testenv:py]\ndeps = {[testenv deps}\n",
			wantSection: "testenv:py",
			wantField:   "deps",
		},
		{
			name:        "bad set_env line",
			src:         "[testenv]\nset_env = NOVALUE\n",
			wantSection: "testenv",
			wantField:   "set_env",
		},
		{
			name:        "invalid env name in env_list",
			src:         "[tox]\nenvlist = py{38,39}\n",
			wantSection: "envmatrix",
			wantField:   "env_list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := ParseINI("tox.ini", []byte(tt.src))
			if m != nil {
				t.Errorf("expected no partial model, got %+v", m)
			}
			if !errors.Is(err, ErrMalformedConfig) {
				t.Fatalf("error = %v, want ErrMalformedConfig", err)
			}
			var mErr *MalformedConfigError
			if !errors.As(err, &mErr) {
				t.Fatalf("error = %T, want *MalformedConfigError", err)
			}
			if mErr.Section != tt.wantSection || mErr.Field != tt.wantField {
				t.Errorf("location = [%s] %s, want [%s] %s (%v)",
					mErr.Section, mErr.Field, tt.wantSection, tt.wantField, err)
			}
		})
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Find(dir); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(empty) = %v, want ErrNotFound", err)
	}

	// A pyproject.toml without a matrix table is not a candidate.
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte("[project]\nname = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Find(dir); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(pyproject without table) = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "tox.ini"), []byte("[testenv]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "envmatrix.ini"), []byte("[testenv]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Find(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "envmatrix.ini" {
		t.Errorf("Find() = %q, want envmatrix.ini to win over tox.ini", got)
	}
}
