// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/envmatrix/envmatrix/internal/issue"
	"github.com/envmatrix/envmatrix/internal/testutil"

	"github.com/google/go-cmp/cmp"
)

func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), AppName)
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, ConfigFileName+"."+ConfigFileExt, content)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if ok, errs := cfg.IsValid(); !ok {
		t.Fatalf("default config invalid: %v", errs)
	}
	if cfg.DefaultRuntime != RuntimeNative {
		t.Errorf("DefaultRuntime = %q, want native", cfg.DefaultRuntime)
	}
	if cfg.Provisioner != ProvisionerLocal {
		t.Errorf("Provisioner = %q, want local", cfg.Provisioner)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %s, want 0", cfg.Timeout)
	}
}

func TestConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME applies to Linux and other Unix systems")
	}
	Reset()

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	if want := filepath.Join(xdg, AppName); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	dir := useConfigDir(t)
	t.Cleanup(testutil.MustChdir(t, t.TempDir()))

	cfg, source, err := LoadWithSource(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if source != "" {
		t.Errorf("source = %q, want empty", source)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	dir := useConfigDir(t)
	path := writeConfig(t, dir, `
default_runtime: "virtual"
timeout: "90s"
container: base_image: "python:3.12-slim"
ui: verbose: true
`)

	cfg, source, err := LoadWithSource(t.Context(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}

	want := DefaultConfig()
	want.DefaultRuntime = RuntimeVirtual
	want.Timeout = 90 * time.Second
	want.Container.BaseImage = "python:3.12-slim"
	want.UI.Verbose = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown runtime", `default_runtime: "container"`},
		{"unknown key", `includes: []`},
		{"bad timeout", `timeout: "soon"`},
		{"bad color scheme", `ui: color_scheme: "neon"`},
		{"syntax error", `default_runtime: `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := useConfigDir(t)
			path := writeConfig(t, dir, tt.content)

			_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error should be *issue.ActionableError, got %T", err)
			}
			if ae.Resource != path {
				t.Errorf("Resource = %q, want %q", ae.Resource, path)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	useConfigDir(t)

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	dir := useConfigDir(t)
	t.Setenv("ENVMATRIX_PROVISIONER", "container")
	t.Setenv("ENVMATRIX_UI_VERBOSE", "true")

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provisioner != ProvisionerContainer {
		t.Errorf("Provisioner = %q, want container", cfg.Provisioner)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose should be true")
	}
}

func TestLoad_InvalidEnvironmentOverride(t *testing.T) {
	dir := useConfigDir(t)
	t.Setenv("ENVMATRIX_DEFAULT_RUNTIME", "bogus")

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := NewProvider().Load(ctx, LoadOptions{}); err == nil {
		t.Fatal("Load() should fail on a canceled context")
	}
}

func TestCreateDefaultConfig_RoundTrips(t *testing.T) {
	dir := useConfigDir(t)

	path, err := CreateDefaultConfig(false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("config written to %q, want under %q", path, dir)
	}

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	// An existing file is kept unless forced.
	custom := DefaultConfig()
	custom.Python = "/opt/python3.13/bin/python3"
	if err := Save(custom); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := CreateDefaultConfig(false); err != nil {
		t.Fatal(err)
	}
	if cfg, _ = NewProvider().Load(t.Context(), LoadOptions{}); cfg.Python != custom.Python {
		t.Errorf("Python = %q, existing file should be kept", cfg.Python)
	}
	if _, err := CreateDefaultConfig(true); err != nil {
		t.Fatal(err)
	}
	if cfg, _ = NewProvider().Load(t.Context(), LoadOptions{}); cfg.Python != "" {
		t.Errorf("Python = %q, forced init should restore defaults", cfg.Python)
	}
}

func TestProvisionOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Python = "python3.12"
	cfg.WorkDir = "build/envs"
	cfg.Container.BaseImage = "python:3.12-alpine"

	if got := len(cfg.ProvisionOptions()); got != 3 {
		t.Errorf("ProvisionOptions() returned %d options, want 3", got)
	}
	if got := len(DefaultConfig().ProvisionOptions()); got != 1 {
		t.Errorf("default ProvisionOptions() returned %d options, want 1", got)
	}
}

func TestEnumValidation(t *testing.T) {
	t.Parallel()

	if ok, errs := RuntimeMode("container").IsValid(); ok || !errors.Is(errs[0], ErrInvalidConfigRuntimeMode) {
		t.Errorf("container should not be a valid runtime mode")
	}
	if ok, errs := ProvisionerMode("remote").IsValid(); ok || !errors.Is(errs[0], ErrInvalidProvisionerMode) {
		t.Errorf("remote should not be a valid provisioner")
	}
	if ok, errs := ContainerEngine("lxc").IsValid(); ok || !errors.Is(errs[0], ErrInvalidContainerEngine) {
		t.Errorf("lxc should not be a valid engine")
	}
	if ok, errs := ColorScheme("neon").IsValid(); ok || !errors.Is(errs[0], ErrInvalidColorScheme) {
		t.Errorf("neon should not be a valid color scheme")
	}

	cfg := DefaultConfig()
	cfg.Timeout = -time.Second
	cfg.Provisioner = "remote"
	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("config should be invalid")
	}
	var ice *InvalidConfigError
	if !errors.As(errs[0], &ice) || len(ice.FieldErrors) != 2 {
		t.Errorf("want 2 field errors, got %v", errs)
	}
}
