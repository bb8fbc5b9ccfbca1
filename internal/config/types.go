// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/envmatrix/envmatrix/internal/provision"
)

const (
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"

	// RuntimeNative launches commands as host processes.
	RuntimeNative RuntimeMode = "native"
	// RuntimeVirtual runs commands in the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"

	// ProvisionerLocal creates environments on the host.
	ProvisionerLocal ProvisionerMode = "local"
	// ProvisionerContainer builds one image per environment.
	ProvisionerContainer ProvisionerMode = "container"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultWorkDir mirrors the matrix default so `config show` prints it.
	DefaultWorkDir = ".envmatrix"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidConfigRuntimeMode is returned when a config RuntimeMode value is not recognized.
	ErrInvalidConfigRuntimeMode = errors.New("invalid runtime mode")
	// ErrInvalidProvisionerMode is returned when a ProvisionerMode value is not recognized.
	ErrInvalidProvisionerMode = errors.New("invalid provisioner")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// RuntimeMode specifies the runtime that executes environment commands.
	RuntimeMode string

	// InvalidConfigRuntimeModeError is returned when a config RuntimeMode value is not recognized.
	// It wraps ErrInvalidConfigRuntimeMode for errors.Is() compatibility.
	InvalidConfigRuntimeModeError struct {
		Value RuntimeMode
	}

	// ProvisionerMode selects where environments are created.
	ProvisionerMode string

	// InvalidProvisionerModeError is returned when a ProvisionerMode value is not recognized.
	InvalidProvisionerModeError struct {
		Value ProvisionerMode
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// DefaultRuntime selects the command runtime when --runtime is not given.
		DefaultRuntime RuntimeMode `json:"default_runtime" mapstructure:"default_runtime"`
		// Provisioner selects where environments are created.
		Provisioner ProvisionerMode `json:"provisioner" mapstructure:"provisioner"`
		// ContainerEngine specifies whether to use "podman" or "docker"
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// Container configures the container provisioner
		Container ContainerConfig `json:"container" mapstructure:"container"`
		// WorkDir overrides the matrix work dir when non-empty.
		WorkDir string `json:"work_dir" mapstructure:"work_dir"`
		// Timeout bounds each subprocess; zero disables it.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
		// Python is the interpreter that creates virtual environments.
		Python string `json:"python" mapstructure:"python"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ContainerConfig configures the container provisioner.
	ContainerConfig struct {
		BaseImage string `json:"base_image" mapstructure:"base_image"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// IsValid returns whether the Config has valid fields.
// It delegates to each enum-typed field and collects their errors.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if _, fieldErrs := c.DefaultRuntime.IsValid(); fieldErrs != nil {
		errs = append(errs, fieldErrs...)
	}
	if _, fieldErrs := c.Provisioner.IsValid(); fieldErrs != nil {
		errs = append(errs, fieldErrs...)
	}
	if _, fieldErrs := c.ContainerEngine.IsValid(); fieldErrs != nil {
		errs = append(errs, fieldErrs...)
	}
	if _, fieldErrs := c.UI.ColorScheme.IsValid(); fieldErrs != nil {
		errs = append(errs, fieldErrs...)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// ProvisionOptions maps the configuration onto provisioning options.
func (c Config) ProvisionOptions() []provision.Option {
	opts := []provision.Option{provision.WithBaseImage(c.Container.BaseImage)}
	if c.WorkDir != "" && c.WorkDir != DefaultWorkDir {
		opts = append(opts, provision.WithWorkDir(c.WorkDir))
	}
	if c.Python != "" {
		opts = append(opts, provision.WithCreateCommand([]string{c.Python, "-m", "venv", "{envdir}"}))
	}
	return opts
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Details joins every field error for display.
func (e *InvalidConfigError) Details() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: podman, docker)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error {
	return ErrInvalidContainerEngine
}

func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engine types,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEnginePodman, ContainerEngineDocker:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

func (e *InvalidConfigRuntimeModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: native, virtual)", e.Value)
}

// Unwrap returns ErrInvalidConfigRuntimeMode for errors.Is() compatibility.
func (e *InvalidConfigRuntimeModeError) Unwrap() error {
	return ErrInvalidConfigRuntimeMode
}

func (m RuntimeMode) String() string { return string(m) }

// IsValid returns whether the RuntimeMode is one of the defined runtime modes,
// and a list of validation errors if it is not.
func (m RuntimeMode) IsValid() (bool, []error) {
	switch m {
	case RuntimeNative, RuntimeVirtual:
		return true, nil
	default:
		return false, []error{&InvalidConfigRuntimeModeError{Value: m}}
	}
}

func (e *InvalidProvisionerModeError) Error() string {
	return fmt.Sprintf("invalid provisioner %q (valid: local, container)", e.Value)
}

// Unwrap returns ErrInvalidProvisionerMode for errors.Is() compatibility.
func (e *InvalidProvisionerModeError) Unwrap() error {
	return ErrInvalidProvisionerMode
}

func (m ProvisionerMode) String() string { return string(m) }

// IsValid returns whether the ProvisionerMode is local or container.
func (m ProvisionerMode) IsValid() (bool, []error) {
	switch m {
	case ProvisionerLocal, ProvisionerContainer:
		return true, nil
	default:
		return false, []error{&InvalidProvisionerModeError{Value: m}}
	}
}

func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultRuntime:  RuntimeNative,
		Provisioner:     ProvisionerLocal,
		ContainerEngine: ContainerEnginePodman,
		Container: ContainerConfig{
			BaseImage: provision.DefaultBaseImage,
		},
		WorkDir: DefaultWorkDir,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
