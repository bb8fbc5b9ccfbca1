// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"
	"os"
	"time"
)

const (
	// DefaultBaseImage is the image container environments start from.
	DefaultBaseImage = "python:3-slim"

	// TagSuffixEnvVar isolates image tags between concurrent test runs.
	TagSuffixEnvVar = "ENVMATRIX_PROVISION_TAG_SUFFIX"
)

type (
	// Config holds provisioning settings that do not come from the matrix
	// file. Matrix settings win over CreateCommand, InstallCommand and
	// Package; WorkDir wins over the matrix when set.
	Config struct {
		// WorkDir overrides the matrix work dir.
		WorkDir string

		// CreateCommand creates the context; {envdir} is substituted.
		// Default: python3 -m venv {envdir}
		CreateCommand []string

		// InstallCommand installs packages; {packages} is replaced by the
		// packages, which are appended when the placeholder is absent.
		// Default: python -m pip install {packages}
		InstallCommand []string

		// Package is the install target for the package under test. Default: .
		Package string

		// KeepContext leaves contexts on disk (and images in the engine)
		// after the environment finishes.
		KeepContext bool

		// BaseImage is the image container environments start from.
		BaseImage string

		// TagSuffix is appended to generated image tags.
		TagSuffix string

		// BuildAttempts bounds image builds retried on transient engine errors.
		BuildAttempts int
		// BuildBackoff is the delay before the first retry.
		BuildBackoff time.Duration

		// Output receives image build output.
		Output io.Writer
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		CreateCommand:  []string{"python3", "-m", "venv", "{envdir}"},
		InstallCommand: []string{"python", "-m", "pip", "install", "{packages}"},
		Package:        ".",
		BaseImage:      DefaultBaseImage,
		TagSuffix:      os.Getenv(TagSuffixEnvVar),
		BuildAttempts:  3,
		BuildBackoff:   2 * time.Second,
	}
}

// WithWorkDir returns an Option that sets WorkDir on the config.
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithCreateCommand returns an Option that sets CreateCommand on the config.
func WithCreateCommand(argv []string) Option {
	return func(c *Config) {
		c.CreateCommand = argv
	}
}

// WithInstallCommand returns an Option that sets InstallCommand on the config.
func WithInstallCommand(argv []string) Option {
	return func(c *Config) {
		c.InstallCommand = argv
	}
}

// WithPackage returns an Option that sets Package on the config.
func WithPackage(pkg string) Option {
	return func(c *Config) {
		c.Package = pkg
	}
}

// WithKeepContext returns an Option that sets KeepContext on the config.
func WithKeepContext(keep bool) Option {
	return func(c *Config) {
		c.KeepContext = keep
	}
}

// WithBaseImage returns an Option that sets BaseImage on the config.
func WithBaseImage(image string) Option {
	return func(c *Config) {
		if image != "" {
			c.BaseImage = image
		}
	}
}

// WithTagSuffix returns an Option that sets TagSuffix on the config.
// This is primarily used for test isolation to ensure parallel tests
// don't compete for the same image tags.
func WithTagSuffix(suffix string) Option {
	return func(c *Config) {
		c.TagSuffix = suffix
	}
}

// WithBuildRetry returns an Option that sets the image build retry policy.
func WithBuildRetry(attempts int, backoff time.Duration) Option {
	return func(c *Config) {
		c.BuildAttempts = attempts
		c.BuildBackoff = backoff
	}
}

// WithOutput returns an Option that sets where build output goes.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
