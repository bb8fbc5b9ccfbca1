// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/envmatrix/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/envmatrix/config.cue on macOS, %APPDATA%\envmatrix\config.cue
// on Windows), falling back to ./config.cue and then to built-in defaults. Values can be
// overridden with ENVMATRIX_-prefixed environment variables (ENVMATRIX_DEFAULT_RUNTIME,
// ENVMATRIX_UI_VERBOSE, ...); command-line flags override both.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
