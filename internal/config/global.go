// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform config directory in tests,
// where os.UserHomeDir() may ignore a temporary HOME (macOS CI).
var configDirOverride string

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir until Reset is called.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
