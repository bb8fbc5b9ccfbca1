// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for envmatrix.
//
// The root command runs the default environment list; run, list, plan and
// config are its subcommands. Every handler reaches configuration, container
// engines and the process environment through an App.
package cmd
