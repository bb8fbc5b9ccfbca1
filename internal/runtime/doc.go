// SPDX-License-Identifier: MPL-2.0

// Package runtime executes an environment's resolved commands.
//
// A Runtime runs a single argument vector: NativeRuntime spawns it directly,
// VirtualRuntime hands it to the embedded mvdan.cc/sh interpreter, and
// ContainerRuntime runs it inside a provisioned image. The Executor drives a
// whole environment through one of them, in order and fail-fast.
package runtime
