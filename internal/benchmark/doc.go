// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for PGO profile generation. They cover
// the hot paths of a run:
//   - matrix parsing in every supported format
//   - reference and substitution resolution
//   - native and virtual command execution
//   - a full provision-and-run pipeline
//
// To generate a profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
