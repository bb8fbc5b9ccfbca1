// SPDX-License-Identifier: MPL-2.0

package report

import (
	"time"
)

const (
	// StatusPassed means every command exited zero.
	StatusPassed Status = "passed"
	// StatusFailed means a command exited non-zero.
	StatusFailed Status = "failed"
	// StatusProvisioningFailed means the context could not be prepared; no command ran.
	StatusProvisioningFailed Status = "provisioning-failed"
	// StatusInterrupted means the operator stopped the run during this environment.
	StatusInterrupted Status = "interrupted"
	// StatusNotRun means the run was interrupted before this environment started.
	StatusNotRun Status = "not-run"
)

// Process exit codes derived from a report.
const (
	ExitOK                 = 0
	ExitCommandFailed      = 1
	ExitConfigError        = 2
	ExitProvisioningFailed = 3
	ExitInterrupted        = 130
)

type (
	// Status is the final state of one environment.
	Status string

	// EnvResult is the outcome of one environment.
	EnvResult struct {
		Name   string
		Status Status
		// FailedIndex is the index of the failing command, or -1.
		FailedIndex int
		ExitCode    int
		// Command is the failing command line.
		Command []string
		// Step names the failing provisioning step.
		Step     string
		Error    error
		Duration time.Duration
	}

	// Report is the result of a matrix run, in run-list order.
	Report struct {
		Results  []EnvResult
		Started  time.Time
		Duration time.Duration
	}
)

// Add appends a result.
func (r *Report) Add(res EnvResult) {
	r.Results = append(r.Results, res)
}

// Passed reports whether every requested environment passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if res.Status != StatusPassed {
			return false
		}
	}
	return true
}

// Interrupted reports whether the run was stopped by the operator.
func (r *Report) Interrupted() bool {
	for _, res := range r.Results {
		if res.Status == StatusInterrupted || res.Status == StatusNotRun {
			return true
		}
	}
	return false
}

// Count returns how many results have the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// ExitCode maps the report to a process exit code: interruption wins, then
// command failures, then provisioning failures.
func (r *Report) ExitCode() int {
	switch {
	case r.Interrupted():
		return ExitInterrupted
	case r.Count(StatusFailed) > 0:
		return ExitCommandFailed
	case r.Count(StatusProvisioningFailed) > 0:
		return ExitProvisioningFailed
	default:
		return ExitOK
	}
}
