// SPDX-License-Identifier: MPL-2.0

// Package matrix runs a resolved plan: each requested environment is
// provisioned, executed and torn down strictly in run-list order.
//
// Every requested environment is attempted even after failures, so one
// invocation reports the whole matrix. An interrupt is the exception: the
// active environment is marked interrupted and the rest are not run.
package matrix
