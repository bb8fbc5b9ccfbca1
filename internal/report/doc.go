// SPDX-License-Identifier: MPL-2.0

// Package report aggregates per-environment outcomes of a matrix run and
// renders them for the operator or as JSON.
package report
